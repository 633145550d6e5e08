package main

import "github.com/derpycloud/derpycloud/cmd"

func main() {
	cmd.Execute()
}
