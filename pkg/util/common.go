package util

import (
	"crypto/rand"
	"math/big"
	"strings"
)

var (
	RandomVariantAll = []rune("1234567890abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
)

// RandStringRunes 返回随机字符串，可用于生成密钥
func RandStringRunes(n int) string {
	b := make([]rune, n)
	max := big.NewInt(int64(len(RandomVariantAll)))
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		b[i] = RandomVariantAll[idx.Int64()]
	}
	return string(b)
}

// Replace 根据替换表执行批量替换
func Replace(table map[string]string, s string) string {
	for key, value := range table {
		s = strings.Replace(s, key, value, -1)
	}
	return s
}
