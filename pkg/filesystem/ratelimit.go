package filesystem

import (
	"io"

	"github.com/juju/ratelimit"
)

// 限速后的ReaderSeeker
type lrs struct {
	io.ReadSeeker
	r io.Reader
}

func (r lrs) Read(p []byte) (int, error) {
	return r.r.Read(p)
}

// WithSpeedLimit 给原有的ReadSeeker加上限速, speed 单位为 bytes/s, 0 表示不限速
func WithSpeedLimit(rs io.ReadSeeker, speed int64) io.ReadSeeker {
	if speed > 0 {
		bucket := ratelimit.NewBucketWithRate(float64(speed), speed)
		return lrs{rs, ratelimit.Reader(rs, bucket)}
	}

	return rs
}
