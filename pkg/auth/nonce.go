package auth

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// NonceManager issues and checks server nonces. A nonce carries its issue time
// together with a digest of that time and the server secret, so no state is kept
// between requests.
type NonceManager struct {
	Secret string
	// MaxAge is how long a nonce stays fresh. Older nonces are reported stale.
	MaxAge time.Duration

	now func() time.Time
}

// NewNonceManager creates a NonceManager signing with secret.
func NewNonceManager(secret string, maxAge time.Duration) *NonceManager {
	return &NonceManager{Secret: secret, MaxAge: maxAge, now: time.Now}
}

// New 签发一个新的 nonce
func (n *NonceManager) New() string {
	return n.sign(strconv.FormatInt(n.now().UnixMilli(), 10))
}

// Validate reports whether nonce was issued by n, and if so, whether it is
// older than MaxAge.
func (n *NonceManager) Validate(nonce string) (valid, stale bool) {
	plain, err := base64.StdEncoding.DecodeString(nonce)
	if err != nil {
		return false, false
	}

	timestamp, _, found := strings.Cut(strings.Trim(string(plain), `"`), " ")
	if !found {
		return false, false
	}

	issued, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false, false
	}

	if subtle.ConstantTimeCompare([]byte(n.sign(timestamp)), []byte(nonce)) != 1 {
		return false, false
	}

	return true, n.now().Sub(time.UnixMilli(issued)) > n.MaxAge
}

func (n *NonceManager) sign(timestamp string) string {
	secret := md5Hex(timestamp + ":" + n.Secret)
	return base64.StdEncoding.EncodeToString([]byte(`"` + timestamp + " " + secret + `"`))
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
