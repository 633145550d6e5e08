package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/samber/lo"
)

const (
	digestPrefix = "Digest "
	qopAuth      = "auth"
)

var (
	// ErrAuthFailed means the credentials don't match a known user.
	ErrAuthFailed = errors.New("auth: authentication failed")
	// ErrNonceStale means the credentials were computed for an expired nonce.
	ErrNonceStale = errors.New("auth: nonce is stale")
	// ErrMalformedHeader means the Authorization header can't be parsed.
	ErrMalformedHeader = errors.New("auth: malformed authorization header")
	// ErrURIMismatch means the digest was computed for another request target.
	ErrURIMismatch = errors.New("auth: digest uri does not match the request")
)

// PasswordLookup returns the plain text password of user.
type PasswordLookup func(user string) (password string, ok bool)

// Authorization is a parsed Digest Authorization header.
type Authorization struct {
	Username string
	Realm    string
	Method   string
	URI      string
	Nonce    string
	NC       string
	CNonce   string
	QOP      string
	Response string
}

// Digest implements HTTP Digest access authentication (RFC 2617, qop=auth).
type Digest struct {
	Realm  string
	Nonces *NonceManager
	Lookup PasswordLookup
}

// NewDigest creates a Digest authenticator.
func NewDigest(realm string, nonces *NonceManager, lookup PasswordLookup) *Digest {
	return &Digest{Realm: realm, Nonces: nonces, Lookup: lookup}
}

// Challenge builds the WWW-Authenticate header value sent with a 401.
func (d *Digest) Challenge(stale bool) string {
	challenge := fmt.Sprintf(`%srealm="%s",qop="%s",nonce="%s"`, digestPrefix, d.Realm, qopAuth, d.Nonces.New())
	if stale {
		challenge += ",stale=true"
	}
	return challenge
}

// Verify checks a against the known users. It returns the password of the
// user on success, ErrNonceStale if only the nonce is outdated.
func (d *Digest) Verify(a *Authorization) (string, error) {
	valid, stale := d.Nonces.Validate(a.Nonce)
	if !valid {
		return "", ErrAuthFailed
	}
	if stale {
		return "", ErrNonceStale
	}

	if a.Realm != d.Realm || a.QOP != qopAuth {
		return "", ErrAuthFailed
	}

	password, ok := d.Lookup(a.Username)
	if !ok || password == "" {
		return "", ErrAuthFailed
	}

	if subtle.ConstantTimeCompare([]byte(Response(a, password)), []byte(a.Response)) != 1 {
		return "", ErrAuthFailed
	}

	return password, nil
}

// MatchURI returns ErrURIMismatch unless the digest uri of a names the same
// resource as requestURI. Absolute URIs and percent-encoding differences are
// tolerated.
func (a *Authorization) MatchURI(requestURI string) error {
	if a.URI == requestURI {
		return nil
	}

	digestURI, err := url.Parse(a.URI)
	if err != nil {
		return ErrURIMismatch
	}
	reqURI, err := url.Parse(requestURI)
	if err != nil {
		return ErrURIMismatch
	}
	if digestURI.Path != reqURI.Path || digestURI.RawQuery != reqURI.RawQuery {
		return ErrURIMismatch
	}
	return nil
}

// AuthenticationInfo builds the Authentication-Info header value proving the
// server knows the password too.
func (d *Digest) AuthenticationInfo(a *Authorization, password string) string {
	return fmt.Sprintf(`qop="%s",rspauth="%s",cnonce="%s",nc=%s`, qopAuth, rspAuth(a, password), a.CNonce, a.NC)
}

// Response computes the request digest a client sends for password.
func Response(a *Authorization, password string) string {
	ha1 := md5Hex(a.Username + ":" + a.Realm + ":" + password)
	ha2 := md5Hex(a.Method + ":" + a.URI)
	return md5Hex(strings.Join([]string{ha1, a.Nonce, a.NC, a.CNonce, a.QOP, ha2}, ":"))
}

// rspAuth is Response with an empty method.
func rspAuth(a *Authorization, password string) string {
	ha1 := md5Hex(a.Username + ":" + a.Realm + ":" + password)
	ha2 := md5Hex(":" + a.URI)
	return md5Hex(strings.Join([]string{ha1, a.Nonce, a.NC, a.CNonce, a.QOP, ha2}, ":"))
}

var requiredParams = []string{"realm", "nonce", "uri", "nc", "cnonce", "qop", "response"}

// ParseAuthorization parses the Authorization header of a request made with method.
func ParseAuthorization(header, method string) (*Authorization, error) {
	if !strings.HasPrefix(header, digestPrefix) {
		return nil, ErrMalformedHeader
	}

	params := parseParams(header[len(digestPrefix):])
	if params["username"] == "" {
		params["username"] = params["user"]
	}

	missing := lo.Filter(append([]string{"username"}, requiredParams...), func(key string, _ int) bool {
		return params[key] == ""
	})
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedHeader, strings.Join(missing, ", "))
	}

	return &Authorization{
		Username: params["username"],
		Realm:    params["realm"],
		Method:   method,
		URI:      params["uri"],
		Nonce:    params["nonce"],
		NC:       params["nc"],
		CNonce:   params["cnonce"],
		QOP:      params["qop"],
		Response: params["response"],
	}, nil
}

// parseParams splits a comma separated list of key=value pairs. Values may be
// quoted, quoted values may contain commas.
func parseParams(s string) map[string]string {
	params := make(map[string]string)
	for {
		s = strings.TrimLeft(s, " \t,")
		eq := strings.IndexByte(s, '=')
		if eq < 0 {
			return params
		}

		key := strings.ToLower(strings.TrimSpace(s[:eq]))
		s = strings.TrimLeft(s[eq+1:], " \t")

		var value string
		if strings.HasPrefix(s, `"`) {
			end := strings.IndexByte(s[1:], '"')
			if end < 0 {
				value, s = s[1:], ""
			} else {
				value, s = s[1:end+1], s[end+2:]
			}
		} else {
			end := strings.IndexByte(s, ',')
			if end < 0 {
				value, s = s, ""
			} else {
				value, s = s[:end], s[end+1:]
			}
		}

		params[key] = strings.TrimSpace(value)
	}
}
