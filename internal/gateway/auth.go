package gateway

import (
	"crypto/subtle"
	"errors"
)

var ErrUnauthorized = errors.New("gateway: unauthorized")

// Authenticator validates the token a client connects with.
type Authenticator interface {
	Authenticate(token string) error
}

// StaticTokenAuth accepts a single shared token using constant-time
// comparison. The zero value accepts everything.
type StaticTokenAuth struct {
	token []byte
}

func NewStaticTokenAuth(token string) *StaticTokenAuth {
	return &StaticTokenAuth{token: []byte(token)}
}

func (a *StaticTokenAuth) Authenticate(token string) error {
	if len(a.token) == 0 {
		return nil
	}
	if subtle.ConstantTimeCompare(a.token, []byte(token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}
