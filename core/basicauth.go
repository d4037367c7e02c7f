package core

import (
	"encoding/base64"
	"errors"
	"strings"
)

// Credentials is the transient username/password pair extracted from an
// Authorization header. It is never persisted.
type Credentials struct {
	Username string
	Password string
}

// ErrInvalidAuthHeader is returned for any header that does not match
// "Basic <base64(user:pass)>".
var ErrInvalidAuthHeader = errors.New("invalid authorization header")

const basicPrefix = "Basic "

// ParseBasicAuthHeader extracts credentials from a Basic Authorization
// header. The base64 payload must contain at least one colon; everything
// after the first colon is the password.
func ParseBasicAuthHeader(header string) (Credentials, error) {
	if !strings.HasPrefix(header, basicPrefix) {
		return Credentials{}, ErrInvalidAuthHeader
	}

	decoded, err := base64.StdEncoding.DecodeString(header[len(basicPrefix):])
	if err != nil {
		return Credentials{}, ErrInvalidAuthHeader
	}

	username, password, found := strings.Cut(string(decoded), ":")
	if !found {
		return Credentials{}, ErrInvalidAuthHeader
	}

	return Credentials{Username: username, Password: password}, nil
}
