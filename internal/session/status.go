package session

import "errors"

// ErrNoToken is returned when the credential source yields no token.
// The caller must not retry; a missing token never heals on its own.
var ErrNoToken = errors.New("no session token available")

// Status is the connection lifecycle phase surfaced to the UI layer.
type Status int

const (
	Disconnected Status = iota
	Connecting
	Connected
	Failed
)

func (s Status) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "error"
	default:
		return "unknown"
	}
}

// Credentials supplies the bearer token appended to the dial URL.
type Credentials interface {
	Token() (string, error)
}

// StaticToken is a Credentials over a fixed token string.
type StaticToken string

func (t StaticToken) Token() (string, error) {
	if t == "" {
		return "", ErrNoToken
	}
	return string(t), nil
}
