package session

import (
	"context"
	"net/url"

	"github.com/yanqian/sunbalance/internal/infra/transport"
)

// DefaultStorageKey is the key of the persisted credential record.
const DefaultStorageKey = "sunbalance_tokens"

// Error codes reported through pkg/errors.
const (
	CodeAuth         = "auth_error"
	CodeInvalidInput = "invalid_input"
)

// Phase is the coarse status flag shown to users. It is never persisted.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseError   Phase = "error"
)

// APIClient is the part of the transport client the session manager needs.
type APIClient interface {
	Request(ctx context.Context, method, path string, body any, query url.Values) (*transport.Response, error)
}

// Credentials is the access/refresh pair. An empty string means the token is absent.
type Credentials struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Complete reports whether both tokens are present.
func (c Credentials) Complete() bool {
	return c.Access != "" && c.Refresh != ""
}

// State is a snapshot of the session for display.
type State struct {
	Authenticated bool   `json:"authenticated"`
	Phase         Phase  `json:"phase"`
	LastError     string `json:"error,omitempty"`
}

// RegisterRequest captures the registration payload.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

// Account is the server's view of a registered user.
type Account struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access string `json:"access"`
}
