package transport

import "sync"

// Bearer is the process wide holder of the access token applied to every outgoing request.
// Only the session manager is expected to call Set and Clear.
type Bearer struct {
	mu    sync.RWMutex
	token string
}

// NewBearer returns an empty holder.
func NewBearer() *Bearer {
	return &Bearer{}
}

// Set installs the access token. An empty token clears the holder.
func (b *Bearer) Set(token string) {
	b.mu.Lock()
	b.token = token
	b.mu.Unlock()
}

// Clear removes the access token.
func (b *Bearer) Clear() {
	b.Set("")
}

// Token returns the current access token, or "" when none is installed.
func (b *Bearer) Token() string {
	if b == nil {
		return ""
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.token
}
