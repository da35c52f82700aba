package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yanqian/sunbalance/internal/infra/transport"
	apperrors "github.com/yanqian/sunbalance/pkg/errors"
	"github.com/yanqian/sunbalance/pkg/metrics"
	"github.com/yanqian/sunbalance/pkg/util"
)

const (
	loginPath    = "/auth/token/"
	refreshPath  = "/auth/token/refresh/"
	registerPath = "/auth/register/"
)

// Options tunes a Manager.
type Options struct {
	StorageKey string
	Metrics    *metrics.Recorder
}

// Manager owns the credential pair, its persisted record and the refresh protocol.
// Both tokens are present or both absent whenever the lock is released.
type Manager struct {
	mu        sync.Mutex
	creds     Credentials
	phase     Phase
	lastError string

	client  APIClient
	bearer  *transport.Bearer
	store   Store
	key     string
	metrics *metrics.Recorder
	logger  *slog.Logger
	now     func() time.Time
}

// NewManager restores any persisted credential record and installs its access token on
// bearer. A corrupt or half-populated record is deleted and the session starts logged out.
func NewManager(ctx context.Context, client APIClient, bearer *transport.Bearer, store Store, opts Options, logger *slog.Logger) *Manager {
	key := strings.TrimSpace(opts.StorageKey)
	if key == "" {
		key = DefaultStorageKey
	}
	m := &Manager{
		phase:   PhaseIdle,
		client:  client,
		bearer:  bearer,
		store:   store,
		key:     key,
		metrics: opts.Metrics,
		logger:  logger.With("component", "session.manager"),
		now:     util.NowUTC,
	}
	m.restore(ctx)
	return m
}

// Login exchanges username and password for a credential pair. On failure the previous
// credentials and the persisted record are left untouched and the error is returned.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	m.mu.Lock()
	m.phase = PhaseLoading
	m.lastError = ""
	m.mu.Unlock()

	creds, err := m.requestLogin(ctx, username, password)
	m.metrics.SessionEvent("login", err)
	if err != nil {
		m.mu.Lock()
		m.phase = PhaseError
		m.lastError = transport.ExtractMessage(err)
		m.mu.Unlock()
		m.logger.Warn("login failed", "error", m.lastErrorSnapshot())
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = creds
	m.bearer.Set(creds.Access)
	m.persistLocked(ctx)
	m.phase = PhaseIdle
	m.logger.Info("login succeeded")
	return nil
}

func (m *Manager) requestLogin(ctx context.Context, username, password string) (Credentials, error) {
	resp, err := m.client.Request(ctx, http.MethodPost, loginPath, loginRequest{Username: username, Password: password}, nil)
	if err != nil {
		return Credentials{}, apperrors.Wrap(CodeAuth, "login failed", err)
	}
	var creds Credentials
	if err := resp.Decode(&creds); err != nil {
		return Credentials{}, apperrors.Wrap(CodeAuth, "login response malformed", err)
	}
	if !creds.Complete() {
		return Credentials{}, apperrors.Wrap(CodeAuth, "login response missing tokens", nil)
	}
	return creds, nil
}

// Refresh exchanges the held refresh token for a new access token. Without a refresh token
// it does nothing. The refresh token itself is kept as is. A failure logs the session out
// before the error is returned, unless ctx ended before the server answered.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	refresh := m.creds.Refresh
	m.mu.Unlock()
	if refresh == "" {
		return nil
	}

	access, err := m.requestRefresh(ctx, refresh)
	m.metrics.SessionEvent("refresh", err)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.creds.Refresh != refresh {
		// The session was replaced or ended while the call was in flight.
		m.logger.Info("discarding refresh result for a superseded session")
		return err
	}
	if err != nil && abandoned(ctx, err) {
		m.logger.Info("refresh abandoned by caller, keeping session", "error", err)
		return err
	}
	if err != nil {
		m.logger.Warn("refresh failed, logging out", "error", transport.ExtractMessage(err))
		m.logoutLocked(ctx)
		return err
	}
	m.creds.Access = access
	m.bearer.Set(access)
	m.persistLocked(ctx)
	return nil
}

func (m *Manager) requestRefresh(ctx context.Context, refresh string) (string, error) {
	resp, err := m.client.Request(ctx, http.MethodPost, refreshPath, refreshRequest{Refresh: refresh}, nil)
	if err != nil {
		return "", apperrors.Wrap(CodeAuth, "session refresh failed", err)
	}
	var payload refreshResponse
	if err := resp.Decode(&payload); err != nil {
		return "", apperrors.Wrap(CodeAuth, "refresh response malformed", err)
	}
	if payload.Access == "" {
		return "", apperrors.Wrap(CodeAuth, "refresh response missing access token", nil)
	}
	return payload.Access, nil
}

// abandoned reports a refresh the caller gave up on before any server response arrived.
func abandoned(ctx context.Context, err error) bool {
	var apiErr *transport.Error
	if errors.As(err, &apiErr) && apiErr.Status > 0 {
		return false
	}
	return ctx.Err() != nil
}

// RefreshIfExpiring refreshes only when the access token expires within window. Tokens whose
// expiry cannot be read are left alone.
func (m *Manager) RefreshIfExpiring(ctx context.Context, window time.Duration) error {
	exp, ok := m.AccessExpiry()
	if !ok || !util.ExpiresWithin(exp, window, m.now()) {
		return nil
	}
	m.logger.Debug("access token close to expiry", "expires_at", exp)
	return m.Refresh(ctx)
}

// AccessExpiry reads the exp claim of the access token. The signature is not verified; the
// value only drives proactive refreshes.
func (m *Manager) AccessExpiry() (time.Time, bool) {
	m.mu.Lock()
	access := m.creds.Access
	m.mu.Unlock()
	if access == "" {
		return time.Time{}, false
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(access, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Logout clears both tokens, the bearer credential and the persisted record. It is safe to
// call when already logged out.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logoutLocked(ctx)
	m.metrics.SessionEvent("logout", nil)
}

func (m *Manager) logoutLocked(ctx context.Context) {
	m.creds = Credentials{}
	m.phase = PhaseIdle
	m.lastError = ""
	m.bearer.Clear()
	if err := m.store.Delete(ctx, m.key); err != nil {
		m.logger.Error("failed to delete credential record", "error", err)
	}
}

// Register creates an account. It never changes the current session.
func (m *Manager) Register(ctx context.Context, req RegisterRequest) (Account, error) {
	if strings.TrimSpace(req.Username) == "" {
		return Account{}, apperrors.Wrap(CodeInvalidInput, "username cannot be empty", nil)
	}
	if len(req.Password) < 8 {
		return Account{}, apperrors.Wrap(CodeInvalidInput, "password must be at least 8 characters", nil)
	}
	resp, err := m.client.Request(ctx, http.MethodPost, registerPath, req, nil)
	if err != nil {
		return Account{}, apperrors.Wrap(CodeAuth, "registration failed", err)
	}
	var account Account
	if err := resp.Decode(&account); err != nil {
		return Account{}, apperrors.Wrap(CodeAuth, "registration response malformed", err)
	}
	return account, nil
}

// IsAuthenticated is true iff an access token is held.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creds.Access != ""
}

// Credentials returns a copy of the current pair.
func (m *Manager) Credentials() Credentials {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creds
}

// State returns the display state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{
		Authenticated: m.creds.Access != "",
		Phase:         m.phase,
		LastError:     m.lastError,
	}
}

func (m *Manager) lastErrorSnapshot() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastError
}

// persistLocked writes the whole pair as one record. A failed write keeps the in-memory
// session usable for this process and is only logged.
func (m *Manager) persistLocked(ctx context.Context) {
	if !m.creds.Complete() {
		if err := m.store.Delete(ctx, m.key); err != nil {
			m.logger.Error("failed to delete credential record", "error", err)
		}
		return
	}
	payload, err := json.Marshal(m.creds)
	if err != nil {
		m.logger.Error("failed to encode credential record", "error", err)
		return
	}
	if err := m.store.Set(ctx, m.key, string(payload)); err != nil {
		m.logger.Error("failed to persist credential record", "error", err)
	}
}

func (m *Manager) restore(ctx context.Context) {
	raw, ok, err := m.store.Get(ctx, m.key)
	if errors.Is(err, ErrCorruptStore) {
		m.discardRecord(ctx, "unreadable credential store", err)
		return
	}
	if err != nil {
		m.logger.Warn("credential record unreadable, starting logged out", "error", err)
		return
	}
	if !ok {
		return
	}
	var creds Credentials
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		m.discardRecord(ctx, "credential record is not valid JSON", err)
		return
	}
	if !creds.Complete() {
		m.discardRecord(ctx, "credential record is incomplete", errors.New("missing token"))
		return
	}
	m.creds = creds
	m.bearer.Set(creds.Access)
	m.logger.Debug("restored persisted session")
}

func (m *Manager) discardRecord(ctx context.Context, reason string, cause error) {
	m.logger.Warn("discarding "+reason, "error", cause)
	if err := m.store.Delete(ctx, m.key); err != nil {
		m.logger.Error("failed to delete credential record", "error", err)
	}
}
