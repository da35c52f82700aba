package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/yanqian/sunbalance/internal/infra/transport"
	apperrors "github.com/yanqian/sunbalance/pkg/errors"
)

func TestLoginPersistsPairAsOneRecord(t *testing.T) {
	api := newFakeAuthAPI(t)
	api.loginResponse = `{"access":"T1","refresh":"R1"}`
	mgr, store, bearer := newManagerUnderTest(t, api, nil)

	require.False(t, mgr.IsAuthenticated())
	require.NoError(t, mgr.Login(context.Background(), "a", "b"))

	require.True(t, mgr.IsAuthenticated())
	require.Equal(t, Credentials{Access: "T1", Refresh: "R1"}, mgr.Credentials())
	require.Equal(t, "T1", bearer.Token())
	require.Equal(t, State{Authenticated: true, Phase: PhaseIdle}, mgr.State())
	require.Equal(t, loginRequest{Username: "a", Password: "b"}, api.lastLogin)

	var record map[string]string
	require.NoError(t, json.Unmarshal([]byte(store.values[DefaultStorageKey]), &record))
	require.Equal(t, map[string]string{"access": "T1", "refresh": "R1"}, record)
}

func TestLoginFailureLeavesSessionUntouched(t *testing.T) {
	api := newFakeAuthAPI(t)
	api.loginStatus = http.StatusUnauthorized
	api.loginResponse = `{"detail":"No active account found with the given credentials"}`
	persisted := `{"access":"OLD","refresh":"OLDR"}`
	mgr, store, bearer := newManagerUnderTest(t, api, map[string]string{DefaultStorageKey: persisted})

	err := mgr.Login(context.Background(), "a", "wrong")
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, CodeAuth))

	var apiErr *transport.Error
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)

	require.Equal(t, Credentials{Access: "OLD", Refresh: "OLDR"}, mgr.Credentials())
	require.Equal(t, "OLD", bearer.Token())
	require.Equal(t, persisted, store.values[DefaultStorageKey])
	state := mgr.State()
	require.Equal(t, PhaseError, state.Phase)
	require.Equal(t, "No active account found with the given credentials", state.LastError)
}

func TestLoginRejectsHalfPair(t *testing.T) {
	api := newFakeAuthAPI(t)
	api.loginResponse = `{"access":"T1"}`
	mgr, store, _ := newManagerUnderTest(t, api, nil)

	err := mgr.Login(context.Background(), "a", "b")
	require.True(t, apperrors.IsCode(err, CodeAuth))
	require.False(t, mgr.IsAuthenticated())
	require.Empty(t, store.values)
	require.Equal(t, "login response missing tokens", mgr.State().LastError)
}

func TestLogoutIsIdempotent(t *testing.T) {
	api := newFakeAuthAPI(t)
	mgr, store, bearer := newManagerUnderTest(t, api, map[string]string{DefaultStorageKey: `{"access":"T1","refresh":"R1"}`})
	require.True(t, mgr.IsAuthenticated())

	mgr.Logout(context.Background())
	once := mgr.State()
	mgr.Logout(context.Background())

	require.Equal(t, once, mgr.State())
	require.Equal(t, State{Phase: PhaseIdle}, mgr.State())
	require.Zero(t, mgr.Credentials())
	require.Empty(t, bearer.Token())
	require.NotContains(t, store.values, DefaultStorageKey)
}

func TestRefreshKeepsRefreshToken(t *testing.T) {
	api := newFakeAuthAPI(t)
	api.refreshResponse = `{"access":"T2"}`
	mgr, store, bearer := newManagerUnderTest(t, api, map[string]string{DefaultStorageKey: `{"access":"T1","refresh":"R1"}`})

	require.NoError(t, mgr.Refresh(context.Background()))
	require.Equal(t, "R1", api.lastRefresh.Refresh)
	require.Equal(t, Credentials{Access: "T2", Refresh: "R1"}, mgr.Credentials())
	require.Equal(t, "T2", bearer.Token())
	require.JSONEq(t, `{"access":"T2","refresh":"R1"}`, store.values[DefaultStorageKey])
}

func TestRefreshWithoutTokenIsNoop(t *testing.T) {
	api := newFakeAuthAPI(t)
	mgr, _, _ := newManagerUnderTest(t, api, nil)

	require.NoError(t, mgr.Refresh(context.Background()))
	require.Zero(t, api.refreshCalls)
}

func TestRefreshFailureLogsOut(t *testing.T) {
	api := newFakeAuthAPI(t)
	api.refreshStatus = http.StatusUnauthorized
	api.refreshResponse = `{"detail":"Token is invalid or expired","code":"token_not_valid"}`
	mgr, store, bearer := newManagerUnderTest(t, api, map[string]string{DefaultStorageKey: `{"access":"T1","refresh":"R1"}`})

	err := mgr.Refresh(context.Background())
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, CodeAuth))
	require.Equal(t, "Token is invalid or expired", transport.ExtractMessage(err))

	require.False(t, mgr.IsAuthenticated())
	require.Zero(t, mgr.Credentials())
	require.Empty(t, bearer.Token())
	require.NotContains(t, store.values, DefaultStorageKey)
	require.Equal(t, PhaseIdle, mgr.State().Phase)
}

func TestRefreshCancelledByCallerKeepsSession(t *testing.T) {
	api := newFakeAuthAPI(t)
	persisted := `{"access":"T1","refresh":"R1"}`
	mgr, store, bearer := newManagerUnderTest(t, api, map[string]string{DefaultStorageKey: persisted})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := mgr.Refresh(ctx)
	require.Error(t, err)

	require.Zero(t, api.refreshCalls)
	require.True(t, mgr.IsAuthenticated())
	require.Equal(t, Credentials{Access: "T1", Refresh: "R1"}, mgr.Credentials())
	require.Equal(t, "T1", bearer.Token())
	require.Equal(t, persisted, store.values[DefaultStorageKey])
}

func TestRefreshWithEmptyAccessLogsOut(t *testing.T) {
	api := newFakeAuthAPI(t)
	api.refreshResponse = `{}`
	mgr, store, _ := newManagerUnderTest(t, api, map[string]string{DefaultStorageKey: `{"access":"T1","refresh":"R1"}`})

	require.Error(t, mgr.Refresh(context.Background()))
	require.False(t, mgr.IsAuthenticated())
	require.Empty(t, store.values)
}

func TestStartupDiscardsCorruptRecord(t *testing.T) {
	api := newFakeAuthAPI(t)
	mgr, store, bearer := newManagerUnderTest(t, api, map[string]string{DefaultStorageKey: `{"access":`})

	require.False(t, mgr.IsAuthenticated())
	require.Empty(t, bearer.Token())
	require.NotContains(t, store.values, DefaultStorageKey)
}

func TestStartupDiscardsHalfPopulatedRecord(t *testing.T) {
	api := newFakeAuthAPI(t)
	mgr, store, _ := newManagerUnderTest(t, api, map[string]string{DefaultStorageKey: `{"access":"T1","refresh":null}`})

	require.False(t, mgr.IsAuthenticated())
	require.NotContains(t, store.values, DefaultStorageKey)
}

func TestStartupRestoresRecordAndBearer(t *testing.T) {
	api := newFakeAuthAPI(t)
	mgr, _, bearer := newManagerUnderTest(t, api, map[string]string{DefaultStorageKey: `{"access":"T1","refresh":"R1"}`})

	require.True(t, mgr.IsAuthenticated())
	require.Equal(t, "T1", bearer.Token())
}

func TestStartupResetsCorruptStore(t *testing.T) {
	api := newFakeAuthAPI(t)
	store := newMemStore(map[string]string{DefaultStorageKey: "ignored"})
	store.getErr = fmt.Errorf("decode store: %w", ErrCorruptStore)
	bearer := transport.NewBearer()
	mgr := NewManager(context.Background(), newTestClient(api.server.URL, bearer), bearer, store, Options{}, newTestLogger())

	require.False(t, mgr.IsAuthenticated())
	require.NotContains(t, store.values, DefaultStorageKey)
}

func TestStartupWithUnreadableStoreStartsLoggedOut(t *testing.T) {
	api := newFakeAuthAPI(t)
	store := newMemStore(nil)
	store.getErr = errors.New("disk on fire")
	bearer := transport.NewBearer()
	mgr := NewManager(context.Background(), newTestClient(api.server.URL, bearer), bearer, store, Options{}, newTestLogger())

	require.False(t, mgr.IsAuthenticated())
}

func TestAccessExpiryAndProactiveRefresh(t *testing.T) {
	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	soon := signedToken(t, now.Add(30*time.Second))
	later := signedToken(t, now.Add(time.Hour))

	api := newFakeAuthAPI(t)
	api.refreshResponse = `{"access":"` + later + `"}`
	mgr, _, _ := newManagerUnderTest(t, api, map[string]string{DefaultStorageKey: `{"access":"` + soon + `","refresh":"R1"}`})
	mgr.now = func() time.Time { return now }

	exp, ok := mgr.AccessExpiry()
	require.True(t, ok)
	require.Equal(t, now.Add(30*time.Second).Unix(), exp.Unix())

	require.NoError(t, mgr.RefreshIfExpiring(context.Background(), time.Minute))
	require.Equal(t, 1, api.refreshCalls)
	require.Equal(t, later, mgr.Credentials().Access)

	require.NoError(t, mgr.RefreshIfExpiring(context.Background(), time.Minute))
	require.Equal(t, 1, api.refreshCalls)
}

func TestAccessExpiryUnknownForOpaqueToken(t *testing.T) {
	api := newFakeAuthAPI(t)
	mgr, _, _ := newManagerUnderTest(t, api, map[string]string{DefaultStorageKey: `{"access":"opaque","refresh":"R1"}`})

	_, ok := mgr.AccessExpiry()
	require.False(t, ok)
	require.NoError(t, mgr.RefreshIfExpiring(context.Background(), time.Hour))
	require.Zero(t, api.refreshCalls)
}

func TestRegisterDoesNotTouchSession(t *testing.T) {
	api := newFakeAuthAPI(t)
	mgr, store, _ := newManagerUnderTest(t, api, nil)

	account, err := mgr.Register(context.Background(), RegisterRequest{Username: "sunny", Email: "sunny@example.com", Password: "password123"})
	require.NoError(t, err)
	require.Equal(t, Account{ID: 3, Username: "sunny", Email: "sunny@example.com"}, account)
	require.False(t, mgr.IsAuthenticated())
	require.Empty(t, store.values)

	_, err = mgr.Register(context.Background(), RegisterRequest{Username: "sunny", Password: "short"})
	require.True(t, apperrors.IsCode(err, CodeInvalidInput))
}

func newManagerUnderTest(t *testing.T, api *fakeAuthAPI, seed map[string]string) (*Manager, *memStore, *transport.Bearer) {
	t.Helper()
	store := newMemStore(seed)
	bearer := transport.NewBearer()
	mgr := NewManager(context.Background(), newTestClient(api.server.URL, bearer), bearer, store, Options{}, newTestLogger())
	return mgr, store, bearer
}

func newTestClient(baseURL string, bearer *transport.Bearer) *transport.Client {
	return transport.NewClient(transport.Options{BaseURL: baseURL, Timeout: 5 * time.Second}, bearer, newTestLogger())
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

type fakeAuthAPI struct {
	server *httptest.Server

	mu              sync.Mutex
	loginStatus     int
	loginResponse   string
	refreshStatus   int
	refreshResponse string
	lastLogin       loginRequest
	lastRefresh     refreshRequest
	refreshCalls    int
}

func newFakeAuthAPI(t *testing.T) *fakeAuthAPI {
	t.Helper()
	api := &fakeAuthAPI{
		loginStatus:     http.StatusOK,
		loginResponse:   `{"access":"T1","refresh":"R1"}`,
		refreshStatus:   http.StatusOK,
		refreshResponse: `{"access":"T2"}`,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/token/", func(w http.ResponseWriter, r *http.Request) {
		api.mu.Lock()
		defer api.mu.Unlock()
		_ = json.NewDecoder(r.Body).Decode(&api.lastLogin)
		w.WriteHeader(api.loginStatus)
		_, _ = w.Write([]byte(api.loginResponse))
	})
	mux.HandleFunc("POST /auth/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		api.mu.Lock()
		defer api.mu.Unlock()
		api.refreshCalls++
		_ = json.NewDecoder(r.Body).Decode(&api.lastRefresh)
		w.WriteHeader(api.refreshStatus)
		_, _ = w.Write([]byte(api.refreshResponse))
	})
	mux.HandleFunc("POST /auth/register/", func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(Account{ID: 3, Username: req.Username, Email: req.Email})
	})
	api.server = httptest.NewServer(mux)
	t.Cleanup(api.server.Close)
	return api
}

type memStore struct {
	mu     sync.Mutex
	values map[string]string
	getErr error
}

func newMemStore(seed map[string]string) *memStore {
	values := make(map[string]string)
	for k, v := range seed {
		values[k] = v
	}
	return &memStore{values: values}
}

func (s *memStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return "", false, s.getErr
	}
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *memStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}
