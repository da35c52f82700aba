package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/yanqian/sunbalance/pkg/errors"
	"github.com/yanqian/sunbalance/pkg/metrics"
)

func TestClientAttachesBearerOnceSet(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		require.NotEmpty(t, r.Header.Get("X-Request-ID"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	bearer := NewBearer()
	client := newTestClient(srv.URL, bearer)

	_, err := client.Request(context.Background(), http.MethodGet, "/profiles/items/", nil, nil)
	require.NoError(t, err)

	bearer.Set("T1")
	_, err = client.Request(context.Background(), http.MethodGet, "/profiles/items/", nil, nil)
	require.NoError(t, err)

	bearer.Clear()
	_, err = client.Request(context.Background(), http.MethodGet, "/profiles/items/", nil, nil)
	require.NoError(t, err)

	require.Equal(t, []string{"", "Bearer T1", ""}, seen)
}

func TestClientSendsJSONBodyAndQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/recommendation/today/", r.URL.Path)
		require.Equal(t, "7", r.URL.Query().Get("profile_id"))
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "a", body["username"])
		_, _ = w.Write([]byte(`{"value":42}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL+"/api/", NewBearer())
	resp, err := client.Request(context.Background(), http.MethodPost, "/recommendation/today/",
		map[string]string{"username": "a"}, url.Values{"profile_id": []string{"7"}})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.Status)

	var out struct {
		Value int `json:"value"`
	}
	require.NoError(t, resp.Decode(&out))
	require.Equal(t, 42, out.Value)
}

func TestClientNormalizesStatusErrors(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{name: "detail wins", status: 401, body: `{"detail":"No active account found","error":"ignored"}`, message: "No active account found"},
		{name: "error string", status: 400, body: `{"error":"bad profile"}`, message: "bad profile"},
		{name: "error envelope", status: 502, body: `{"error":{"code":"upstream","message":"uv service down"}}`, message: "uv service down"},
		{name: "detail list", status: 400, body: `{"detail":["first","second"]}`, message: "first second"},
		{name: "plain text", status: 500, body: `Internal Server Error`, message: "request failed with status code 500"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL, NewBearer()).Request(context.Background(), http.MethodGet, "/x/", nil, nil)
			require.Error(t, err)

			var apiErr *Error
			require.True(t, errors.As(err, &apiErr))
			require.Equal(t, tc.status, apiErr.Status)
			require.Equal(t, tc.message, ExtractMessage(err))
		})
	}
}

func TestClientNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	_, err := newTestClient(base, NewBearer()).Request(context.Background(), http.MethodGet, "/x/", nil, nil)
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	require.Zero(t, apiErr.Status)
	require.NotEmpty(t, ExtractMessage(err))
	require.NotEqual(t, FallbackMessage, ExtractMessage(err))
}

func TestExtractMessageThroughWrappers(t *testing.T) {
	apiErr := &Error{Method: "POST", Path: "/auth/token/", Status: 401, Detail: "Token is invalid or expired"}
	wrapped := apperrors.Wrap("auth_error", "refresh failed", apiErr)
	require.Equal(t, "Token is invalid or expired", ExtractMessage(fmt.Errorf("cli: %w", wrapped)))

	require.Equal(t, "plain failure", ExtractMessage(errors.New("plain failure")))
	require.Equal(t, FallbackMessage, ExtractMessage(errors.New("  ")))
	require.Equal(t, FallbackMessage, ExtractMessage(&Error{}))
	require.Equal(t, "", ExtractMessage(nil))
}

func TestRouteLabel(t *testing.T) {
	require.Equal(t, "/profiles/items/:id/", routeLabel("/profiles/items/12/"))
	require.Equal(t, "/auth/token/refresh/", routeLabel("/auth/token/refresh/"))
}

func TestClientRateLimiterHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient(Options{BaseURL: srv.URL, RequestsPerSecond: 1, Burst: 1}, NewBearer(), newTestLogger())
	_, err := client.Request(context.Background(), http.MethodGet, "/x/", nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = client.Request(ctx, http.MethodGet, "/x/", nil, nil)
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	require.Zero(t, apiErr.Status)
}

func newTestClient(baseURL string, bearer *Bearer) *Client {
	return NewClient(Options{BaseURL: baseURL, Timeout: 5 * time.Second, Metrics: metrics.NewRecorder()}, bearer, newTestLogger())
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClientVerbHelpers(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_, _ = w.Write([]byte(`{"id":5,"name":"Kid"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, NewBearer())
	ctx := context.Background()

	resp, err := client.Get(ctx, "/profiles/items/5/", nil)
	require.NoError(t, err)
	type item struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	got, err := DecodeJSON[item](resp)
	require.NoError(t, err)
	require.Equal(t, item{ID: 5, Name: "Kid"}, got)

	_, err = client.Post(ctx, "/profiles/items/", map[string]string{"name": "Kid"})
	require.NoError(t, err)
	_, err = client.Patch(ctx, "/profiles/items/5/", map[string]string{"name": "Kid"})
	require.NoError(t, err)
	resp, err = client.Delete(ctx, "/profiles/items/5/")
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.Status)
	_, err = DecodeJSON[item](resp)
	require.Error(t, err)

	require.Equal(t, []string{
		"GET /profiles/items/5/",
		"POST /profiles/items/",
		"PATCH /profiles/items/5/",
		"DELETE /profiles/items/5/",
	}, calls)
}
