package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staffdesk/client/internal/credstore"
	"staffdesk/client/internal/state"
)

func newTestClient(t *testing.T, serverURL string, creds credstore.Store) *Client {
	t.Helper()
	client, err := New(serverURL, Options{
		Credentials: creds,
		CSRFToken:   "csrf-token",
	})
	require.NoError(t, err)
	return client
}

func TestLoginSuccess(t *testing.T) {
	var captured *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "T"})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, credstore.NewMemoryStore())
	token, err := client.Login(context.Background(), "marie", "secret")
	require.NoError(t, err)
	assert.Equal(t, "T", token)

	require.NotNil(t, captured)
	assert.Equal(t, http.MethodPost, captured.Method)
	assert.Equal(t, "/api/v1/login/", captured.URL.Path)
	assert.Equal(t, "application/json", captured.Header.Get("Content-Type"))
	assert.Equal(t, "csrf-token", captured.Header.Get("X-CSRFToken"))
	assert.Empty(t, captured.Header.Get("Authorization"), "login must not carry a Bearer token")
}

func TestLoginRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid credentials"})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, credstore.NewMemoryStore())
	_, err := client.Login(context.Background(), "marie", "wrong")
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, state.ErrorKindRejected, apiErr.Kind, "a 401 without a token is a rejection, not a session expiry")
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "invalid credentials", UserMessage(apiErr.Detail))
}

func TestLoginMissingToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, credstore.NewMemoryStore())
	_, err := client.Login(context.Background(), "marie", "secret")
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, state.ErrorKindMalformed, apiErr.Kind)
}

func TestLoginInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>gateway</html>"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, credstore.NewMemoryStore())
	_, err := client.Login(context.Background(), "marie", "secret")
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, state.ErrorKindMalformed, apiErr.Kind)
}

func TestLoginUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	client := newTestClient(t, server.URL, credstore.NewMemoryStore())
	_, err := client.Login(context.Background(), "marie", "secret")
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, state.ErrorKindUnreachable, apiErr.Kind)
}

func TestCreateEmployeeSendsAuthHeaders(t *testing.T) {
	var captured *http.Request
	var decoded map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Clone(context.Background())
		_ = json.NewDecoder(r.Body).Decode(&decoded)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	creds := credstore.NewMemoryStore()
	require.NoError(t, creds.Set("T"))
	client := newTestClient(t, server.URL, creds)

	fields := map[string]string{"first_name": "Marie", "last_name": "Dupont"}
	require.NoError(t, client.CreateEmployee(context.Background(), fields))

	require.NotNil(t, captured)
	assert.Equal(t, http.MethodPost, captured.Method)
	assert.Equal(t, "/api/employees/", captured.URL.Path)
	assert.Equal(t, "Bearer T", captured.Header.Get("Authorization"))
	assert.Equal(t, "csrf-token", captured.Header.Get("X-CSRFToken"))
	assert.Equal(t, "application/json", captured.Header.Get("Content-Type"))
	assert.Equal(t, fields, decoded)
}

func TestCreateEmployeeWithoutTokenOmitsAuth(t *testing.T) {
	var captured *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Clone(context.Background())
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, credstore.NewMemoryStore())
	require.NoError(t, client.CreateEmployee(context.Background(), map[string]string{"first_name": "Marie"}))
	require.NotNil(t, captured)
	assert.Empty(t, captured.Header.Get("Authorization"))
}

func TestCreateEmployeeRejectedCarriesDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "last_name is required"})
	}))
	defer server.Close()

	creds := credstore.NewMemoryStore()
	require.NoError(t, creds.Set("T"))
	client := newTestClient(t, server.URL, creds)

	err := client.CreateEmployee(context.Background(), map[string]string{"first_name": "Marie"})
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, state.ErrorKindRejected, apiErr.Kind)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, apiErr.Detail, "last_name is required")
	assert.Equal(t, "last_name is required", UserMessage(apiErr.Detail))
}

func TestCreateEmployeeExpiredToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	creds := credstore.NewMemoryStore()
	require.NoError(t, creds.Set("stale"))
	client := newTestClient(t, server.URL, creds)

	err := client.CreateEmployee(context.Background(), map[string]string{"first_name": "Marie"})
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, state.ErrorKindUnauthorized, apiErr.Kind)

	// клиент только классифицирует исход, хранилище остаётся нетронутым
	token, ok := creds.Get()
	require.True(t, ok)
	assert.Equal(t, "stale", token)
}

func TestSendReturnsRawBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]int{"count": 3})
	}))
	defer server.Close()

	creds := credstore.NewMemoryStore()
	require.NoError(t, creds.Set("T"))
	client := newTestClient(t, server.URL, creds)

	raw, err := client.Send(context.Background(), http.MethodGet, "/api/employees/", nil)
	require.NoError(t, err)
	var body map[string]int
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, 3, body["count"])
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New("", Options{})
	assert.Error(t, err)
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &Error{Op: "Login", Kind: state.ErrorKindUnreachable, Err: cause}
	assert.ErrorIs(t, err, cause)
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name   string
		detail string
		want   string
	}{
		{"error field", `{"error":"invalid credentials"}`, "invalid credentials"},
		{"detail field", `{"detail":"not found"}`, "not found"},
		{"error wins over detail", `{"error":"a","detail":"b"}`, "a"},
		{"plain text", "service unavailable", "service unavailable"},
		{"unrelated json", `{"code":42}`, `{"code":42}`},
		{"empty", "   ", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, UserMessage(tc.detail))
		})
	}
}
