package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftlab/assessor/pkg/log"
)

// fakeCreds is an in-memory credential store recording ClearAuth calls.
type fakeCreds struct {
	token   string
	cleared bool
}

func (f *fakeCreds) Token() string { return f.token }

func (f *fakeCreds) ClearAuth() error {
	f.cleared = true
	f.token = ""

	return nil
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *fakeCreds) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	creds := &fakeCreds{token: "tok-123"}
	client := NewClient(server.URL, creds, log.WithModule("test"))

	return client, creds
}

func TestDoSendsBearerToken(t *testing.T) {
	var gotAuth string

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	})

	_, err := client.Do(t.Context(), "/assessments/a1", RequestOptions{})
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok-123", gotAuth)
}

func TestDoSkipsAuthWhenRequested(t *testing.T) {
	var gotAuth string

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	})

	_, err := client.Do(t.Context(), "/auth/login", RequestOptions{Method: http.MethodPost, NoAuth: true})
	require.NoError(t, err)

	assert.Empty(t, gotAuth)
}

func TestDoJSONEmptyBodyIsNoContent(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
	})

	var out map[string]string

	err := client.DoJSON(t.Context(), "/assessments/a1", RequestOptions{}, &out)
	require.ErrorIs(t, err, ErrNoContent)
	assert.Empty(t, out)
}

func TestDoJSONUnparseableBodyIsNoContent(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("<html>surprise</html>"))
	})

	var out map[string]string

	err := client.DoJSON(t.Context(), "/assessments/a1", RequestOptions{}, &out)
	require.ErrorIs(t, err, ErrNoContent)
}

func TestUnauthorizedOnAuthEndpointForcesLogout(t *testing.T) {
	client, creds := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	var loggedOut bool

	client.WithLogoutHandler(func() { loggedOut = true })

	_, err := client.Do(t.Context(), "/auth/login", RequestOptions{Method: http.MethodPost})
	require.Error(t, err)

	assert.True(t, IsAuthError(err))
	assert.True(t, creds.cleared)
	assert.True(t, loggedOut)
}

func TestUnauthorizedWithTokenPhraseForcesLogout(t *testing.T) {
	client, creds := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": "Token expired, please re-authenticate"}`))
	})

	_, err := client.Do(t.Context(), "/assessments/a1", RequestOptions{})
	require.Error(t, err)

	assert.True(t, IsAuthError(err))
	assert.True(t, creds.cleared)
}

func TestUnauthorizedWithoutTokenPhraseKeepsSession(t *testing.T) {
	client, creds := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": "you may not view this assessment"}`))
	})

	_, err := client.Do(t.Context(), "/assessments/a1", RequestOptions{})
	require.Error(t, err)

	assert.True(t, IsAuthError(err))
	assert.False(t, creds.cleared, "a resource-level 401 must not end the session")
	assert.Equal(t, "tok-123", creds.token)
}

func TestConflictCarriesExistingID(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"detail": "already exists", "existing_id": "a-42"}`))
	})

	_, err := client.Do(t.Context(), "/assessments", RequestOptions{Method: http.MethodPost})
	require.Error(t, err)

	assert.True(t, IsDuplicate(err))

	existingID, ok := DuplicateID(err)
	require.True(t, ok)
	assert.Equal(t, "a-42", existingID)
}

func TestRateLimitKind(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.Do(t.Context(), "/assessments", RequestOptions{Method: http.MethodPost})
	require.Error(t, err)

	assert.True(t, IsRateLimit(err))
	assert.True(t, IsTransient(err))
}

func TestProblemDetailSurfaced(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"title": "Bad Request", "status": 400, "detail": "company_name is required"}`))
	})

	_, err := client.Do(t.Context(), "/assessments", RequestOptions{Method: http.MethodPost})
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindValidation, apiErr.Kind)
	assert.Equal(t, "company_name is required", apiErr.Detail)
}

func TestUnreachableServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(server.URL, nil, log.WithModule("test"))

	_, err := client.Do(t.Context(), "/assessments", RequestOptions{})
	require.Error(t, err)

	assert.True(t, IsUnreachable(err))
	assert.True(t, IsTransient(err))

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, server.URL, apiErr.BaseURL)
}

func TestShouldLogout(t *testing.T) {
	assert.True(t, shouldLogout("/auth/login", ""))
	assert.True(t, shouldLogout("/auth/refresh", "anything"))
	assert.True(t, shouldLogout("/assessments/a1", "Invalid Token"))
	assert.True(t, shouldLogout("/assessments/a1", "the signature is invalid"))
	assert.False(t, shouldLogout("/assessments/a1", "you may not view this"))
	assert.False(t, shouldLogout("/assessments/a1", ""))
}

func TestKindForStatus(t *testing.T) {
	assert.Equal(t, KindValidation, kindForStatus(400))
	assert.Equal(t, KindValidation, kindForStatus(422))
	assert.Equal(t, KindAuth, kindForStatus(401))
	assert.Equal(t, KindForbidden, kindForStatus(403))
	assert.Equal(t, KindNotFound, kindForStatus(404))
	assert.Equal(t, KindDuplicate, kindForStatus(409))
	assert.Equal(t, KindRateLimit, kindForStatus(429))
	assert.Equal(t, KindUnavailable, kindForStatus(503))
	assert.Equal(t, KindServer, kindForStatus(500))
	assert.Equal(t, KindServer, kindForStatus(502))
}

func TestIsKindOnWrappedError(t *testing.T) {
	wrapped := errors.Join(errors.New("outer"), &Error{Kind: KindDuplicate, ExistingID: "a-1"})

	assert.True(t, IsDuplicate(wrapped))

	id, ok := DuplicateID(wrapped)
	assert.True(t, ok)
	assert.Equal(t, "a-1", id)
}
