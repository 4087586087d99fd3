package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func signToken(t *testing.T, id int64, name string, role Role, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(exp.Add(-time.Hour)),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		UserID: id,
		Name:   name,
		Email:  strings.ToLower(name) + "@example.com",
		Role:   role,
	})
	s, err := tok.SignedString([]byte("server-secret"))
	require.NoError(t, err)
	return s
}

// fakeAPI is a minimal stand-in for the portal server.
type fakeAPI struct {
	t        *testing.T
	tokens   map[string]string // email -> token issued on login
	rejected map[string]bool   // tokens answered with 401
	hold     chan struct{}     // when set, /account waits on it
	entered  chan struct{}
	mu       sync.Mutex
	deleted  []string
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	f := &fakeAPI{t: t, tokens: map[string]string{}, rejected: map[string]bool{}}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	writeJSON := func(status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	switch {
	case r.URL.Path == "/login":
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		tok, ok := f.tokens[in["email"]]
		if !ok {
			writeJSON(http.StatusNotFound, map[string]string{"error": "user not found"})
			return
		}
		if in["password"] != "right-password" {
			writeJSON(http.StatusUnauthorized, map[string]string{"error": "invalid password"})
			return
		}
		writeJSON(http.StatusOK, map[string]string{"token": tok})
	case f.rejected[bearer]:
		writeJSON(http.StatusUnauthorized, map[string]string{"error": "invalid token"})
	case r.URL.Path == "/account":
		if f.hold != nil {
			f.entered <- struct{}{}
			<-f.hold
		}
		writeJSON(http.StatusOK, Account{ID: 1, Name: "Alice", Email: "alice@example.com"})
	case r.URL.Path == "/admin/users":
		writeJSON(http.StatusForbidden, map[string]string{"error": "access forbidden"})
	case strings.HasPrefix(r.URL.Path, "/admin/users/"):
		f.mu.Lock()
		f.deleted = append(f.deleted, strings.TrimPrefix(r.URL.Path, "/admin/users/"))
		f.mu.Unlock()
		writeJSON(http.StatusOK, map[string]bool{"success": true})
	default:
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func newSession(t *testing.T, srv *httptest.Server, store TokenStore) *Session {
	t.Helper()
	return New(NewClient(srv.URL, srv.Client()), store, WithClock(func() time.Time { return fixedNow }))
}

func TestHydrate_NoToken(t *testing.T) {
	_, srv := newFakeAPI(t)
	s := newSession(t, srv, NewMemoryStore())

	require.NoError(t, s.Hydrate())
	require.False(t, s.State().Authenticated)
	require.Equal(t, RedirectLogin, s.Guard())
}

func TestHydrate_DecodesPersistedToken(t *testing.T) {
	_, srv := newFakeAPI(t)
	store := NewMemoryStore()
	require.NoError(t, store.Save(signToken(t, 5, "Olga", RoleOperator, fixedNow.Add(time.Hour))))

	s := newSession(t, srv, store)
	require.NoError(t, s.Hydrate())

	st := s.State()
	require.True(t, st.Authenticated)
	require.Equal(t, int64(5), st.UserID)
	require.Equal(t, "Olga", st.Name)
	require.Equal(t, RoleOperator, st.Role)
}

func TestHydrate_ClearsUnreadableAndExpiredTokens(t *testing.T) {
	_, srv := newFakeAPI(t)
	for _, token := range []string{"garbage", signToken(t, 5, "Olga", RoleOperator, fixedNow.Add(-time.Minute))} {
		store := NewMemoryStore()
		require.NoError(t, store.Save(token))

		s := newSession(t, srv, store)
		require.NoError(t, s.Hydrate())
		require.False(t, s.State().Authenticated)

		_, err := store.Load()
		require.ErrorIs(t, err, ErrNoToken)
	}
}

func TestAuthenticate_Success(t *testing.T) {
	api, srv := newFakeAPI(t)
	token := signToken(t, 1, "Admin", RoleAdmin, fixedNow.Add(time.Hour))
	api.tokens["admin@example.com"] = token
	store := NewMemoryStore()
	s := newSession(t, srv, store)

	require.NoError(t, s.Authenticate(context.Background(), "admin@example.com", "right-password"))

	st := s.State()
	require.True(t, st.Authenticated)
	require.Equal(t, RoleAdmin, st.Role)
	saved, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, token, saved)
}

func TestAuthenticate_FailureLeavesStateUntouched(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.tokens["alice@example.com"] = signToken(t, 2, "Alice", RoleGuest, fixedNow.Add(time.Hour))
	store := NewMemoryStore()
	existing := signToken(t, 9, "Olga", RoleOperator, fixedNow.Add(time.Hour))
	require.NoError(t, store.Save(existing))
	s := newSession(t, srv, store)
	require.NoError(t, s.Hydrate())

	err := s.Authenticate(context.Background(), "alice@example.com", "wrong")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)
	require.Equal(t, "invalid password", apiErr.Message)

	require.Equal(t, "Olga", s.State().Name)
	saved, _ := store.Load()
	require.Equal(t, existing, saved)
}

func TestLogout_Idempotent(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.tokens["admin@example.com"] = signToken(t, 1, "Admin", RoleAdmin, fixedNow.Add(time.Hour))
	s := newSession(t, srv, NewMemoryStore())
	require.NoError(t, s.Authenticate(context.Background(), "admin@example.com", "right-password"))

	require.NoError(t, s.Logout())
	first := s.State()
	require.NoError(t, s.Logout())
	require.Equal(t, first, s.State())
	require.Equal(t, State{}, first)
	require.Equal(t, RedirectLogin, s.Guard(RoleAdmin))
}

func TestGuard(t *testing.T) {
	_, srv := newFakeAPI(t)
	store := NewMemoryStore()
	require.NoError(t, store.Save(signToken(t, 5, "Olga", RoleOperator, fixedNow.Add(time.Hour))))

	now := fixedNow
	s := New(NewClient(srv.URL, srv.Client()), store, WithClock(func() time.Time { return now }))
	require.NoError(t, s.Hydrate())

	require.Equal(t, Allow, s.Guard())
	require.Equal(t, Allow, s.Guard(RoleOperator))
	require.Equal(t, RedirectHome, s.Guard(RoleAdmin))

	// re-evaluated on every call: expiry flips the decision
	now = fixedNow.Add(2 * time.Hour)
	require.Equal(t, RedirectLogin, s.Guard(RoleOperator))
}

func TestCall_UnauthorizedForcesLogout(t *testing.T) {
	api, srv := newFakeAPI(t)
	token := signToken(t, 1, "Alice", RoleGuest, fixedNow.Add(time.Hour))
	api.rejected[token] = true
	store := NewMemoryStore()
	require.NoError(t, store.Save(token))
	s := newSession(t, srv, store)
	require.NoError(t, s.Hydrate())

	_, err := s.Account(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)

	require.False(t, s.State().Authenticated)
	_, err = store.Load()
	require.ErrorIs(t, err, ErrNoToken)
}

func TestCall_ForbiddenKeepsSession(t *testing.T) {
	_, srv := newFakeAPI(t)
	store := NewMemoryStore()
	require.NoError(t, store.Save(signToken(t, 1, "Alice", RoleGuest, fixedNow.Add(time.Hour))))
	s := newSession(t, srv, store)
	require.NoError(t, s.Hydrate())

	_, err := s.ListUsers(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusForbidden, apiErr.Status)
	require.True(t, s.State().Authenticated)
}

func TestCall_WithoutToken(t *testing.T) {
	_, srv := newFakeAPI(t)
	s := newSession(t, srv, NewMemoryStore())
	require.ErrorIs(t, s.DeleteUser(context.Background(), 3), ErrNotAuthenticated)
}

func TestCall_StaleResponseAfterLogout(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.hold = make(chan struct{})
	api.entered = make(chan struct{})
	store := NewMemoryStore()
	require.NoError(t, store.Save(signToken(t, 1, "Alice", RoleGuest, fixedNow.Add(time.Hour))))
	s := newSession(t, srv, store)
	require.NoError(t, s.Hydrate())

	done := make(chan error, 1)
	go func() {
		_, err := s.Account(context.Background())
		done <- err
	}()

	<-api.entered
	require.NoError(t, s.Logout())
	close(api.hold)

	require.ErrorIs(t, <-done, ErrStaleSession)
	require.False(t, s.State().Authenticated)
}

func TestDeleteUser(t *testing.T) {
	api, srv := newFakeAPI(t)
	store := NewMemoryStore()
	require.NoError(t, store.Save(signToken(t, 1, "Admin", RoleAdmin, fixedNow.Add(time.Hour))))
	s := newSession(t, srv, store)
	require.NoError(t, s.Hydrate())

	require.NoError(t, s.DeleteUser(context.Background(), 42))
	require.Equal(t, []string{"42"}, api.deleted)
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portal", "token")
	fs := NewFileStore(path)

	_, err := fs.Load()
	require.ErrorIs(t, err, ErrNoToken)

	require.NoError(t, fs.Save("abc.def.ghi"))
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := fs.Load()
	require.NoError(t, err)
	require.Equal(t, "abc.def.ghi", got)

	require.NoError(t, fs.Clear())
	require.NoError(t, fs.Clear())
	_, err = fs.Load()
	require.ErrorIs(t, err, ErrNoToken)
}

func TestAPIError_Fallback(t *testing.T) {
	err := newAPIError(http.StatusBadGateway, []byte("<html>"))
	require.Equal(t, "request failed: bad gateway", err.Message)

	err = newAPIError(http.StatusNotFound, []byte(`{"message":"user not found"}`))
	require.Equal(t, "user not found", err.Message)

	require.True(t, errors.As(error(err), new(*APIError)))
}
