package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNotAuthenticated is returned by authenticated calls made without a token.
	ErrNotAuthenticated = errors.New("session: not authenticated")
	// ErrStaleSession means the session changed (login or logout) while the
	// call was in flight; its response was discarded.
	ErrStaleSession = errors.New("session: changed while request was in flight")
)

// Decision is the outcome of Guard.
type Decision int

const (
	Allow Decision = iota
	RedirectLogin
	RedirectHome
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect to login"
	case RedirectHome:
		return "redirect to home"
	default:
		return "unknown"
	}
}

// State is the identity derived from the token. It is a hint for what to
// show; the server re-verifies every request.
type State struct {
	Authenticated bool
	UserID        int64
	Name          string
	Email         string
	Role          Role
	ExpiresAt     time.Time
}

type tokenClaims struct {
	jwt.RegisteredClaims

	UserID int64  `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
}

// Session owns the token and the state derived from it.
type Session struct {
	client *Client
	store  TokenStore
	now    func() time.Time

	mu    sync.Mutex
	token string
	state State
	// gen increments on every login and logout so in-flight responses can
	// tell whether the session they started under still exists.
	gen uint64
}

// Option customises a Session.
type Option func(*Session)

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

func New(client *Client, store TokenStore, opts ...Option) *Session {
	s := &Session{client: client, store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hydrate restores the session from the store without contacting the
// server. A missing token leaves the session unauthenticated. A token that
// cannot be decoded or has already expired is cleared.
func (s *Session) Hydrate() error {
	token, err := s.store.Load()
	if err != nil && !errors.Is(err, ErrNoToken) {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	s.token, s.state = "", State{}
	if token == "" {
		return nil
	}

	state, ok := decode(token)
	if !ok || s.expired(state) {
		return s.store.Clear()
	}
	s.token, s.state = token, state
	return nil
}

// Authenticate logs in and, on success, persists the token and derives the
// new state. On failure the current state is left untouched.
func (s *Session) Authenticate(ctx context.Context, email, password string) error {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	token, err := s.client.Login(ctx, email, password)
	if err != nil {
		return err
	}
	state, ok := decode(token)
	if !ok {
		return &APIError{Status: http.StatusOK, Message: "server issued an unreadable token"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return ErrStaleSession
	}
	if err := s.store.Save(token); err != nil {
		return err
	}
	s.gen++
	s.token, s.state = token, state
	return nil
}

// Logout clears the token and derived state. It is idempotent, and the
// in-memory state is cleared even if the store cannot be.
func (s *Session) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLocked()
}

func (s *Session) clearLocked() error {
	s.gen++
	s.token, s.state = "", State{}
	return s.store.Clear()
}

// State returns a copy of the current derived state. An expired token reads
// as unauthenticated.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Authenticated || s.expired(s.state) {
		return State{}
	}
	return s.state
}

// Guard decides whether a view requiring one of roles may be entered. With
// no roles any authenticated user is allowed. It is evaluated afresh on
// every call.
func (s *Session) Guard(roles ...Role) Decision {
	st := s.State()
	if !st.Authenticated {
		return RedirectLogin
	}
	if len(roles) == 0 {
		return Allow
	}
	for _, r := range roles {
		if st.Role == r {
			return Allow
		}
	}
	return RedirectHome
}

func (s *Session) Account(ctx context.Context) (*Account, error) {
	var out *Account
	err := s.call(func(token string) error {
		var err error
		out, err = s.client.Account(ctx, token)
		return err
	})
	return out, err
}

func (s *Session) ListUsers(ctx context.Context) ([]Account, error) {
	var out []Account
	err := s.call(func(token string) error {
		var err error
		out, err = s.client.ListUsers(ctx, token)
		return err
	})
	return out, err
}

func (s *Session) DeleteUser(ctx context.Context, id int64) error {
	return s.call(func(token string) error {
		return s.client.DeleteUser(ctx, token, id)
	})
}

func (s *Session) SubmitLead(ctx context.Context, lead Lead) error {
	return s.call(func(token string) error {
		return s.client.SubmitLead(ctx, token, lead)
	})
}

// call runs fn with the current token. A 401 forces a logout. If the session
// changed while fn ran, the outcome is discarded with ErrStaleSession.
func (s *Session) call(fn func(token string) error) error {
	s.mu.Lock()
	token, gen := s.token, s.gen
	s.mu.Unlock()
	if token == "" {
		return ErrNotAuthenticated
	}

	err := fn(token)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return ErrStaleSession
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		_ = s.clearLocked()
	}
	return err
}

func (s *Session) expired(st State) bool {
	return !st.ExpiresAt.IsZero() && !s.now().Before(st.ExpiresAt)
}

// decode reads the claims without verifying the signature.
func decode(token string) (State, bool) {
	var claims tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return State{}, false
	}
	st := State{
		Authenticated: true,
		UserID:        claims.UserID,
		Name:          claims.Name,
		Email:         claims.Email,
		Role:          claims.Role,
	}
	if claims.ExpiresAt != nil {
		st.ExpiresAt = claims.ExpiresAt.Time
	}
	return st, true
}
