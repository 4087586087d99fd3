package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/energosales/portal/internal/api/metrics"
	"github.com/energosales/portal/internal/core/domain"
	"github.com/energosales/portal/internal/core/ports"
)

const (
	DefaultPasswordMinLength = 8
	// bcrypt ignores everything past 72 bytes.
	passwordMaxBytes = 72
)

// AuthService implements registration, login, token verification and the
// admin user operations.
type AuthService struct {
	repo      ports.UserRepository
	tokens    *TokenIssuer
	revoked   ports.RevocationList
	minLength int
	log       zerolog.Logger
	now       func() time.Time
}

// AuthOption customises an AuthService.
type AuthOption func(*AuthService)

// WithPasswordMinLength overrides DefaultPasswordMinLength.
func WithPasswordMinLength(n int) AuthOption {
	return func(s *AuthService) {
		if n > 0 {
			s.minLength = n
		}
	}
}

// WithRevocationList enables token revocation on user deletion.
func WithRevocationList(rl ports.RevocationList) AuthOption {
	return func(s *AuthService) { s.revoked = rl }
}

// WithLogger attaches a logger; the default discards output.
func WithLogger(log zerolog.Logger) AuthOption {
	return func(s *AuthService) { s.log = log }
}

// WithClock replaces time.Now for the service and its token issuer.
func WithClock(now func() time.Time) AuthOption {
	return func(s *AuthService) {
		s.now = now
		s.tokens.now = now
	}
}

func NewAuthService(repo ports.UserRepository, tokens *TokenIssuer, opts ...AuthOption) *AuthService {
	s := &AuthService{
		repo:      repo,
		tokens:    tokens,
		minLength: DefaultPasswordMinLength,
		log:       zerolog.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a guest account. The caller must log in separately.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)

	if err := s.validateRegistration(name, email, password); err != nil {
		metrics.RegistrationsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.repo.Create(ctx, &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         domain.RoleGuest,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			metrics.RegistrationsTotal.WithLabelValues("conflict").Inc()
		} else {
			metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	metrics.RegistrationsTotal.WithLabelValues("created").Inc()
	s.log.Info().Int64("user_id", created.ID).Msg("user registered")
	return created, nil
}

func (s *AuthService) validateRegistration(name, email, password string) error {
	switch {
	case name == "":
		return domain.Invalid("name is required")
	case email == "":
		return domain.Invalid("email is required")
	case utf8.RuneCountInString(password) < s.minLength:
		return domain.Invalid("password is too short: minimum length is %d characters", s.minLength)
	case len(password) > passwordMaxBytes:
		return domain.Invalid("password is too long: maximum length is %d bytes", passwordMaxBytes)
	}
	return nil
}

// Login checks credentials and issues a session token for the matched user.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	// Blank fields are not special-cased: an empty email matches no account
	// and an empty password never matches a hash.
	email = normalizeEmail(email)

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.LoginAttemptsTotal.WithLabelValues("not_found").Inc()
		} else {
			metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		}
		return "", nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("bad_password").Inc()
		s.log.Info().Int64("user_id", user.ID).Msg("login failed")
		return "", nil, domain.ErrInvalidCredentials
	}

	token, _, err := s.tokens.Issue(user)
	if err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return "", nil, fmt.Errorf("issue token: %w", err)
	}

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	return token, user, nil
}

// VerifyToken validates signature and expiry, then consults the revocation
// list. A failed revocation lookup rejects the request.
func (s *AuthService) VerifyToken(ctx context.Context, token string) (*domain.Claims, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		if errors.Is(err, domain.ErrMissingToken) {
			metrics.TokenVerificationsTotal.WithLabelValues("missing").Inc()
		} else {
			metrics.TokenVerificationsTotal.WithLabelValues("invalid").Inc()
		}
		return nil, err
	}

	if s.revoked != nil {
		at, ok, err := s.revoked.RevokedAt(ctx, claims.UserID)
		if err != nil {
			metrics.TokenVerificationsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("revocation lookup: %w: %w", domain.ErrStorage, err)
		}
		if ok && !claims.IssuedAtTime().After(at) {
			metrics.TokenVerificationsTotal.WithLabelValues("revoked").Inc()
			return nil, domain.ErrInvalidToken
		}
	}

	metrics.TokenVerificationsTotal.WithLabelValues("valid").Inc()
	return claims, nil
}

// RequireRole passes claims through only if their role is in allowed.
func (s *AuthService) RequireRole(claims *domain.Claims, allowed ...domain.Role) error {
	if err := domain.RequireRole(claims, allowed...); err != nil {
		if errors.Is(err, domain.ErrForbidden) {
			metrics.AuthorizationDeniedTotal.WithLabelValues(claims.Role.String()).Inc()
		}
		return err
	}
	return nil
}

// GetAccount returns the caller's current record, which may be gone if the
// user was deleted after the token was issued.
func (s *AuthService) GetAccount(ctx context.Context, claims *domain.Claims) (*domain.User, error) {
	if claims == nil {
		return nil, domain.ErrMissingToken
	}
	return s.repo.FindByID(ctx, claims.UserID)
}

// ListUsers returns every account. Administrators only.
func (s *AuthService) ListUsers(ctx context.Context, claims *domain.Claims) ([]*domain.User, error) {
	if err := s.RequireRole(claims, domain.RoleAdmin); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

// DeleteUser removes the account with id and revokes its outstanding tokens.
// Deleting an id that does not exist succeeds without effect.
func (s *AuthService) DeleteUser(ctx context.Context, claims *domain.Claims, id int64) error {
	if err := s.RequireRole(claims, domain.RoleAdmin); err != nil {
		return err
	}
	if id <= 0 {
		return domain.Invalid("user id must be a positive integer")
	}

	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		metrics.UserDeletionsTotal.WithLabelValues("absent").Inc()
		s.log.Debug().Int64("user_id", id).Int64("admin_id", claims.UserID).Msg("delete of absent user ignored")
		return nil
	}

	if s.revoked != nil {
		if err := s.revoked.RevokeUser(ctx, id, s.now().UTC()); err != nil {
			return fmt.Errorf("revoke tokens of user %d: %w: %w", id, domain.ErrStorage, err)
		}
	}

	metrics.UserDeletionsTotal.WithLabelValues("deleted").Inc()
	s.log.Info().Int64("user_id", id).Int64("admin_id", claims.UserID).Msg("user deleted")
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
