package ports

import (
	"context"
	"time"
)

// RevocationList records the instant after which a user's previously issued
// tokens stop being accepted.
type RevocationList interface {
	RevokeUser(ctx context.Context, userID int64, at time.Time) error
	// RevokedAt returns the revocation instant, if any.
	RevokedAt(ctx context.Context, userID int64) (time.Time, bool, error)
}
