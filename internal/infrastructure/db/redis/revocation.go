package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationList stores, per user, the instant up to which issued tokens are
// void. Entries expire after the token TTL, when every token they cover has
// expired on its own.
// Key format: <prefix>revoked:user:<id>
type RevocationList struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRevocationList creates a RevocationList whose keys start with keyPrefix
// and live for tokenTTL.
func NewRevocationList(client *redis.Client, keyPrefix string, tokenTTL time.Duration) *RevocationList {
	return &RevocationList{client: client, prefix: keyPrefix, ttl: tokenTTL}
}

// RevokeUser voids every token issued to userID at or before at.
func (r *RevocationList) RevokeUser(ctx context.Context, userID int64, at time.Time) error {
	if err := r.client.Set(ctx, r.key(userID), at.Unix(), r.ttl).Err(); err != nil {
		return fmt.Errorf("revoke user %d: %w", userID, err)
	}
	return nil
}

// RevokedAt returns the revocation instant for userID, if one is recorded.
func (r *RevocationList) RevokedAt(ctx context.Context, userID int64) (time.Time, bool, error) {
	val, err := r.client.Get(ctx, r.key(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("revocation lookup: %w", err)
	}

	ts, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("revocation entry for user %d: %w", userID, err)
	}
	return time.Unix(ts, 0).UTC(), true, nil
}

func (r *RevocationList) key(userID int64) string {
	return r.prefix + "revoked:user:" + strconv.FormatInt(userID, 10)
}
