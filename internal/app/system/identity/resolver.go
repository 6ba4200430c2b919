// internal/app/system/identity/resolver.go

// Package identity resolves the acting user from the records platform.
// Accounts are provisioned asynchronously on the platform side, so a lookup
// right after sign-in can miss; the resolver retries with backoff before
// giving up. Exhaustion yields nil rather than an error — callers disable
// submission features and surface a corrective message.
package identity

import (
	"context"
	"time"

	"github.com/vespahq/uploadhub/internal/app/records"
	"github.com/vespahq/uploadhub/internal/app/system/retry"
	"github.com/vespahq/uploadhub/internal/domain/models"
	"go.uber.org/zap"
)

// Resolver looks up identities with a bounded retry policy.
type Resolver struct {
	client *records.Client
	policy retry.Policy
	log    *zap.Logger
}

// New creates a Resolver. maxAttempts below 1 is treated as 1; backoff is
// the base delay, growing linearly with each failed attempt.
func New(client *records.Client, maxAttempts int, backoff time.Duration, logger *zap.Logger) *Resolver {
	return &Resolver{
		client: client,
		policy: retry.Policy{
			MaxAttempts: maxAttempts,
			Backoff:     retry.LinearBackoff(backoff),
		},
		log: logger,
	}
}

// Resolve fetches the identity behind accountID. It returns nil, never an
// error, when every attempt fails.
func (r *Resolver) Resolve(ctx context.Context, accountID string) *models.Identity {
	var ident *models.Identity

	err := r.policy.Do(ctx, func(ctx context.Context) error {
		found, err := r.client.Identity(ctx, accountID)
		if err != nil {
			return err
		}
		ident = found
		return nil
	})
	if err != nil {
		r.log.Warn("identity resolution exhausted",
			zap.String("account_id", accountID),
			zap.Int("max_attempts", r.policy.MaxAttempts),
			zap.Error(err))
		return nil
	}

	return ident
}
