package onboarding

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SessionTTL is how long a persisted session stays restorable. Past this age
// a snapshot is treated as absent and the flow recomputes from the backend.
const SessionTTL = 24 * time.Hour

// SessionStore persists onboarding progress so an interrupted session can
// resume without repeating completed steps. It is a cache, never a source of
// truth: Restore returning (nil, nil) just means start over.
type SessionStore interface {
	Save(ctx context.Context, userID uuid.UUID, session *Session) error
	Restore(ctx context.Context, userID uuid.UUID) (*Session, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}
