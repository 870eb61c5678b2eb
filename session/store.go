package session

import (
	"context"
	"errors"
	"time"

	"github.com/chemfalcon/chembot/core"
)

// ErrNotFound is returned by Get when no live session exists for the id.
var ErrNotFound = errors.New("session not found")

// DefaultTTL is how long a session survives without activity.
const DefaultTTL = 24 * time.Hour

// Store persists conversation sessions between chat turns. Implementations
// must be safe for concurrent use. Get returns ErrNotFound for unknown or
// expired ids; the engine creates a fresh session in that case.
type Store interface {
	Get(ctx context.Context, sessionID string) (*core.Session, error)
	Save(ctx context.Context, session *core.Session) error
	Delete(ctx context.Context, sessionID string) error
}
