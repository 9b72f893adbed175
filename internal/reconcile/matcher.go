package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wadc/flowsync/internal/model"
	"github.com/wadc/flowsync/internal/store"
)

// Finder looks up entities by natural key.
type Finder interface {
	FindEntities(ctx context.Context, q store.KeyQuery) ([]model.Entity, error)
}

// Matcher resolves records to stored entities.
type Matcher struct {
	finder Finder
	logger *slog.Logger
}

// NewMatcher creates a Matcher.
func NewMatcher(f Finder, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{finder: f, logger: logger}
}

// Query returns the lookup for r: serial OR address when the serial parses,
// address alone otherwise.
func Query(r *model.FlowRecord) store.KeyQuery {
	return store.KeyFor(model.ParseSerial(r.Serial), r.Address.String())
}

// Resolve returns the entity r belongs to, or nil when there is none.
// When several entities match, the first one returned by the store wins.
func (m *Matcher) Resolve(ctx context.Context, r *model.FlowRecord) (*model.Entity, error) {
	q := Query(r)
	if q.Empty() {
		return nil, nil
	}

	found, err := m.finder.FindEntities(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", q, err)
	}
	if len(found) == 0 {
		return nil, nil
	}
	if len(found) > 1 {
		m.logger.Warn("record matches several entities",
			"query", q.String(),
			"matches", len(found),
			"using", found[0].ID,
		)
	}
	return &found[0], nil
}
