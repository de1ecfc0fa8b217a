package backend

import (
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/cuemby/forkful/pkg/cache"
	"github.com/cuemby/forkful/pkg/events"
	"github.com/cuemby/forkful/pkg/log"
	"github.com/cuemby/forkful/pkg/media"
	"github.com/cuemby/forkful/pkg/metrics"
	"github.com/cuemby/forkful/pkg/security"
	"github.com/cuemby/forkful/pkg/storage"
	"github.com/cuemby/forkful/pkg/types"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalid      = errors.New("invalid input")

	// ErrNotFound is the storage sentinel, re-exported for callers
	ErrNotFound = storage.ErrNotFound
)

// Config holds the collaborators a Backend is built from
type Config struct {
	Store    storage.Store
	Broker   *events.Broker
	Media    media.Store
	Sessions *security.SessionManager
	Sealer   *security.MessageSealer

	CacheSize int
	CacheTTL  time.Duration
}

// Backend is the data-access facade used by the web layer. Every mutation
// is persisted first and then published on the change feed.
type Backend struct {
	store    storage.Store
	broker   *events.Broker
	media    media.Store
	sessions *security.SessionManager
	sealer   *security.MessageSealer

	summaries *cache.TTL[string, types.RatingSummary]
	policy    *bluemonday.Policy
	logger    zerolog.Logger
	now       func() time.Time
}

// New creates a Backend
func New(cfg *Config) (*Backend, error) {
	if cfg.Store == nil || cfg.Broker == nil || cfg.Media == nil || cfg.Sessions == nil || cfg.Sealer == nil {
		return nil, fmt.Errorf("backend: store, broker, media, sessions and sealer are required")
	}

	size := cfg.CacheSize
	if size <= 0 {
		size = 1024
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	b := &Backend{
		store:     cfg.Store,
		broker:    cfg.Broker,
		media:     cfg.Media,
		sessions:  cfg.Sessions,
		sealer:    cfg.Sealer,
		summaries: cache.NewTTL[string, types.RatingSummary]("rating_summary", size, ttl),
		policy:    bluemonday.StrictPolicy(),
		logger:    log.WithComponent("backend"),
		now:       time.Now,
	}

	b.refreshGauges()
	return b, nil
}

// Store exposes the underlying store for read-only collaborators
func (b *Backend) Store() storage.Store {
	return b.store
}

// Broker exposes the change feed
func (b *Backend) Broker() *events.Broker {
	return b.broker
}

func (b *Backend) refreshGauges() {
	if users, err := b.store.ListUsers(); err == nil {
		metrics.UsersTotal.Set(float64(len(users)))
	}
	if recipes, err := b.store.ListRecipes(); err == nil {
		metrics.RecipesTotal.Set(float64(len(recipes)))
	}
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// plain strips markup from user input and returns trimmed plain text.
// Templates escape on output, so entities are decoded again here.
func (b *Backend) plain(s string) string {
	return strings.TrimSpace(html.UnescapeString(b.policy.Sanitize(s)))
}

// plainLines sanitises each line and drops the empty ones
func (b *Backend) plainLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if p := b.plain(line); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (b *Backend) publish(table events.Table, op events.Op, recordID, actorID string, audience []string, meta map[string]string) {
	b.broker.Publish(&events.Event{
		ID:        newID(),
		Table:     table,
		Op:        op,
		RecordID:  recordID,
		ActorID:   actorID,
		Audience:  audience,
		Timestamp: b.now(),
		Metadata:  meta,
	})
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}
