package reconciler

import (
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/forkful/pkg/log"
	"github.com/cuemby/forkful/pkg/metrics"
	"github.com/cuemby/forkful/pkg/security"
	"github.com/cuemby/forkful/pkg/storage"
	"github.com/rs/zerolog"
)

// DefaultInterval is how often housekeeping runs
const DefaultInterval = time.Minute

// Reconciler periodically expires login sessions and brings the content
// gauges back in line with what is stored
type Reconciler struct {
	store    storage.Store
	sessions *security.SessionManager
	interval time.Duration
	logger   zerolog.Logger

	mu       sync.Mutex
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
	started  bool
}

// NewReconciler creates a new reconciler
func NewReconciler(store storage.Store, sessions *security.SessionManager, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reconciler{
		store:    store,
		sessions: sessions,
		interval: interval,
		logger:   log.WithComponent("reconciler"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the reconciliation loop
func (r *Reconciler) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	go r.run()
}

// Stop stops the reconciler and waits for the loop to exit
func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})

	r.mu.Lock()
	started := r.started
	r.mu.Unlock()
	if started {
		<-r.doneCh
	}
}

// run is the main reconciliation loop
func (r *Reconciler) run() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := r.Reconcile(); err != nil {
				r.logger.Error().Err(err).Msg("Reconciliation failed")
			}
		case <-r.stopCh:
			return
		}
	}
}

// Reconcile performs one housekeeping cycle
func (r *Reconciler) Reconcile() error {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.ReconciliationDuration)
		metrics.ReconciliationCyclesTotal.Inc()
	}()

	if removed := r.sessions.CleanupExpired(); removed > 0 {
		metrics.SessionsExpiredTotal.Add(float64(removed))
		r.logger.Debug().Int("removed", removed).Msg("Expired sessions removed")
	}
	metrics.SessionsActive.Set(float64(r.sessions.Count()))

	users, err := r.store.ListUsers()
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	metrics.UsersTotal.Set(float64(len(users)))

	recipes, err := r.store.ListRecipes()
	if err != nil {
		return fmt.Errorf("failed to list recipes: %w", err)
	}
	metrics.RecipesTotal.Set(float64(len(recipes)))

	return nil
}
