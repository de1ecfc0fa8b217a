package reconciler

import (
	"testing"
	"time"

	"github.com/cuemby/forkful/pkg/metrics"
	"github.com/cuemby/forkful/pkg/security"
	"github.com/cuemby/forkful/pkg/storage"
	"github.com/cuemby/forkful/pkg/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestStore(t *testing.T) *storage.BoltStore {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestReconcileExpiresSessions(t *testing.T) {
	store := newTestStore(t)
	sessions := security.NewSessionManager(-time.Second)
	for i := 0; i < 3; i++ {
		_, err := sessions.Create("u1")
		require.NoError(t, err)
	}

	r := NewReconciler(store, sessions, time.Hour)
	require.NoError(t, r.Reconcile())

	assert.Equal(t, 0, sessions.Count())
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.SessionsActive))
}

func TestReconcileRefreshesGauges(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateUser(&types.User{ID: "u1", Username: "alice"}))
	require.NoError(t, store.CreateRecipe(&types.Recipe{ID: "r1", AuthorID: "u1", Title: "Bread"}))
	require.NoError(t, store.CreateRecipe(&types.Recipe{ID: "r2", AuthorID: "u1", Title: "Rye"}))

	metrics.RecipesTotal.Set(99)

	r := NewReconciler(store, security.NewSessionManager(time.Hour), time.Hour)
	require.NoError(t, r.Reconcile())

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.UsersTotal))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.RecipesTotal))
}

func TestStartStop(t *testing.T) {
	r := NewReconciler(newTestStore(t), security.NewSessionManager(time.Hour), 10*time.Millisecond)
	r.Start()
	r.Start()
	time.Sleep(30 * time.Millisecond)
	r.Stop()
	r.Stop()
}

func TestStopWithoutStart(t *testing.T) {
	r := NewReconciler(newTestStore(t), security.NewSessionManager(time.Hour), 0)
	r.Stop()
}
