package notify

import (
	"testing"
	"time"

	"github.com/cuemby/forkful/pkg/events"
	"github.com/cuemby/forkful/pkg/storage"
	"github.com/cuemby/forkful/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	store  *storage.BoltStore
	broker *events.Broker
	worker *Worker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	for _, u := range []*types.User{
		{ID: "alice", Username: "alice", DisplayName: "Alice"},
		{ID: "bob", Username: "bob", DisplayName: "Bob"},
		{ID: "carol", Username: "carol"},
	} {
		require.NoError(t, store.CreateUser(u))
	}

	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)

	return &fixture{store: store, broker: broker, worker: NewWorker(store, broker)}
}

func (f *fixture) notifications(t *testing.T, userID string) []*types.Notification {
	t.Helper()
	list, err := f.store.ListNotifications(userID)
	require.NoError(t, err)
	return list
}

func TestHandle(t *testing.T) {
	tests := []struct {
		name     string
		event    *events.Event
		user     string
		kind     types.NotificationKind
		text     string
		recipeID string
	}{
		{
			name:  "follow notifies followee",
			event: &events.Event{Table: events.TableFollows, Op: events.OpInsert, ActorID: "alice", Audience: []string{"bob"}},
			user:  "bob",
			kind:  types.NotificationFollow,
			text:  "Alice started following you",
		},
		{
			name: "comment notifies recipe author",
			event: &events.Event{Table: events.TableComments, Op: events.OpInsert, ActorID: "bob", Audience: []string{"alice"},
				Metadata: map[string]string{"recipe_id": "r1", "title": "Bread"}},
			user:     "alice",
			kind:     types.NotificationComment,
			text:     "Bob commented on Bread",
			recipeID: "r1",
		},
		{
			name: "rating notifies recipe author",
			event: &events.Event{Table: events.TableRatings, Op: events.OpUpdate, ActorID: "bob", Audience: []string{"alice"},
				Metadata: map[string]string{"recipe_id": "r1", "title": "Bread", "stars": "4"}},
			user:     "alice",
			kind:     types.NotificationRating,
			text:     "Bob rated Bread 4 stars",
			recipeID: "r1",
		},
		{
			name:  "message notifies recipient",
			event: &events.Event{Table: events.TableMessages, Op: events.OpInsert, ActorID: "carol", Audience: []string{"alice"}},
			user:  "alice",
			kind:  types.NotificationMessage,
			text:  "carol sent you a message",
		},
		{
			name: "fork notifies original author",
			event: &events.Event{Table: events.TableRecipes, Op: events.OpInsert, RecordID: "r2", ActorID: "bob", Audience: []string{"alice"},
				Metadata: map[string]string{"title": "Bread", "forked_from": "r1"}},
			user:     "alice",
			kind:     types.NotificationFork,
			text:     "Bob forked Bread",
			recipeID: "r2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			require.NoError(t, f.worker.Handle(tt.event))

			list := f.notifications(t, tt.user)
			require.Len(t, list, 1)
			assert.Equal(t, tt.kind, list[0].Kind)
			assert.Equal(t, tt.text, list[0].Text)
			assert.Equal(t, tt.recipeID, list[0].RecipeID)
			assert.Equal(t, tt.event.ActorID, list[0].ActorID)
			assert.False(t, list[0].Read)
		})
	}
}

func TestHandleNewRecipeNotifiesFollowers(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.CreateFollow(&types.Follow{FollowerID: "bob", FolloweeID: "alice"}))
	require.NoError(t, f.store.CreateFollow(&types.Follow{FollowerID: "carol", FolloweeID: "alice"}))

	err := f.worker.Handle(&events.Event{
		Table:    events.TableRecipes,
		Op:       events.OpInsert,
		RecordID: "r1",
		ActorID:  "alice",
		Metadata: map[string]string{"title": "Bread"},
	})
	require.NoError(t, err)

	for _, id := range []string{"bob", "carol"} {
		list := f.notifications(t, id)
		require.Len(t, list, 1, id)
		assert.Equal(t, types.NotificationNewRecipe, list[0].Kind)
		assert.Equal(t, "Alice posted Bread", list[0].Text)
	}
	assert.Empty(t, f.notifications(t, "alice"))
}

func TestHandleForkDoesNotDuplicate(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.CreateFollow(&types.Follow{FollowerID: "alice", FolloweeID: "bob"}))

	err := f.worker.Handle(&events.Event{
		Table:    events.TableRecipes,
		Op:       events.OpInsert,
		RecordID: "r2",
		ActorID:  "bob",
		Audience: []string{"alice"},
		Metadata: map[string]string{"title": "Bread", "forked_from": "r1"},
	})
	require.NoError(t, err)

	list := f.notifications(t, "alice")
	require.Len(t, list, 1)
	assert.Equal(t, types.NotificationFork, list[0].Kind)
}

func TestHandleSkipsActorAndIgnoredOps(t *testing.T) {
	f := newFixture(t)

	evs := []*events.Event{
		{Table: events.TableComments, Op: events.OpInsert, ActorID: "alice", Audience: []string{"alice"}},
		{Table: events.TableFollows, Op: events.OpDelete, ActorID: "alice", Audience: []string{"bob"}},
		{Table: events.TableRecipes, Op: events.OpUpdate, ActorID: "alice"},
		{Table: events.TableUsers, Op: events.OpInsert, ActorID: "alice", Audience: []string{"bob"}},
	}
	for _, ev := range evs {
		require.NoError(t, f.worker.Handle(ev))
	}

	assert.Empty(t, f.notifications(t, "alice"))
	assert.Empty(t, f.notifications(t, "bob"))
}

func TestWorkerPublishesNotifications(t *testing.T) {
	f := newFixture(t)
	f.worker.Start()
	defer f.worker.Stop()

	sub := f.broker.Subscribe(events.Filter{Tables: []events.Table{events.TableNotifications}, UserID: "bob"})
	defer f.broker.Unsubscribe(sub)

	f.broker.Publish(&events.Event{Table: events.TableFollows, Op: events.OpInsert, ActorID: "alice", Audience: []string{"bob"}})

	select {
	case ev := <-sub:
		assert.Equal(t, string(types.NotificationFollow), ev.Metadata["kind"])
		assert.Equal(t, "Alice started following you", ev.Metadata["text"])
		assert.Equal(t, []string{"bob"}, ev.Audience)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification event")
	}

	assert.Len(t, f.notifications(t, "bob"), 1)
}

func TestWorkerStopWithoutStart(t *testing.T) {
	f := newFixture(t)
	f.worker.Stop()
	f.worker.Stop()
}
