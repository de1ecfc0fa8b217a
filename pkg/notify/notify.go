// Package notify turns change feed events into per-user notifications.
package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/forkful/pkg/events"
	"github.com/cuemby/forkful/pkg/log"
	"github.com/cuemby/forkful/pkg/metrics"
	"github.com/cuemby/forkful/pkg/storage"
	"github.com/cuemby/forkful/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var watchedTables = []events.Table{
	events.TableFollows,
	events.TableComments,
	events.TableRatings,
	events.TableRecipes,
	events.TableMessages,
}

// Worker consumes change events and writes notifications for the users
// they concern. Written notifications are published again on the
// notifications table so realtime clients can pick them up.
type Worker struct {
	store  storage.Store
	broker *events.Broker
	logger zerolog.Logger
	now    func() time.Time

	sub      events.Subscriber
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewWorker creates a notification worker
func NewWorker(store storage.Store, broker *events.Broker) *Worker {
	return &Worker{
		store:  store,
		broker: broker,
		logger: log.WithComponent("notify"),
		now:    time.Now,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start subscribes to the change feed and begins processing
func (w *Worker) Start() {
	w.sub = w.broker.Subscribe(events.Filter{Tables: watchedTables})
	metrics.Handle(metrics.ComponentNotify).Healthy("running")
	go w.run()
}

// Stop unsubscribes and waits for the processing loop to exit
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		if w.sub != nil {
			<-w.doneCh
			w.broker.Unsubscribe(w.sub)
		}
		metrics.Handle(metrics.ComponentNotify).Unhealthy("stopped")
	})
}

func (w *Worker) run() {
	defer close(w.doneCh)
	for {
		select {
		case ev, ok := <-w.sub:
			if !ok {
				return
			}
			if err := w.Handle(ev); err != nil {
				w.logger.Error().Err(err).
					Str("table", string(ev.Table)).
					Str("record_id", ev.RecordID).
					Msg("Failed to create notifications")
			}
		case <-w.stopCh:
			return
		}
	}
}

// Handle writes the notifications caused by a single event
func (w *Worker) Handle(ev *events.Event) error {
	actor := w.actorName(ev.ActorID)
	title := ev.Metadata["title"]

	var pending []*types.Notification
	add := func(userID string, kind types.NotificationKind, recipeID, text string) {
		if userID == "" || userID == ev.ActorID {
			return
		}
		for _, n := range pending {
			if n.UserID == userID {
				return
			}
		}
		pending = append(pending, &types.Notification{
			UserID:   userID,
			ActorID:  ev.ActorID,
			Kind:     kind,
			RecipeID: recipeID,
			Text:     text,
		})
	}

	switch ev.Table {
	case events.TableFollows:
		if ev.Op == events.OpInsert {
			for _, id := range ev.Audience {
				add(id, types.NotificationFollow, "", fmt.Sprintf("%s started following you", actor))
			}
		}

	case events.TableComments:
		if ev.Op == events.OpInsert {
			for _, id := range ev.Audience {
				add(id, types.NotificationComment, ev.Metadata["recipe_id"], fmt.Sprintf("%s commented on %s", actor, title))
			}
		}

	case events.TableRatings:
		for _, id := range ev.Audience {
			add(id, types.NotificationRating, ev.Metadata["recipe_id"], fmt.Sprintf("%s rated %s %s stars", actor, title, ev.Metadata["stars"]))
		}

	case events.TableMessages:
		if ev.Op == events.OpInsert {
			for _, id := range ev.Audience {
				add(id, types.NotificationMessage, "", fmt.Sprintf("%s sent you a message", actor))
			}
		}

	case events.TableRecipes:
		if ev.Op != events.OpInsert {
			return nil
		}
		if ev.Metadata["forked_from"] != "" {
			for _, id := range ev.Audience {
				add(id, types.NotificationFork, ev.RecordID, fmt.Sprintf("%s forked %s", actor, title))
			}
		}

		followers, err := w.store.ListFollowers(ev.ActorID)
		if err != nil {
			return fmt.Errorf("failed to list followers: %w", err)
		}
		for _, id := range followers {
			add(id, types.NotificationNewRecipe, ev.RecordID, fmt.Sprintf("%s posted %s", actor, title))
		}
	}

	for _, n := range pending {
		if err := w.deliver(n); err != nil {
			return err
		}
	}
	return nil
}

func (w *Worker) deliver(n *types.Notification) error {
	n.ID = uuid.Must(uuid.NewV7()).String()
	n.CreatedAt = w.now()

	if err := w.store.CreateNotification(n); err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}
	metrics.NotificationsCreated.WithLabelValues(string(n.Kind)).Inc()

	w.broker.Publish(&events.Event{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Table:     events.TableNotifications,
		Op:        events.OpInsert,
		RecordID:  n.ID,
		ActorID:   n.ActorID,
		Audience:  []string{n.UserID},
		Timestamp: n.CreatedAt,
		Metadata: map[string]string{
			"kind":      string(n.Kind),
			"text":      n.Text,
			"recipe_id": n.RecipeID,
		},
	})

	w.logger.Debug().
		Str("user_id", n.UserID).
		Str("kind", string(n.Kind)).
		Msg("Notification delivered")
	return nil
}

func (w *Worker) actorName(id string) string {
	u, err := w.store.GetUser(id)
	if err != nil {
		return "Someone"
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}
