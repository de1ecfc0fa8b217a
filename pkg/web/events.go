package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cuemby/forkful/pkg/backend"
	"github.com/cuemby/forkful/pkg/events"
)

const keepAliveInterval = 25 * time.Second

// streamEvent is the payload of one server-sent event
type streamEvent struct {
	ID       string `json:"id"`
	Kind     string `json:"kind,omitempty"`
	Text     string `json:"text,omitempty"`
	RecipeID string `json:"recipe_id,omitempty"`
}

// handleEvents streams the signed-in user's notifications as server-sent
// events until the client goes away or the server shuts down
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if user == nil {
		s.writeAPIError(w, r, backend.ErrUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	broker := s.backend.Broker()
	sub := broker.Subscribe(events.Filter{
		Tables: []events.Table{events.TableNotifications},
		UserID: user.ID,
	})
	defer broker.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	logger := s.logger.With().Str("user_id", user.ID).Logger()
	logger.Debug().Msg("Event stream opened")
	defer logger.Debug().Msg("Event stream closed")

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case ev, ok := <-sub:
			if !ok {
				return
			}
			if err := writeStreamEvent(w, ev); err != nil {
				return
			}
			flusher.Flush()
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		case <-s.shutdownCh:
			return
		}
	}
}

func writeStreamEvent(w http.ResponseWriter, ev *events.Event) error {
	name := "notification"
	if ev.Op != events.OpInsert {
		name = "read"
	}

	data, err := json.Marshal(streamEvent{
		ID:       ev.RecordID,
		Kind:     ev.Metadata["kind"],
		Text:     ev.Metadata["text"],
		RecipeID: ev.Metadata["recipe_id"],
	})
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", ev.ID, name, data)
	return err
}
