package backend

import (
	"fmt"
	"sort"
	"time"

	"github.com/cuemby/forkful/pkg/events"
	"github.com/cuemby/forkful/pkg/types"
)

const maxMessageLength = 4000

// Follow makes followerID follow followeeID. Following twice is a no-op.
func (b *Backend) Follow(followerID, followeeID string) error {
	if followerID == followeeID {
		return invalid("cannot follow yourself")
	}
	if _, err := b.store.GetUser(followeeID); err != nil {
		return err
	}

	following, err := b.store.IsFollowing(followerID, followeeID)
	if err != nil {
		return err
	}
	if following {
		return nil
	}

	follow := &types.Follow{
		FollowerID: followerID,
		FolloweeID: followeeID,
		CreatedAt:  b.now(),
	}
	if err := b.store.CreateFollow(follow); err != nil {
		return fmt.Errorf("failed to create follow: %w", err)
	}

	b.publish(events.TableFollows, events.OpInsert, followerID+"/"+followeeID, followerID, []string{followeeID}, nil)
	return nil
}

// Unfollow removes a follow relation if present
func (b *Backend) Unfollow(followerID, followeeID string) error {
	if err := b.store.DeleteFollow(followerID, followeeID); err != nil {
		return fmt.Errorf("failed to delete follow: %w", err)
	}
	b.publish(events.TableFollows, events.OpDelete, followerID+"/"+followeeID, followerID, []string{followeeID}, nil)
	return nil
}

// IsFollowing reports whether followerID follows followeeID
func (b *Backend) IsFollowing(followerID, followeeID string) (bool, error) {
	return b.store.IsFollowing(followerID, followeeID)
}

// Followers returns the users following userID
func (b *Backend) Followers(userID string) ([]*types.User, error) {
	ids, err := b.store.ListFollowers(userID)
	if err != nil {
		return nil, err
	}
	return b.usersByID(ids), nil
}

// Following returns the users userID follows
func (b *Backend) Following(userID string) ([]*types.User, error) {
	ids, err := b.store.ListFollowing(userID)
	if err != nil {
		return nil, err
	}
	return b.usersByID(ids), nil
}

// usersByID resolves IDs to users, skipping accounts that no longer exist
func (b *Backend) usersByID(ids []string) []*types.User {
	users := make([]*types.User, 0, len(ids))
	for _, id := range ids {
		u, err := b.store.GetUser(id)
		if err != nil {
			continue
		}
		users = append(users, u)
	}
	return users
}

// SendMessage sends a direct message. The body is sealed before it is stored.
func (b *Backend) SendMessage(senderID, recipientID, body string) (*types.Message, error) {
	if senderID == recipientID {
		return nil, invalid("cannot message yourself")
	}
	body = b.plain(body)
	if body == "" {
		return nil, invalid("message cannot be empty")
	}
	if len(body) > maxMessageLength {
		return nil, invalid("message must be at most %d characters", maxMessageLength)
	}
	if _, err := b.store.GetUser(recipientID); err != nil {
		return nil, err
	}

	sealed, err := b.sealer.Seal([]byte(body))
	if err != nil {
		return nil, fmt.Errorf("failed to seal message: %w", err)
	}

	stored := &types.Message{
		ID:          newID(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Sealed:      sealed,
		CreatedAt:   b.now(),
	}
	if err := b.store.CreateMessage(stored); err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	b.publish(events.TableMessages, events.OpInsert, stored.ID, senderID, []string{recipientID}, nil)

	msg := *stored
	msg.Body = body
	msg.Sealed = nil
	return &msg, nil
}

// Conversation returns the messages between userID and otherID oldest
// first, opened for reading. Messages addressed to userID are marked read.
func (b *Backend) Conversation(userID, otherID string) ([]*types.Message, error) {
	stored, err := b.store.ListMessagesBetween(userID, otherID)
	if err != nil {
		return nil, err
	}

	out := make([]*types.Message, 0, len(stored))
	for _, m := range stored {
		if m.RecipientID == userID && !m.Read {
			m.Read = true
			if err := b.store.UpdateMessage(m); err != nil {
				b.logger.Warn().Err(err).Str("message_id", m.ID).Msg("Failed to mark message read")
			}
		}

		plain, err := b.sealer.Open(m.Sealed)
		if err != nil {
			b.logger.Error().Err(err).Str("message_id", m.ID).Msg("Failed to open message")
			continue
		}

		msg := *m
		msg.Body = string(plain)
		msg.Sealed = nil
		out = append(out, &msg)
	}
	return out, nil
}

// ConversationSummary is one entry of a user's inbox
type ConversationSummary struct {
	With        *types.User `json:"with"`
	LastMessage time.Time   `json:"last_message"`
	Unread      int         `json:"unread"`
	Total       int         `json:"total"`
}

// Inbox lists the conversations of userID, most recent first
func (b *Backend) Inbox(userID string) ([]ConversationSummary, error) {
	msgs, err := b.store.ListMessagesFor(userID)
	if err != nil {
		return nil, err
	}

	byPeer := make(map[string]*ConversationSummary)
	for _, m := range msgs {
		peer := m.SenderID
		if peer == userID {
			peer = m.RecipientID
		}

		s, ok := byPeer[peer]
		if !ok {
			s = &ConversationSummary{}
			byPeer[peer] = s
		}
		s.Total++
		if m.RecipientID == userID && !m.Read {
			s.Unread++
		}
		if m.CreatedAt.After(s.LastMessage) {
			s.LastMessage = m.CreatedAt
		}
	}

	out := make([]ConversationSummary, 0, len(byPeer))
	for peer, s := range byPeer {
		u, err := b.store.GetUser(peer)
		if err != nil {
			continue
		}
		s.With = u
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessage.After(out[j].LastMessage)
	})
	return out, nil
}

// Notifications returns the notification feed of userID, newest first
func (b *Backend) Notifications(userID string) ([]*types.Notification, error) {
	return b.store.ListNotifications(userID)
}

// UnreadCount returns how many notifications of userID are unread
func (b *Backend) UnreadCount(userID string) (int, error) {
	list, err := b.store.ListNotifications(userID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, item := range list {
		if !item.Read {
			n++
		}
	}
	return n, nil
}

// MarkNotificationsRead marks the whole feed of userID as read
func (b *Backend) MarkNotificationsRead(userID string) error {
	n, err := b.store.MarkNotificationsRead(userID)
	if err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	if n > 0 {
		b.publish(events.TableNotifications, events.OpUpdate, userID, userID, []string{userID}, map[string]string{
			"unread": "0",
		})
	}
	return nil
}
