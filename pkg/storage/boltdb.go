package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cuemby/forkful/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketUsers         = []byte("users")
	bucketUsernames     = []byte("usernames")
	bucketRecipes       = []byte("recipes")
	bucketRatings       = []byte("ratings")
	bucketComments      = []byte("comments")
	bucketFollows       = []byte("follows")
	bucketFollowers     = []byte("followers")
	bucketMessages      = []byte("messages")
	bucketNotifications = []byte("notifications")
)

// openTimeout bounds the wait for the file lock held by another process
const openTimeout = 2 * time.Second

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "forkful.db")

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketUsers,
			bucketUsernames,
			bucketRecipes,
			bucketRatings,
			bucketComments,
			bucketFollows,
			bucketFollowers,
			bucketMessages,
			bucketNotifications,
		}

		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Backup writes a consistent snapshot of the database to w
func (s *BoltStore) Backup(w io.Writer) (int64, error) {
	var n int64
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		n, err = tx.WriteTo(w)
		return err
	})
	if err != nil {
		return n, fmt.Errorf("failed to write backup: %w", err)
	}
	return n, nil
}

// compositeKey joins key parts with a separator that cannot appear in IDs
func compositeKey(parts ...string) []byte {
	return []byte(strings.Join(parts, "/"))
}

func prefixKey(part string) []byte {
	return []byte(part + "/")
}

func put(b *bolt.Bucket, key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put(key, data)
}

// scanPrefix decodes every value under prefix using fn
func scanPrefix(b *bolt.Bucket, prefix []byte, fn func(v []byte) error) error {
	c := b.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		if err := fn(v); err != nil {
			return err
		}
	}
	return nil
}

// User operations
func (s *BoltStore) CreateUser(user *types.User) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		names := tx.Bucket(bucketUsernames)
		key := []byte(strings.ToLower(user.Username))
		if existing := names.Get(key); existing != nil && string(existing) != user.ID {
			return fmt.Errorf("username %s: %w", user.Username, ErrConflict)
		}
		if err := names.Put(key, []byte(user.ID)); err != nil {
			return err
		}
		return put(tx.Bucket(bucketUsers), []byte(user.ID), user)
	})
}

func (s *BoltStore) GetUser(id string) (*types.User, error) {
	var user types.User
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketUsers).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &user)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *BoltStore) GetUserByUsername(username string) (*types.User, error) {
	var user types.User
	err := s.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(bucketUsernames).Get([]byte(strings.ToLower(username)))
		if id == nil {
			return fmt.Errorf("user %s: %w", username, ErrNotFound)
		}
		data := tx.Bucket(bucketUsers).Get(id)
		if data == nil {
			return fmt.Errorf("user %s: %w", username, ErrNotFound)
		}
		return json.Unmarshal(data, &user)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *BoltStore) ListUsers() ([]*types.User, error) {
	var users []*types.User
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUsers).ForEach(func(k, v []byte) error {
			var user types.User
			if err := json.Unmarshal(v, &user); err != nil {
				return err
			}
			users = append(users, &user)
			return nil
		})
	})
	return users, err
}

func (s *BoltStore) UpdateUser(user *types.User) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		if b.Get([]byte(user.ID)) == nil {
			return fmt.Errorf("user %s: %w", user.ID, ErrNotFound)
		}
		return put(b, []byte(user.ID), user)
	})
}

// Recipe operations
func (s *BoltStore) CreateRecipe(recipe *types.Recipe) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx.Bucket(bucketRecipes), []byte(recipe.ID), recipe)
	})
}

func (s *BoltStore) GetRecipe(id string) (*types.Recipe, error) {
	var recipe types.Recipe
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketRecipes).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("recipe %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &recipe)
	})
	if err != nil {
		return nil, err
	}
	return &recipe, nil
}

func (s *BoltStore) listRecipes(keep func(*types.Recipe) bool) ([]*types.Recipe, error) {
	var recipes []*types.Recipe
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRecipes).ForEach(func(k, v []byte) error {
			var recipe types.Recipe
			if err := json.Unmarshal(v, &recipe); err != nil {
				return err
			}
			if keep == nil || keep(&recipe) {
				recipes = append(recipes, &recipe)
			}
			return nil
		})
	})
	sort.SliceStable(recipes, func(i, j int) bool {
		return recipes[i].CreatedAt.After(recipes[j].CreatedAt)
	})
	return recipes, err
}

func (s *BoltStore) ListRecipes() ([]*types.Recipe, error) {
	return s.listRecipes(nil)
}

func (s *BoltStore) ListRecipesByAuthor(authorID string) ([]*types.Recipe, error) {
	return s.listRecipes(func(r *types.Recipe) bool { return r.AuthorID == authorID })
}

func (s *BoltStore) ListForks(recipeID string) ([]*types.Recipe, error) {
	return s.listRecipes(func(r *types.Recipe) bool { return r.ForkedFrom == recipeID })
}

func (s *BoltStore) UpdateRecipe(recipe *types.Recipe) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRecipes)
		if b.Get([]byte(recipe.ID)) == nil {
			return fmt.Errorf("recipe %s: %w", recipe.ID, ErrNotFound)
		}
		return put(b, []byte(recipe.ID), recipe)
	})
}

// DeleteRecipe removes the recipe together with its ratings and comments
func (s *BoltStore) DeleteRecipe(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRecipes)
		if b.Get([]byte(id)) == nil {
			return fmt.Errorf("recipe %s: %w", id, ErrNotFound)
		}
		if err := b.Delete([]byte(id)); err != nil {
			return err
		}
		for _, name := range [][]byte{bucketRatings, bucketComments} {
			if err := deletePrefix(tx.Bucket(name), prefixKey(id)); err != nil {
				return err
			}
		}
		return nil
	})
}

func deletePrefix(b *bolt.Bucket, prefix []byte) error {
	var keys [][]byte
	c := b.Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// Rating operations
func (s *BoltStore) PutRating(rating *types.Rating) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx.Bucket(bucketRatings), compositeKey(rating.RecipeID, rating.UserID), rating)
	})
}

func (s *BoltStore) GetRating(recipeID, userID string) (*types.Rating, error) {
	var rating types.Rating
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketRatings).Get(compositeKey(recipeID, userID))
		if data == nil {
			return fmt.Errorf("rating %s/%s: %w", recipeID, userID, ErrNotFound)
		}
		return json.Unmarshal(data, &rating)
	})
	if err != nil {
		return nil, err
	}
	return &rating, nil
}

func (s *BoltStore) ListRatings(recipeID string) ([]*types.Rating, error) {
	var ratings []*types.Rating
	err := s.db.View(func(tx *bolt.Tx) error {
		return scanPrefix(tx.Bucket(bucketRatings), prefixKey(recipeID), func(v []byte) error {
			var rating types.Rating
			if err := json.Unmarshal(v, &rating); err != nil {
				return err
			}
			ratings = append(ratings, &rating)
			return nil
		})
	})
	return ratings, err
}

// Comment operations
func (s *BoltStore) CreateComment(comment *types.Comment) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx.Bucket(bucketComments), compositeKey(comment.RecipeID, comment.ID), comment)
	})
}

func (s *BoltStore) ListComments(recipeID string) ([]*types.Comment, error) {
	var comments []*types.Comment
	err := s.db.View(func(tx *bolt.Tx) error {
		return scanPrefix(tx.Bucket(bucketComments), prefixKey(recipeID), func(v []byte) error {
			var comment types.Comment
			if err := json.Unmarshal(v, &comment); err != nil {
				return err
			}
			comments = append(comments, &comment)
			return nil
		})
	})
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
	return comments, err
}

// Follow operations. Each follow is written twice so that both directions
// can be listed with a prefix scan.
func (s *BoltStore) CreateFollow(follow *types.Follow) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := put(tx.Bucket(bucketFollows), compositeKey(follow.FollowerID, follow.FolloweeID), follow); err != nil {
			return err
		}
		return put(tx.Bucket(bucketFollowers), compositeKey(follow.FolloweeID, follow.FollowerID), follow)
	})
}

func (s *BoltStore) DeleteFollow(followerID, followeeID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketFollows).Delete(compositeKey(followerID, followeeID)); err != nil {
			return err
		}
		return tx.Bucket(bucketFollowers).Delete(compositeKey(followeeID, followerID))
	})
}

func (s *BoltStore) IsFollowing(followerID, followeeID string) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucketFollows).Get(compositeKey(followerID, followeeID)) != nil
		return nil
	})
	return found, err
}

func (s *BoltStore) listFollowIDs(bucket []byte, userID string, pick func(*types.Follow) string) ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return scanPrefix(tx.Bucket(bucket), prefixKey(userID), func(v []byte) error {
			var follow types.Follow
			if err := json.Unmarshal(v, &follow); err != nil {
				return err
			}
			ids = append(ids, pick(&follow))
			return nil
		})
	})
	return ids, err
}

func (s *BoltStore) ListFollowers(userID string) ([]string, error) {
	return s.listFollowIDs(bucketFollowers, userID, func(f *types.Follow) string { return f.FollowerID })
}

func (s *BoltStore) ListFollowing(userID string) ([]string, error) {
	return s.listFollowIDs(bucketFollows, userID, func(f *types.Follow) string { return f.FolloweeID })
}

// Message operations
func (s *BoltStore) CreateMessage(msg *types.Message) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx.Bucket(bucketMessages), []byte(msg.ID), msg)
	})
}

func (s *BoltStore) UpdateMessage(msg *types.Message) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMessages)
		if b.Get([]byte(msg.ID)) == nil {
			return fmt.Errorf("message %s: %w", msg.ID, ErrNotFound)
		}
		return put(b, []byte(msg.ID), msg)
	})
}

func (s *BoltStore) listMessages(keep func(*types.Message) bool) ([]*types.Message, error) {
	var msgs []*types.Message
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMessages).ForEach(func(k, v []byte) error {
			var msg types.Message
			if err := json.Unmarshal(v, &msg); err != nil {
				return err
			}
			if keep(&msg) {
				msgs = append(msgs, &msg)
			}
			return nil
		})
	})
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs, err
}

func (s *BoltStore) ListMessagesBetween(a, b string) ([]*types.Message, error) {
	return s.listMessages(func(m *types.Message) bool {
		return (m.SenderID == a && m.RecipientID == b) || (m.SenderID == b && m.RecipientID == a)
	})
}

func (s *BoltStore) ListMessagesFor(userID string) ([]*types.Message, error) {
	return s.listMessages(func(m *types.Message) bool {
		return m.SenderID == userID || m.RecipientID == userID
	})
}

// Notification operations
func (s *BoltStore) CreateNotification(n *types.Notification) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx.Bucket(bucketNotifications), compositeKey(n.UserID, n.ID), n)
	})
}

func (s *BoltStore) ListNotifications(userID string) ([]*types.Notification, error) {
	var notifications []*types.Notification
	err := s.db.View(func(tx *bolt.Tx) error {
		return scanPrefix(tx.Bucket(bucketNotifications), prefixKey(userID), func(v []byte) error {
			var n types.Notification
			if err := json.Unmarshal(v, &n); err != nil {
				return err
			}
			notifications = append(notifications, &n)
			return nil
		})
	})
	sort.SliceStable(notifications, func(i, j int) bool {
		return notifications[i].CreatedAt.After(notifications[j].CreatedAt)
	})
	return notifications, err
}

// MarkNotificationsRead flags every unread notification of userID as read
// and returns how many changed.
func (s *BoltStore) MarkNotificationsRead(userID string) (int, error) {
	changed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNotifications)
		prefix := prefixKey(userID)

		updates := make(map[string][]byte)
		c := b.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var n types.Notification
			if err := json.Unmarshal(v, &n); err != nil {
				return err
			}
			if n.Read {
				continue
			}
			n.Read = true
			data, err := json.Marshal(&n)
			if err != nil {
				return err
			}
			updates[string(k)] = data
		}

		for k, data := range updates {
			if err := b.Put([]byte(k), data); err != nil {
				return err
			}
		}
		changed = len(updates)
		return nil
	})
	return changed, err
}
