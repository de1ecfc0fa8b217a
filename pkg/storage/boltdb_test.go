package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/forkful/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestUsers(t *testing.T) {
	store := newTestStore(t)

	user := &types.User{ID: "u1", Username: "Alice", DisplayName: "Alice", CreatedAt: time.Now()}
	require.NoError(t, store.CreateUser(user))

	got, err := store.GetUser("u1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Username)

	byName, err := store.GetUserByUsername("alice")
	require.NoError(t, err)
	assert.Equal(t, "u1", byName.ID)

	err = store.CreateUser(&types.User{ID: "u2", Username: "ALICE"})
	assert.True(t, errors.Is(err, ErrConflict))

	_, err = store.GetUser("missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	user.Bio = "bakes bread"
	require.NoError(t, store.UpdateUser(user))
	got, err = store.GetUser("u1")
	require.NoError(t, err)
	assert.Equal(t, "bakes bread", got.Bio)

	err = store.UpdateUser(&types.User{ID: "ghost"})
	assert.True(t, errors.Is(err, ErrNotFound))

	users, err := store.ListUsers()
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestRecipes(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	older := &types.Recipe{ID: "r1", AuthorID: "u1", Title: "Bread", CreatedAt: now.Add(-time.Hour)}
	newer := &types.Recipe{ID: "r2", AuthorID: "u2", Title: "Rye", ForkedFrom: "r1", CreatedAt: now}
	require.NoError(t, store.CreateRecipe(older))
	require.NoError(t, store.CreateRecipe(newer))

	all, err := store.ListRecipes()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "r2", all[0].ID, "newest first")

	mine, err := store.ListRecipesByAuthor("u1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "r1", mine[0].ID)

	forks, err := store.ListForks("r1")
	require.NoError(t, err)
	require.Len(t, forks, 1)
	assert.Equal(t, "r2", forks[0].ID)

	older.Title = "Sourdough"
	require.NoError(t, store.UpdateRecipe(older))
	got, err := store.GetRecipe("r1")
	require.NoError(t, err)
	assert.Equal(t, "Sourdough", got.Title)

	assert.True(t, errors.Is(store.UpdateRecipe(&types.Recipe{ID: "nope"}), ErrNotFound))
}

func TestDeleteRecipeCascades(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.CreateRecipe(&types.Recipe{ID: "r1"}))
	require.NoError(t, store.CreateRecipe(&types.Recipe{ID: "r10"}))
	require.NoError(t, store.PutRating(&types.Rating{RecipeID: "r1", UserID: "u1", Stars: 4}))
	require.NoError(t, store.PutRating(&types.Rating{RecipeID: "r10", UserID: "u1", Stars: 2}))
	require.NoError(t, store.CreateComment(&types.Comment{ID: "c1", RecipeID: "r1", Body: "yum"}))

	require.NoError(t, store.DeleteRecipe("r1"))

	_, err := store.GetRecipe("r1")
	assert.True(t, errors.Is(err, ErrNotFound))

	ratings, err := store.ListRatings("r1")
	require.NoError(t, err)
	assert.Empty(t, ratings)

	comments, err := store.ListComments("r1")
	require.NoError(t, err)
	assert.Empty(t, comments)

	// a recipe whose ID shares a prefix is untouched
	ratings, err = store.ListRatings("r10")
	require.NoError(t, err)
	assert.Len(t, ratings, 1)

	assert.True(t, errors.Is(store.DeleteRecipe("r1"), ErrNotFound))
}

func TestRatingsUpsert(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.PutRating(&types.Rating{RecipeID: "r1", UserID: "u1", Stars: 2}))
	require.NoError(t, store.PutRating(&types.Rating{RecipeID: "r1", UserID: "u1", Stars: 5}))
	require.NoError(t, store.PutRating(&types.Rating{RecipeID: "r1", UserID: "u2", Stars: 3}))

	ratings, err := store.ListRatings("r1")
	require.NoError(t, err)
	assert.Len(t, ratings, 2)

	r, err := store.GetRating("r1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, r.Stars)
}

func TestCommentsOldestFirst(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	require.NoError(t, store.CreateComment(&types.Comment{ID: "b", RecipeID: "r1", Body: "second", CreatedAt: now}))
	require.NoError(t, store.CreateComment(&types.Comment{ID: "a", RecipeID: "r1", Body: "first", CreatedAt: now.Add(-time.Minute)}))

	comments, err := store.ListComments("r1")
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "first", comments[0].Body)
}

func TestFollows(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.CreateFollow(&types.Follow{FollowerID: "a", FolloweeID: "b"}))
	require.NoError(t, store.CreateFollow(&types.Follow{FollowerID: "c", FolloweeID: "b"}))

	ok, err := store.IsFollowing("a", "b")
	require.NoError(t, err)
	assert.True(t, ok)

	followers, err := store.ListFollowers("b")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "c"}, followers)

	following, err := store.ListFollowing("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, following)

	require.NoError(t, store.DeleteFollow("a", "b"))
	ok, err = store.IsFollowing("a", "b")
	require.NoError(t, err)
	assert.False(t, ok)

	followers, err = store.ListFollowers("b")
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, followers)
}

func TestMessages(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	require.NoError(t, store.CreateMessage(&types.Message{ID: "m2", SenderID: "b", RecipientID: "a", CreatedAt: now}))
	require.NoError(t, store.CreateMessage(&types.Message{ID: "m1", SenderID: "a", RecipientID: "b", CreatedAt: now.Add(-time.Second)}))
	require.NoError(t, store.CreateMessage(&types.Message{ID: "m3", SenderID: "a", RecipientID: "c", CreatedAt: now}))

	convo, err := store.ListMessagesBetween("a", "b")
	require.NoError(t, err)
	require.Len(t, convo, 2)
	assert.Equal(t, "m1", convo[0].ID)

	inbox, err := store.ListMessagesFor("c")
	require.NoError(t, err)
	require.Len(t, inbox, 1)

	inbox[0].Read = true
	require.NoError(t, store.UpdateMessage(inbox[0]))
	convo, err = store.ListMessagesBetween("c", "a")
	require.NoError(t, err)
	assert.True(t, convo[0].Read)
}

func TestNotifications(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	require.NoError(t, store.CreateNotification(&types.Notification{ID: "n1", UserID: "u1", Kind: types.NotificationFollow, CreatedAt: now.Add(-time.Minute)}))
	require.NoError(t, store.CreateNotification(&types.Notification{ID: "n2", UserID: "u1", Kind: types.NotificationComment, CreatedAt: now}))
	require.NoError(t, store.CreateNotification(&types.Notification{ID: "n3", UserID: "u2", Kind: types.NotificationComment, CreatedAt: now}))

	list, err := store.ListNotifications("u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "n2", list[0].ID)

	changed, err := store.MarkNotificationsRead("u1")
	require.NoError(t, err)
	assert.Equal(t, 2, changed)

	changed, err = store.MarkNotificationsRead("u1")
	require.NoError(t, err)
	assert.Equal(t, 0, changed)

	other, err := store.ListNotifications("u2")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.False(t, other[0].Read)
}

func TestBackup(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateUser(&types.User{ID: "u1", Username: "alice"}))

	dir := t.TempDir()
	f, err := os.Create(filepath.Join(dir, "forkful.db"))
	require.NoError(t, err)
	n, err := store.Backup(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Greater(t, n, int64(0))

	restored, err := NewBoltStore(dir)
	require.NoError(t, err)
	defer restored.Close()

	got, err := restored.GetUser("u1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
}

func TestOpenLockedDatabase(t *testing.T) {
	dir := t.TempDir()
	store, err := NewBoltStore(dir)
	require.NoError(t, err)
	defer store.Close()

	_, err = NewBoltStore(dir)
	assert.Error(t, err)
}
