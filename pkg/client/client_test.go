package client

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cuemby/forkful/pkg/backend"
	"github.com/cuemby/forkful/pkg/events"
	"github.com/cuemby/forkful/pkg/media"
	"github.com/cuemby/forkful/pkg/security"
	"github.com/cuemby/forkful/pkg/storage"
	"github.com/cuemby/forkful/pkg/types"
	"github.com/cuemby/forkful/pkg/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	dir := t.TempDir()
	store, err := storage.NewBoltStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)

	mediaStore, err := media.NewLocalStore(dir+"/media", 1<<20)
	require.NoError(t, err)
	sealer, err := security.NewMessageSealerFromSecret("client-test")
	require.NoError(t, err)

	b, err := backend.New(&backend.Config{
		Store:    store,
		Broker:   broker,
		Media:    mediaStore,
		Sessions: security.NewSessionManager(time.Hour),
		Sealer:   sealer,
	})
	require.NoError(t, err)

	srv, err := web.NewServer(&web.Config{Backend: b})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestNewClientAddress(t *testing.T) {
	tests := []struct {
		addr    string
		want    string
		wantErr bool
	}{
		{"localhost:8080", "http://localhost:8080", false},
		{"https://recipes.example.com/", "https://recipes.example.com", false},
		{"http://", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			c, err := NewClient(tt.addr)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.baseURL)
		})
	}
}

func TestRegisterLoginAndRecipes(t *testing.T) {
	ts := newTestServer(t)

	c, err := NewClient(ts.URL)
	require.NoError(t, err)

	user, err := c.Register("alice", "Alice", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	_, err = c.Register("alice", "", "correct horse")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)

	_, err = c.CreateRecipe(&types.RecipeRequest{Title: "Bread", Ingredients: []string{"1 cup flour"}})
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	_, err = c.Login("alice", "wrong password")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	login, err := c.Login("alice", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, login.Token, c.Token())

	me, err := c.Me()
	require.NoError(t, err)
	assert.Equal(t, user.ID, me.ID)

	recipe, err := c.CreateRecipe(&types.RecipeRequest{
		Title:       "Bread",
		Ingredients: []string{"1 1/2 cups flour", "1/3 cup water"},
		Servings:    2,
		Tags:        []string{"baking"},
	})
	require.NoError(t, err)
	assert.Equal(t, user.ID, recipe.AuthorID)

	list, err := c.ListRecipes(ListOptions{Author: "alice", Tag: "baking"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, recipe.ID, list[0].ID)

	scaled, err := c.GetRecipe(recipe.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, float64(2), scaled.Factor)
	assert.Equal(t, []string{"3 cups flour", "2/3 cup water"}, scaled.Ingredients)
	assert.Equal(t, []string{"1 1/2 cups flour", "1/3 cup water"}, scaled.Original)

	_, err = c.GetRecipe("missing", 1)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)

	authed, err := NewClientWithToken(ts.URL, login.Token)
	require.NoError(t, err)
	me, err = authed.Me()
	require.NoError(t, err)
	assert.Equal(t, "alice", me.Username)
}

func TestScale(t *testing.T) {
	ts := newTestServer(t)
	c, err := NewClient(ts.URL)
	require.NoError(t, err)

	resp, err := c.Scale(&types.ScaleRequest{Lines: []string{"2 eggs", "salt to taste"}, Factor: 1.5})
	require.NoError(t, err)
	assert.Equal(t, []string{"3 eggs", "salt to taste"}, resp.Lines)

	resp, err = c.Scale(&types.ScaleRequest{Lines: []string{"1 cup milk"}, Servings: 6, Base: 4})
	require.NoError(t, err)
	assert.Equal(t, 1.5, resp.Factor)
	assert.Equal(t, []string{"1 1/2 cup milk"}, resp.Lines)

	_, err = c.Scale(&types.ScaleRequest{Lines: []string{"1 cup milk"}})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}
