package storage

import (
	"errors"

	"github.com/cuemby/forkful/pkg/types"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a unique key is already taken
	ErrConflict = errors.New("conflict")
)

// Store defines the interface for application state storage.
// Every list operation returns records newest first unless noted.
type Store interface {
	// Users
	CreateUser(user *types.User) error
	GetUser(id string) (*types.User, error)
	GetUserByUsername(username string) (*types.User, error)
	ListUsers() ([]*types.User, error)
	UpdateUser(user *types.User) error

	// Recipes
	CreateRecipe(recipe *types.Recipe) error
	GetRecipe(id string) (*types.Recipe, error)
	ListRecipes() ([]*types.Recipe, error)
	ListRecipesByAuthor(authorID string) ([]*types.Recipe, error)
	ListForks(recipeID string) ([]*types.Recipe, error)
	UpdateRecipe(recipe *types.Recipe) error
	DeleteRecipe(id string) error

	// Ratings
	PutRating(rating *types.Rating) error
	GetRating(recipeID, userID string) (*types.Rating, error)
	ListRatings(recipeID string) ([]*types.Rating, error)

	// Comments (oldest first)
	CreateComment(comment *types.Comment) error
	ListComments(recipeID string) ([]*types.Comment, error)

	// Follows
	CreateFollow(follow *types.Follow) error
	DeleteFollow(followerID, followeeID string) error
	IsFollowing(followerID, followeeID string) (bool, error)
	ListFollowers(userID string) ([]string, error)
	ListFollowing(userID string) ([]string, error)

	// Messages (oldest first)
	CreateMessage(msg *types.Message) error
	UpdateMessage(msg *types.Message) error
	ListMessagesBetween(a, b string) ([]*types.Message, error)
	ListMessagesFor(userID string) ([]*types.Message, error)

	// Notifications
	CreateNotification(n *types.Notification) error
	ListNotifications(userID string) ([]*types.Notification, error)
	MarkNotificationsRead(userID string) (int, error)

	// Utility
	Close() error
}
