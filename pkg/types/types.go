package types

import (
	"time"
)

// User is a registered account
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	Bio          string    `json:"bio,omitempty"`
	AvatarPath   string    `json:"avatar_path,omitempty"`
	PasswordHash []byte    `json:"password_hash,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Recipe is a user-authored recipe. Ingredients are ordered as authored and
// each entry is a free-text line such as "1 1/2 cups flour, sifted".
type Recipe struct {
	ID          string    `json:"id"`
	AuthorID    string    `json:"author_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Ingredients []string  `json:"ingredients"`
	Steps       []string  `json:"steps"`
	Servings    int       `json:"servings"`
	Tags        []string  `json:"tags,omitempty"`
	ImagePath   string    `json:"image_path,omitempty"`
	ForkedFrom  string    `json:"forked_from,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Rating is one user's star rating of a recipe. A user has at most one
// rating per recipe.
type Rating struct {
	RecipeID  string    `json:"recipe_id"`
	UserID    string    `json:"user_id"`
	Stars     int       `json:"stars"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	MinStars = 1
	MaxStars = 5
)

// RatingSummary aggregates the ratings of one recipe
type RatingSummary struct {
	RecipeID string  `json:"recipe_id"`
	Average  float64 `json:"average"`
	Count    int     `json:"count"`
}

// Comment is a comment left on a recipe
type Comment struct {
	ID        string    `json:"id"`
	RecipeID  string    `json:"recipe_id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Follow records that FollowerID follows FolloweeID
type Follow struct {
	FollowerID string    `json:"follower_id"`
	FolloweeID string    `json:"followee_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Message is a direct message between two users. Body holds plaintext in
// memory; the store only ever sees Sealed.
type Message struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	Body        string    `json:"body,omitempty"`
	Sealed      []byte    `json:"sealed,omitempty"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
}

// NotificationKind describes what triggered a notification
type NotificationKind string

const (
	NotificationFollow    NotificationKind = "follow"
	NotificationComment   NotificationKind = "comment"
	NotificationRating    NotificationKind = "rating"
	NotificationFork      NotificationKind = "fork"
	NotificationMessage   NotificationKind = "message"
	NotificationNewRecipe NotificationKind = "new_recipe"
)

// Notification is an entry in a user's notification feed
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	ActorID   string           `json:"actor_id"`
	Kind      NotificationKind `json:"kind"`
	RecipeID  string           `json:"recipe_id,omitempty"`
	Text      string           `json:"text"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}
