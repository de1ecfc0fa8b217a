package types

import "time"

// Request and response bodies of the JSON API

type RegisterRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	Password    string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *PublicUser `json:"user"`
}

// PublicUser is a User without its credentials
type PublicUser struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Bio         string    `json:"bio,omitempty"`
	AvatarPath  string    `json:"avatar_path,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Public strips credentials from u
func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Bio:         u.Bio,
		AvatarPath:  u.AvatarPath,
		CreatedAt:   u.CreatedAt,
	}
}

type RecipeRequest struct {
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description,omitempty" yaml:"description"`
	Ingredients []string `json:"ingredients" yaml:"ingredients"`
	Steps       []string `json:"steps,omitempty" yaml:"steps"`
	Servings    int      `json:"servings,omitempty" yaml:"servings"`
	Tags        []string `json:"tags,omitempty" yaml:"tags"`
}

// ScaledRecipe is a recipe rendered at a scale factor
type ScaledRecipe struct {
	*Recipe
	Factor   float64       `json:"factor"`
	Summary  RatingSummary `json:"summary"`
	Original []string      `json:"original_ingredients,omitempty"`
}

type ScaleRequest struct {
	Lines    []string `json:"lines"`
	Factor   float64  `json:"factor,omitempty"`
	Servings int      `json:"servings,omitempty"`
	Base     int      `json:"base,omitempty"`
}

type ScaleResponse struct {
	Factor float64  `json:"factor"`
	Lines  []string `json:"lines"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
