package backend

import (
	"errors"
	"fmt"
	"io"
	"regexp"

	"github.com/cuemby/forkful/pkg/events"
	"github.com/cuemby/forkful/pkg/metrics"
	"github.com/cuemby/forkful/pkg/security"
	"github.com/cuemby/forkful/pkg/storage"
	"github.com/cuemby/forkful/pkg/types"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,32}$`)

const maxBioLength = 500

// Register creates a new account
func (b *Backend) Register(username, displayName, password string) (*types.User, error) {
	if !usernamePattern.MatchString(username) {
		return nil, invalid("username must be 3-32 letters, digits or underscores")
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return nil, invalid("%v", err)
	}

	displayName = b.plain(displayName)
	if displayName == "" {
		displayName = username
	}

	now := b.now()
	user := &types.User{
		ID:           newID(),
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := b.store.CreateUser(user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	metrics.UsersTotal.Inc()
	b.logger.Info().Str("user_id", user.ID).Str("username", username).Msg("User registered")
	b.publish(events.TableUsers, events.OpInsert, user.ID, user.ID, nil, nil)

	return user, nil
}

// Login checks credentials and opens a session
func (b *Backend) Login(username, password string) (*security.Session, *types.User, error) {
	user, err := b.store.GetUserByUsername(username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, ErrUnauthorized
		}
		return nil, nil, err
	}

	if err := security.CheckPassword(user.PasswordHash, password); err != nil {
		return nil, nil, ErrUnauthorized
	}

	session, err := b.sessions.Create(user.ID)
	if err != nil {
		return nil, nil, err
	}

	return session, user, nil
}

// Logout ends a session
func (b *Backend) Logout(token string) {
	b.sessions.Revoke(token)
}

// Authenticate resolves a session token to its user
func (b *Backend) Authenticate(token string) (*types.User, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}

	userID, err := b.sessions.Validate(token)
	if err != nil {
		return nil, ErrUnauthorized
	}

	user, err := b.store.GetUser(userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	return user, nil
}

// GetUser returns a user by ID
func (b *Backend) GetUser(id string) (*types.User, error) {
	return b.store.GetUser(id)
}

// GetUserByUsername returns a user by username
func (b *Backend) GetUserByUsername(username string) (*types.User, error) {
	return b.store.GetUserByUsername(username)
}

// ProfileInput carries editable profile fields
type ProfileInput struct {
	DisplayName string
	Bio         string
}

// UpdateProfile edits the caller's own profile
func (b *Backend) UpdateProfile(userID string, in ProfileInput) (*types.User, error) {
	user, err := b.store.GetUser(userID)
	if err != nil {
		return nil, err
	}

	displayName := b.plain(in.DisplayName)
	if displayName == "" {
		return nil, invalid("display name is required")
	}
	bio := b.plain(in.Bio)
	if len(bio) > maxBioLength {
		return nil, invalid("bio must be at most %d characters", maxBioLength)
	}

	user.DisplayName = displayName
	user.Bio = bio
	user.UpdatedAt = b.now()

	if err := b.store.UpdateUser(user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	b.publish(events.TableUsers, events.OpUpdate, user.ID, user.ID, nil, nil)
	return user, nil
}

// UploadAvatar stores the caller's avatar image
func (b *Backend) UploadAvatar(userID string, r io.Reader) (*types.User, error) {
	user, err := b.store.GetUser(userID)
	if err != nil {
		return nil, err
	}

	obj, err := b.media.Put("avatars/"+user.ID, r)
	if err != nil {
		return nil, mediaError(err)
	}

	user.AvatarPath = obj.Path
	user.UpdatedAt = b.now()
	if err := b.store.UpdateUser(user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	b.publish(events.TableUsers, events.OpUpdate, user.ID, user.ID, nil, nil)
	return user, nil
}
