package backend

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/cuemby/forkful/pkg/events"
	"github.com/cuemby/forkful/pkg/media"
	"github.com/cuemby/forkful/pkg/metrics"
	"github.com/cuemby/forkful/pkg/types"
)

const (
	maxTitleLength   = 200
	maxCommentLength = 2000
	maxTags          = 10
)

// RecipeInput carries the editable fields of a recipe
type RecipeInput struct {
	Title       string
	Description string
	Ingredients []string
	Steps       []string
	Servings    int
	Tags        []string
}

func (b *Backend) normalizeRecipe(in RecipeInput) (RecipeInput, error) {
	out := RecipeInput{
		Title:       b.plain(in.Title),
		Description: b.plain(in.Description),
		Ingredients: b.plainLines(in.Ingredients),
		Steps:       b.plainLines(in.Steps),
		Servings:    in.Servings,
	}

	if out.Title == "" {
		return out, invalid("title is required")
	}
	if len(out.Title) > maxTitleLength {
		return out, invalid("title must be at most %d characters", maxTitleLength)
	}
	if len(out.Ingredients) == 0 {
		return out, invalid("at least one ingredient is required")
	}
	if out.Servings < 0 {
		return out, invalid("servings cannot be negative")
	}
	if out.Servings == 0 {
		out.Servings = 1
	}

	seen := make(map[string]bool)
	for _, tag := range in.Tags {
		tag = strings.ToLower(b.plain(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out.Tags = append(out.Tags, tag)
	}
	if len(out.Tags) > maxTags {
		return out, invalid("at most %d tags are allowed", maxTags)
	}

	return out, nil
}

// CreateRecipe stores a new recipe owned by authorID
func (b *Backend) CreateRecipe(authorID string, in RecipeInput) (*types.Recipe, error) {
	if _, err := b.store.GetUser(authorID); err != nil {
		return nil, err
	}

	in, err := b.normalizeRecipe(in)
	if err != nil {
		return nil, err
	}

	now := b.now()
	recipe := &types.Recipe{
		ID:          newID(),
		AuthorID:    authorID,
		Title:       in.Title,
		Description: in.Description,
		Ingredients: in.Ingredients,
		Steps:       in.Steps,
		Servings:    in.Servings,
		Tags:        in.Tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := b.store.CreateRecipe(recipe); err != nil {
		return nil, fmt.Errorf("failed to create recipe: %w", err)
	}

	metrics.RecipesTotal.Inc()
	metrics.RecipeWritesTotal.WithLabelValues("create").Inc()
	b.logger.Info().Str("recipe_id", recipe.ID).Str("author_id", authorID).Msg("Recipe created")
	b.publish(events.TableRecipes, events.OpInsert, recipe.ID, authorID, nil, map[string]string{
		"title": recipe.Title,
	})

	return recipe, nil
}

// ownedRecipe loads a recipe and checks that userID may modify it
func (b *Backend) ownedRecipe(userID, recipeID string) (*types.Recipe, error) {
	recipe, err := b.store.GetRecipe(recipeID)
	if err != nil {
		return nil, err
	}
	if recipe.AuthorID != userID {
		return nil, ErrForbidden
	}
	return recipe, nil
}

// UpdateRecipe replaces the editable fields of a recipe the caller owns
func (b *Backend) UpdateRecipe(userID, recipeID string, in RecipeInput) (*types.Recipe, error) {
	recipe, err := b.ownedRecipe(userID, recipeID)
	if err != nil {
		return nil, err
	}

	in, err = b.normalizeRecipe(in)
	if err != nil {
		return nil, err
	}

	recipe.Title = in.Title
	recipe.Description = in.Description
	recipe.Ingredients = in.Ingredients
	recipe.Steps = in.Steps
	recipe.Servings = in.Servings
	recipe.Tags = in.Tags
	recipe.UpdatedAt = b.now()

	if err := b.store.UpdateRecipe(recipe); err != nil {
		return nil, fmt.Errorf("failed to update recipe: %w", err)
	}

	metrics.RecipeWritesTotal.WithLabelValues("update").Inc()
	b.publish(events.TableRecipes, events.OpUpdate, recipe.ID, userID, nil, map[string]string{
		"title": recipe.Title,
	})
	return recipe, nil
}

// DeleteRecipe removes a recipe the caller owns together with its media,
// ratings and comments
func (b *Backend) DeleteRecipe(userID, recipeID string) error {
	recipe, err := b.ownedRecipe(userID, recipeID)
	if err != nil {
		return err
	}

	if err := b.store.DeleteRecipe(recipe.ID); err != nil {
		return fmt.Errorf("failed to delete recipe: %w", err)
	}

	if err := b.media.Delete("recipes/" + recipe.ID); err != nil {
		b.logger.Warn().Err(err).Str("recipe_id", recipe.ID).Msg("Failed to delete recipe media")
	}
	b.summaries.Invalidate(recipe.ID)

	metrics.RecipesTotal.Dec()
	metrics.RecipeWritesTotal.WithLabelValues("delete").Inc()
	b.publish(events.TableRecipes, events.OpDelete, recipe.ID, userID, nil, nil)
	return nil
}

// GetRecipe returns a recipe by ID
func (b *Backend) GetRecipe(id string) (*types.Recipe, error) {
	return b.store.GetRecipe(id)
}

// RecipeQuery filters ListRecipes. Empty fields match everything.
type RecipeQuery struct {
	Search   string
	Tag      string
	AuthorID string
	Limit    int
}

// ListRecipes returns recipes newest first
func (b *Backend) ListRecipes(q RecipeQuery) ([]*types.Recipe, error) {
	var (
		recipes []*types.Recipe
		err     error
	)
	if q.AuthorID != "" {
		recipes, err = b.store.ListRecipesByAuthor(q.AuthorID)
	} else {
		recipes, err = b.store.ListRecipes()
	}
	if err != nil {
		return nil, err
	}

	search := strings.ToLower(strings.TrimSpace(q.Search))
	tag := strings.ToLower(strings.TrimSpace(q.Tag))

	out := make([]*types.Recipe, 0, len(recipes))
	for _, r := range recipes {
		if search != "" && !matchesSearch(r, search) {
			continue
		}
		if tag != "" && !hasTag(r, tag) {
			continue
		}
		out = append(out, r)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func matchesSearch(r *types.Recipe, term string) bool {
	if strings.Contains(strings.ToLower(r.Title), term) {
		return true
	}
	for _, line := range r.Ingredients {
		if strings.Contains(strings.ToLower(line), term) {
			return true
		}
	}
	return false
}

func hasTag(r *types.Recipe, tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ListForks returns the direct forks of a recipe
func (b *Backend) ListForks(recipeID string) ([]*types.Recipe, error) {
	return b.store.ListForks(recipeID)
}

// ForkRecipe copies a recipe into the caller's collection. The copy links
// back through ForkedFrom; the image is not copied.
func (b *Backend) ForkRecipe(userID, recipeID string) (*types.Recipe, error) {
	if _, err := b.store.GetUser(userID); err != nil {
		return nil, err
	}

	orig, err := b.store.GetRecipe(recipeID)
	if err != nil {
		return nil, err
	}

	now := b.now()
	fork := &types.Recipe{
		ID:          newID(),
		AuthorID:    userID,
		Title:       orig.Title,
		Description: orig.Description,
		Ingredients: append([]string(nil), orig.Ingredients...),
		Steps:       append([]string(nil), orig.Steps...),
		Servings:    orig.Servings,
		Tags:        append([]string(nil), orig.Tags...),
		ForkedFrom:  orig.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := b.store.CreateRecipe(fork); err != nil {
		return nil, fmt.Errorf("failed to fork recipe: %w", err)
	}

	metrics.RecipesTotal.Inc()
	metrics.RecipeWritesTotal.WithLabelValues("fork").Inc()
	b.logger.Info().Str("recipe_id", fork.ID).Str("forked_from", orig.ID).Msg("Recipe forked")
	b.publish(events.TableRecipes, events.OpInsert, fork.ID, userID, []string{orig.AuthorID}, map[string]string{
		"title":       fork.Title,
		"forked_from": orig.ID,
	})

	return fork, nil
}

// UploadRecipeImage stores the cover image of a recipe the caller owns
func (b *Backend) UploadRecipeImage(userID, recipeID string, r io.Reader) (*types.Recipe, error) {
	recipe, err := b.ownedRecipe(userID, recipeID)
	if err != nil {
		return nil, err
	}

	obj, err := b.media.Put("recipes/"+recipe.ID+"/cover", r)
	if err != nil {
		return nil, mediaError(err)
	}

	recipe.ImagePath = obj.Path
	recipe.UpdatedAt = b.now()
	if err := b.store.UpdateRecipe(recipe); err != nil {
		return nil, fmt.Errorf("failed to update recipe: %w", err)
	}

	b.publish(events.TableRecipes, events.OpUpdate, recipe.ID, userID, nil, map[string]string{
		"title": recipe.Title,
	})
	return recipe, nil
}

// OpenMedia returns a stored media file
func (b *Backend) OpenMedia(path string) (io.ReadCloser, *media.Object, error) {
	rc, obj, err := b.media.Open(path)
	if err != nil {
		if errors.Is(err, media.ErrNotFound) || errors.Is(err, media.ErrInvalidPath) {
			return nil, nil, fmt.Errorf("media %s: %w", path, ErrNotFound)
		}
		return nil, nil, err
	}
	return rc, obj, nil
}

func mediaError(err error) error {
	switch {
	case errors.Is(err, media.ErrTooLarge), errors.Is(err, media.ErrUnsupported), errors.Is(err, media.ErrInvalidPath):
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	default:
		return err
	}
}

// RateRecipe records the caller's star rating, replacing any earlier one
func (b *Backend) RateRecipe(userID, recipeID string, stars int) (*types.Rating, error) {
	if stars < types.MinStars || stars > types.MaxStars {
		return nil, invalid("stars must be between %d and %d", types.MinStars, types.MaxStars)
	}

	recipe, err := b.store.GetRecipe(recipeID)
	if err != nil {
		return nil, err
	}

	now := b.now()
	op := events.OpInsert
	rating := &types.Rating{
		RecipeID:  recipe.ID,
		UserID:    userID,
		Stars:     stars,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if existing, err := b.store.GetRating(recipe.ID, userID); err == nil {
		rating.CreatedAt = existing.CreatedAt
		op = events.OpUpdate
	}

	if err := b.store.PutRating(rating); err != nil {
		return nil, fmt.Errorf("failed to save rating: %w", err)
	}
	b.summaries.Invalidate(recipe.ID)

	b.publish(events.TableRatings, op, recipe.ID+"/"+userID, userID, []string{recipe.AuthorID}, map[string]string{
		"recipe_id": recipe.ID,
		"title":     recipe.Title,
		"stars":     fmt.Sprint(stars),
	})
	return rating, nil
}

// RecipeSummary returns the cached rating aggregate of a recipe
func (b *Backend) RecipeSummary(recipeID string) (types.RatingSummary, error) {
	return b.summaries.GetOrLoad(recipeID, func() (types.RatingSummary, error) {
		ratings, err := b.store.ListRatings(recipeID)
		if err != nil {
			return types.RatingSummary{}, err
		}
		return summarize(recipeID, ratings), nil
	})
}

func summarize(recipeID string, ratings []*types.Rating) types.RatingSummary {
	s := types.RatingSummary{RecipeID: recipeID, Count: len(ratings)}
	if len(ratings) == 0 {
		return s
	}
	total := 0
	for _, r := range ratings {
		total += r.Stars
	}
	s.Average = float64(total) / float64(len(ratings))
	return s
}

// UserRating returns the caller's rating of a recipe, or zero stars
func (b *Backend) UserRating(userID, recipeID string) int {
	r, err := b.store.GetRating(recipeID, userID)
	if err != nil {
		return 0
	}
	return r.Stars
}

// AddComment posts a comment on a recipe
func (b *Backend) AddComment(userID, recipeID, body string) (*types.Comment, error) {
	body = b.plain(body)
	if body == "" {
		return nil, invalid("comment cannot be empty")
	}
	if len(body) > maxCommentLength {
		return nil, invalid("comment must be at most %d characters", maxCommentLength)
	}

	recipe, err := b.store.GetRecipe(recipeID)
	if err != nil {
		return nil, err
	}

	comment := &types.Comment{
		ID:        newID(),
		RecipeID:  recipe.ID,
		AuthorID:  userID,
		Body:      body,
		CreatedAt: b.now(),
	}

	if err := b.store.CreateComment(comment); err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	b.publish(events.TableComments, events.OpInsert, comment.ID, userID, []string{recipe.AuthorID}, map[string]string{
		"recipe_id": recipe.ID,
		"title":     recipe.Title,
	})
	return comment, nil
}

// ListComments returns the comments of a recipe, oldest first
func (b *Backend) ListComments(recipeID string) ([]*types.Comment, error) {
	return b.store.ListComments(recipeID)
}

// TopTags returns the most used tags across all recipes
func (b *Backend) TopTags(limit int) ([]string, error) {
	recipes, err := b.store.ListRecipes()
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, r := range recipes {
		for _, t := range r.Tags {
			counts[t]++
		}
	}

	tags := make([]string, 0, len(counts))
	for t := range counts {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool {
		if counts[tags[i]] != counts[tags[j]] {
			return counts[tags[i]] > counts[tags[j]]
		}
		return tags[i] < tags[j]
	})

	if limit > 0 && len(tags) > limit {
		tags = tags[:limit]
	}
	return tags, nil
}
