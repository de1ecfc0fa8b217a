package web

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/cuemby/forkful/pkg/backend"
	"github.com/cuemby/forkful/pkg/metrics"
	"github.com/cuemby/forkful/pkg/scale"
	"github.com/cuemby/forkful/pkg/types"
)

type recipeItem struct {
	Recipe  *types.Recipe
	Author  *types.User
	Summary types.RatingSummary
}

type homeView struct {
	Query   string
	Tag     string
	Tags    []string
	Recipes []recipeItem
}

// authors resolves user IDs once per request
type authors struct {
	s     *Server
	cache map[string]*types.User
}

func (s *Server) authors() *authors {
	return &authors{s: s, cache: make(map[string]*types.User)}
}

func (a *authors) get(id string) *types.User {
	if u, ok := a.cache[id]; ok {
		return u
	}
	u, err := a.s.backend.GetUser(id)
	if err != nil {
		u = &types.User{ID: id, Username: "unknown", DisplayName: "Deleted user"}
	}
	a.cache[id] = u
	return u
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	view := homeView{Query: q.Get("q"), Tag: q.Get("tag")}

	recipes, err := s.backend.ListRecipes(backend.RecipeQuery{Search: view.Query, Tag: view.Tag, Limit: 100})
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	if view.Tags, err = s.backend.TopTags(20); err != nil {
		s.renderError(w, r, err)
		return
	}

	names := s.authors()
	for _, rec := range recipes {
		summary, _ := s.backend.RecipeSummary(rec.ID)
		view.Recipes = append(view.Recipes, recipeItem{Recipe: rec, Author: names.get(rec.AuthorID), Summary: summary})
	}

	s.render(w, r, http.StatusOK, "home", "", view)
}

type commentItem struct {
	Comment *types.Comment
	Author  *types.User
}

type recipeView struct {
	Recipe       *types.Recipe
	Author       *types.User
	Parent       *types.Recipe
	Ingredients  []string
	Factor       float64
	FactorLabel  string
	Servings     float64
	UpURL        string
	DownURL      string
	CanUp        bool
	CanDown      bool
	Picked       map[int]bool
	ShoppingList string
	Summary      types.RatingSummary
	MyRating     int
	Comments     []commentItem
	Forks        []*types.Recipe
	CanEdit      bool
}

// scaleFactor reads the requested factor from ?scale= or ?servings= and
// bounds it with the stepper. Without either parameter the recipe is shown
// as written.
func (s *Server) scaleFactor(q url.Values, recipe *types.Recipe) float64 {
	if raw := q.Get("scale"); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 1
		}
		return s.stepper.Clamp(f)
	}
	if raw := q.Get("servings"); raw != "" {
		target, err := strconv.Atoi(raw)
		if err != nil {
			return 1
		}
		return s.stepper.Clamp(scale.ForServings(recipe.Servings, target))
	}
	return 1
}

func factorParam(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func (s *Server) handleRecipe(w http.ResponseWriter, r *http.Request) {
	recipe, err := s.backend.GetRecipe(r.PathValue("id"))
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	q := r.URL.Query()
	factor := s.scaleFactor(q, recipe)
	if factor != 1 {
		metrics.ScaleRequestsTotal.Inc()
	}

	names := s.authors()
	view := recipeView{
		Recipe:      recipe,
		Author:      names.get(recipe.AuthorID),
		Ingredients: scale.ScaleIngredients(recipe.Ingredients, factor),
		Factor:      factor,
		FactorLabel: factorParam(factor),
		Servings:    float64(recipe.Servings) * factor,
		Picked:      make(map[int]bool),
	}

	up, down := s.stepper.Increment(factor), s.stepper.Decrement(factor)
	view.CanUp, view.CanDown = up != factor, down != factor
	view.UpURL = "/recipes/" + recipe.ID + "?scale=" + factorParam(up)
	view.DownURL = "/recipes/" + recipe.ID + "?scale=" + factorParam(down)

	if picks := q["pick"]; len(picks) > 0 {
		selected := make([]int, 0, len(picks))
		for _, p := range picks {
			if i, err := strconv.Atoi(p); err == nil {
				selected = append(selected, i)
				view.Picked[i] = true
			}
		}
		view.ShoppingList = scale.ShoppingList(view.Ingredients, selected)
	}

	if recipe.ForkedFrom != "" {
		if parent, err := s.backend.GetRecipe(recipe.ForkedFrom); err == nil {
			view.Parent = parent
		}
	}

	if view.Summary, err = s.backend.RecipeSummary(recipe.ID); err != nil {
		s.renderError(w, r, err)
		return
	}

	comments, err := s.backend.ListComments(recipe.ID)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	for _, c := range comments {
		view.Comments = append(view.Comments, commentItem{Comment: c, Author: names.get(c.AuthorID)})
	}

	if view.Forks, err = s.backend.ListForks(recipe.ID); err != nil {
		s.renderError(w, r, err)
		return
	}

	if user := currentUser(r); user != nil {
		view.CanEdit = user.ID == recipe.AuthorID
		view.MyRating = s.backend.UserRating(user.ID, recipe.ID)
	}

	s.render(w, r, http.StatusOK, "recipe", recipe.Title, view)
}

type recipeFormView struct {
	Recipe *types.Recipe
	Action string
	Input  backend.RecipeInput
	Error  string
}

func splitLines(s string) []string {
	return strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
}

func recipeInputFromForm(r *http.Request) backend.RecipeInput {
	in := backend.RecipeInput{
		Title:       r.PostFormValue("title"),
		Description: r.PostFormValue("description"),
		Ingredients: splitLines(r.PostFormValue("ingredients")),
		Steps:       splitLines(r.PostFormValue("steps")),
	}
	in.Servings, _ = strconv.Atoi(r.PostFormValue("servings"))
	for _, tag := range strings.Split(r.PostFormValue("tags"), ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			in.Tags = append(in.Tags, tag)
		}
	}
	return in
}

func (s *Server) handleNewRecipeForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "recipe_form", "New recipe", recipeFormView{
		Action: "/recipes",
		Input:  backend.RecipeInput{Servings: 1},
	})
}

func (s *Server) handleCreateRecipe(w http.ResponseWriter, r *http.Request) {
	in := recipeInputFromForm(r)
	recipe, err := s.backend.CreateRecipe(currentUser(r).ID, in)
	if err != nil {
		if errors.Is(err, backend.ErrInvalid) {
			s.render(w, r, http.StatusBadRequest, "recipe_form", "New recipe", recipeFormView{
				Action: "/recipes",
				Input:  in,
				Error:  err.Error(),
			})
			return
		}
		s.renderError(w, r, err)
		return
	}
	redirect(w, r, "/recipes/"+recipe.ID)
}

func (s *Server) handleEditRecipeForm(w http.ResponseWriter, r *http.Request) {
	recipe, err := s.backend.GetRecipe(r.PathValue("id"))
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	if recipe.AuthorID != currentUser(r).ID {
		s.renderError(w, r, backend.ErrForbidden)
		return
	}

	s.render(w, r, http.StatusOK, "recipe_form", "Edit "+recipe.Title, recipeFormView{
		Recipe: recipe,
		Action: "/recipes/" + recipe.ID + "/edit",
		Input: backend.RecipeInput{
			Title:       recipe.Title,
			Description: recipe.Description,
			Ingredients: recipe.Ingredients,
			Steps:       recipe.Steps,
			Servings:    recipe.Servings,
			Tags:        recipe.Tags,
		},
	})
}

func (s *Server) handleUpdateRecipe(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	in := recipeInputFromForm(r)
	recipe, err := s.backend.UpdateRecipe(currentUser(r).ID, id, in)
	if err != nil {
		if errors.Is(err, backend.ErrInvalid) {
			s.render(w, r, http.StatusBadRequest, "recipe_form", "Edit recipe", recipeFormView{
				Recipe: &types.Recipe{ID: id, Title: in.Title},
				Action: "/recipes/" + id + "/edit",
				Input:  in,
				Error:  err.Error(),
			})
			return
		}
		s.renderError(w, r, err)
		return
	}
	redirect(w, r, "/recipes/"+recipe.ID)
}

func (s *Server) handleDeleteRecipe(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.DeleteRecipe(currentUser(r).ID, r.PathValue("id")); err != nil {
		s.renderError(w, r, err)
		return
	}
	redirect(w, r, "/?flash="+url.QueryEscape("Recipe deleted"))
}

func (s *Server) handleForkRecipe(w http.ResponseWriter, r *http.Request) {
	fork, err := s.backend.ForkRecipe(currentUser(r).ID, r.PathValue("id"))
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	redirect(w, r, "/recipes/"+fork.ID+"/edit")
}

func (s *Server) handleRateRecipe(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	stars, err := strconv.Atoi(r.PostFormValue("stars"))
	if err != nil {
		s.renderError(w, r, backend.ErrInvalid)
		return
	}
	if _, err := s.backend.RateRecipe(currentUser(r).ID, id, stars); err != nil {
		s.renderError(w, r, err)
		return
	}
	redirect(w, r, "/recipes/"+id)
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.backend.AddComment(currentUser(r).ID, id, r.PostFormValue("body")); err != nil {
		s.renderError(w, r, err)
		return
	}
	redirect(w, r, "/recipes/"+id)
}

func (s *Server) handleRecipeImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	file, err := s.formFile(w, r, "image")
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	defer file.Close()

	if _, err := s.backend.UploadRecipeImage(currentUser(r).ID, id, file); err != nil {
		s.renderError(w, r, err)
		return
	}
	redirect(w, r, "/recipes/"+id)
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	rc, obj, err := s.backend.OpenMedia(r.PathValue("path"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "public, max-age=300")
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Debug().Err(err).Str("path", obj.Path).Msg("Media write interrupted")
	}
}
