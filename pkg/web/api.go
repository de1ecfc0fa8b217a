package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cuemby/forkful/pkg/backend"
	"github.com/cuemby/forkful/pkg/metrics"
	"github.com/cuemby/forkful/pkg/scale"
	"github.com/cuemby/forkful/pkg/types"
)

const maxJSONBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeAPIError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Str("request_id", requestID(r)).Msg("API request failed")
		message = "internal error"
	}
	writeJSON(w, status, types.ErrorResponse{Error: message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", backend.ErrInvalid, err)
	}
	return nil
}

func (s *Server) apiRegister(w http.ResponseWriter, r *http.Request) {
	var req types.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeAPIError(w, r, err)
		return
	}

	user, err := s.backend.Register(req.Username, req.DisplayName, req.Password)
	if err != nil {
		s.writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user.Public())
}

func (s *Server) apiLogin(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeAPIError(w, r, err)
		return
	}

	session, user, err := s.backend.Login(req.Username, req.Password)
	if err != nil {
		s.writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.LoginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      user.Public(),
	})
}

func (s *Server) apiMe(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if user == nil {
		s.writeAPIError(w, r, backend.ErrUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, user.Public())
}

func (s *Server) apiListRecipes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := backend.RecipeQuery{Search: q.Get("q"), Tag: q.Get("tag")}

	if author := q.Get("author"); author != "" {
		u, err := s.backend.GetUserByUsername(author)
		if err != nil {
			s.writeAPIError(w, r, err)
			return
		}
		query.AuthorID = u.ID
	}

	recipes, err := s.backend.ListRecipes(query)
	if err != nil {
		s.writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recipes)
}

func (s *Server) apiCreateRecipe(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if user == nil {
		s.writeAPIError(w, r, backend.ErrUnauthorized)
		return
	}

	var req types.RecipeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeAPIError(w, r, err)
		return
	}

	recipe, err := s.backend.CreateRecipe(user.ID, backend.RecipeInput{
		Title:       req.Title,
		Description: req.Description,
		Ingredients: req.Ingredients,
		Steps:       req.Steps,
		Servings:    req.Servings,
		Tags:        req.Tags,
	})
	if err != nil {
		s.writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, recipe)
}

func (s *Server) apiGetRecipe(w http.ResponseWriter, r *http.Request) {
	recipe, err := s.backend.GetRecipe(r.PathValue("id"))
	if err != nil {
		s.writeAPIError(w, r, err)
		return
	}

	summary, err := s.backend.RecipeSummary(recipe.ID)
	if err != nil {
		s.writeAPIError(w, r, err)
		return
	}

	factor := s.scaleFactor(r.URL.Query(), recipe)
	out := types.ScaledRecipe{Recipe: recipe, Factor: factor, Summary: summary}
	if factor != 1 {
		metrics.ScaleRequestsTotal.Inc()
		scaled := *recipe
		scaled.Ingredients = scale.ScaleIngredients(recipe.Ingredients, factor)
		out.Recipe = &scaled
		out.Original = recipe.Ingredients
	}
	writeJSON(w, http.StatusOK, out)
}

// apiScale scales arbitrary lines. The factor is taken as given, or derived
// from servings and base when factor is omitted.
func (s *Server) apiScale(w http.ResponseWriter, r *http.Request) {
	var req types.ScaleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeAPIError(w, r, err)
		return
	}

	factor := req.Factor
	if factor == 0 {
		if req.Servings <= 0 || req.Base <= 0 {
			s.writeAPIError(w, r, fmt.Errorf("%w: factor or servings and base are required", backend.ErrInvalid))
			return
		}
		factor = scale.ForServings(req.Base, req.Servings)
	}

	metrics.ScaleRequestsTotal.Inc()
	writeJSON(w, http.StatusOK, types.ScaleResponse{
		Factor: factor,
		Lines:  scale.ScaleIngredients(req.Lines, factor),
	})
}
