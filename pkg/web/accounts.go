package web

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/cuemby/forkful/pkg/backend"
	"github.com/cuemby/forkful/pkg/security"
	"github.com/cuemby/forkful/pkg/types"
)

type loginView struct {
	Username string
	Next     string
	Error    string
}

type registerView struct {
	Username    string
	DisplayName string
	Error       string
}

func (s *Server) setSessionCookie(w http.ResponseWriter, session *security.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "login", "Log in", loginView{Next: r.URL.Query().Get("next")})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")
	next := r.PostFormValue("next")

	session, user, err := s.backend.Login(username, r.PostFormValue("password"))
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			s.renderError(w, r, err)
			return
		}
		s.render(w, r, status, "login", "Log in", loginView{
			Username: username,
			Next:     next,
			Error:    "Wrong username or password.",
		})
		return
	}

	s.setSessionCookie(w, session)
	s.logger.Info().Str("user_id", user.ID).Msg("User logged in")
	redirect(w, r, safeNext(next))
}

func (s *Server) handleRegisterForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "register", "Sign up", registerView{})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	view := registerView{
		Username:    r.PostFormValue("username"),
		DisplayName: r.PostFormValue("display_name"),
	}
	password := r.PostFormValue("password")

	if _, err := s.backend.Register(view.Username, view.DisplayName, password); err != nil {
		status := statusFor(err)
		switch status {
		case http.StatusConflict:
			view.Error = "That username is taken."
		case http.StatusBadRequest:
			view.Error = err.Error()
		default:
			s.renderError(w, r, err)
			return
		}
		s.render(w, r, status, "register", "Sign up", view)
		return
	}

	session, _, err := s.backend.Login(view.Username, password)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.setSessionCookie(w, session)
	redirect(w, r, "/")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := sessionToken(r); token != "" {
		s.backend.Logout(token)
	}
	clearSessionCookie(w)
	redirect(w, r, "/")
}

type profileView struct {
	Profile     *types.User
	Recipes     []*types.Recipe
	Followers   []*types.User
	Following   []*types.User
	IsSelf      bool
	IsFollowing bool
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.backend.GetUserByUsername(r.PathValue("username"))
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	view := profileView{Profile: profile}
	if view.Recipes, err = s.backend.ListRecipes(backend.RecipeQuery{AuthorID: profile.ID}); err != nil {
		s.renderError(w, r, err)
		return
	}
	if view.Followers, err = s.backend.Followers(profile.ID); err != nil {
		s.renderError(w, r, err)
		return
	}
	if view.Following, err = s.backend.Following(profile.ID); err != nil {
		s.renderError(w, r, err)
		return
	}

	if user := currentUser(r); user != nil {
		view.IsSelf = user.ID == profile.ID
		if !view.IsSelf {
			view.IsFollowing, _ = s.backend.IsFollowing(user.ID, profile.ID)
		}
	}

	s.render(w, r, http.StatusOK, "profile", profile.DisplayName, view)
}

func (s *Server) handleFollow(w http.ResponseWriter, r *http.Request) {
	s.changeFollow(w, r, s.backend.Follow)
}

func (s *Server) handleUnfollow(w http.ResponseWriter, r *http.Request) {
	s.changeFollow(w, r, s.backend.Unfollow)
}

func (s *Server) changeFollow(w http.ResponseWriter, r *http.Request, change func(followerID, followeeID string) error) {
	target, err := s.backend.GetUserByUsername(r.PathValue("username"))
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	if err := change(currentUser(r).ID, target.ID); err != nil {
		s.renderError(w, r, err)
		return
	}
	redirect(w, r, "/users/"+target.Username)
}

type settingsView struct {
	DisplayName string
	Bio         string
	Error       string
}

func (s *Server) handleSettingsForm(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	s.render(w, r, http.StatusOK, "settings", "Settings", settingsView{DisplayName: user.DisplayName, Bio: user.Bio})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+(1<<20))
	if err := r.ParseMultipartForm(s.maxUpload); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		s.renderError(w, r, fmt.Errorf("%w: %v", backend.ErrInvalid, err))
		return
	}

	in := backend.ProfileInput{
		DisplayName: r.PostFormValue("display_name"),
		Bio:         r.PostFormValue("bio"),
	}
	if _, err := s.backend.UpdateProfile(user.ID, in); err != nil {
		if errors.Is(err, backend.ErrInvalid) {
			s.render(w, r, http.StatusBadRequest, "settings", "Settings", settingsView{
				DisplayName: in.DisplayName,
				Bio:         in.Bio,
				Error:       err.Error(),
			})
			return
		}
		s.renderError(w, r, err)
		return
	}

	if r.MultipartForm != nil {
		if file, _, err := r.FormFile("avatar"); err == nil {
			defer file.Close()
			if _, err := s.backend.UploadAvatar(user.ID, file); err != nil {
				s.renderError(w, r, err)
				return
			}
		}
	}

	redirect(w, r, "/users/"+user.Username)
}

// formFile reads a single uploaded file under the upload size limit
func (s *Server) formFile(w http.ResponseWriter, r *http.Request, field string) (multipart.File, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+(1<<20))
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrInvalid, err)
	}
	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is required", backend.ErrInvalid, field)
	}
	return file, nil
}

type conversationView struct {
	With     *types.User
	Messages []*types.Message
}

func (s *Server) handleInbox(w http.ResponseWriter, r *http.Request) {
	inbox, err := s.backend.Inbox(currentUser(r).ID)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "inbox", "Messages", inbox)
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	other, err := s.backend.GetUserByUsername(r.PathValue("username"))
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	msgs, err := s.backend.Conversation(currentUser(r).ID, other.ID)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "conversation", other.DisplayName, conversationView{With: other, Messages: msgs})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	other, err := s.backend.GetUserByUsername(r.PathValue("username"))
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	if _, err := s.backend.SendMessage(currentUser(r).ID, other.ID, r.PostFormValue("body")); err != nil {
		s.renderError(w, r, err)
		return
	}
	redirect(w, r, "/messages/"+other.Username)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	list, err := s.backend.Notifications(currentUser(r).ID)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "notifications", "Notifications", list)
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.MarkNotificationsRead(currentUser(r).ID); err != nil {
		s.renderError(w, r, err)
		return
	}
	redirect(w, r, "/notifications")
}
