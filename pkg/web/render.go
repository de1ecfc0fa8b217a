package web

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/forkful/pkg/scale"
	"github.com/cuemby/forkful/pkg/types"
)

var pageNames = []string{
	"error",
	"home",
	"recipe",
	"recipe_form",
	"login",
	"register",
	"profile",
	"settings",
	"inbox",
	"conversation",
	"notifications",
}

var templateFuncs = template.FuncMap{
	"amount": scale.FormatAmount,
	"stars": func(avg float64) string {
		return strconv.FormatFloat(avg, 'f', 1, 64) + "★"
	},
	"starRange": func() []int {
		out := make([]int, 0, types.MaxStars-types.MinStars+1)
		for n := types.MinStars; n <= types.MaxStars; n++ {
			out = append(out, n)
		}
		return out
	},
	"date": func(t time.Time) string {
		return t.Format("Jan 2, 2006")
	},
	"join": func(lines []string) string {
		return strings.Join(lines, "\n")
	},
	"commaJoin": func(items []string) string {
		return strings.Join(items, ", ")
	},
}

func parsePages() (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(templateFuncs).ParseFS(templateFS,
			"templates/layout.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		pages[name] = t
	}
	return pages, nil
}

// page is the data every template receives
type page struct {
	Title  string
	User   *types.User
	Unread int
	Flash  string
	Body   any
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name, title string, body any) {
	t, ok := s.pages[name]
	if !ok {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	p := page{
		Title: title,
		User:  currentUser(r),
		Flash: r.URL.Query().Get("flash"),
		Body:  body,
	}
	if p.User != nil {
		if n, err := s.backend.UnreadCount(p.User.ID); err == nil {
			p.Unread = n
		}
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", p); err != nil {
		s.logger.Error().Err(err).Str("template", name).Str("request_id", requestID(r)).Msg("Failed to render template")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderError shows an error page with the status the error maps to
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Str("request_id", requestID(r)).Msg("Request failed")
		message = "Something went wrong."
	}
	s.render(w, r, status, "error", http.StatusText(status), message)
}

// redirect sends a See Other so form posts are not resubmitted
func redirect(w http.ResponseWriter, r *http.Request, target string) {
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// safeNext only allows local redirect targets
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}

// requireUser sends anonymous visitors to the login page
func (s *Server) requireUser(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if currentUser(r) == nil {
			target := r.URL.Path
			if r.Method == http.MethodGet && r.URL.RawQuery != "" {
				target += "?" + r.URL.RawQuery
			}
			redirect(w, r, "/login?next="+url.QueryEscape(target))
			return
		}
		h(w, r)
	}
}
