package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/devilmonastery/tally/internal/client"
	"github.com/devilmonastery/tally/web/internal/render"
	"github.com/devilmonastery/tally/web/internal/session"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    bool   `json:"email"`
	Next     string `json:"next"`
}

// LoginPage renders the sign-in form
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.renderTemplate(w, http.StatusOK, "login.html", map[string]interface{}{
		"Expired": q.Get("reason") == "expired",
		"Next":    safeNext(q.Get("next")),
	})
}

// Login exchanges the submitted credentials for a token pair held in a new
// session. Accepts a form post or a JSON body.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	jsonRequest := wantsJSON(r)

	var req loginRequest
	if jsonRequest {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			h.loginFailed(w, r, req, "Invalid form submission", http.StatusBadRequest)
			return
		}
		req.Username = r.FormValue("username")
		req.Password = r.FormValue("password")
		req.Email = r.FormValue("email") != ""
		req.Next = r.FormValue("next")
	}

	if req.Username == "" || req.Password == "" {
		h.loginFailed(w, r, req, "Username and password are required", http.StatusBadRequest)
		return
	}

	// Drop whatever session this browser had before
	if oldID, err := h.sessions.ID(r); err == nil {
		if err := h.registry.Remove(oldID); err != nil {
			h.log.Warn("failed to remove previous session", slog.String("error", err.Error()))
		}
	}

	id := session.NewID()
	entry, err := h.registry.Get(id)
	if err != nil {
		h.log.Error("failed to create session client", slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if req.Email {
		_, err = entry.API.Auth.LoginEmail(r.Context(), req.Username, req.Password)
	} else {
		_, err = entry.API.Auth.Login(r.Context(), req.Username, req.Password)
	}
	if err != nil {
		h.log.Info("login failed",
			slog.String("username", req.Username),
			slog.String("error", err.Error()))
		if removeErr := h.registry.Remove(id); removeErr != nil {
			h.log.Warn("failed to remove session", slog.String("error", removeErr.Error()))
		}

		status, message := http.StatusBadGateway, "Login is unavailable right now"
		var httpErr *client.HTTPError
		if errors.As(err, &httpErr) {
			status, message = http.StatusUnauthorized, httpErr.Message
		}
		h.loginFailed(w, r, req, message, status)
		return
	}

	if err := h.sessions.Bind(r, w, id); err != nil {
		h.log.Error("failed to save session", slog.String("error", err.Error()))
		http.Error(w, "Failed to save session", http.StatusInternalServerError)
		return
	}

	h.log.Info("user logged in", slog.String("username", req.Username), slog.String("session_id", id))
	if jsonRequest {
		writeJSON(w, http.StatusOK, map[string]string{"message": "logged in"})
		return
	}
	http.Redirect(w, r, safeNext(req.Next), http.StatusSeeOther)
}

func (h *Handler) loginFailed(w http.ResponseWriter, r *http.Request, req loginRequest, message string, status int) {
	message = render.PlainText(message)
	if wantsJSON(r) {
		writeJSON(w, status, map[string]string{"error": message})
		return
	}
	h.renderTemplate(w, status, "login.html", map[string]interface{}{
		"Error":    message,
		"Username": req.Username,
		"Email":    req.Email,
		"Next":     safeNext(req.Next),
	})
}

// Logout tells the backend, forgets the session's tokens and drops the cookie
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if id, err := h.sessions.ID(r); err == nil {
		if entry, err := h.registry.Get(id); err == nil {
			if err := entry.API.Auth.Logout(r.Context()); err != nil {
				h.log.Warn("logout failed", slog.String("error", err.Error()))
			}
		}
		if err := h.registry.Remove(id); err != nil {
			h.log.Warn("failed to remove session", slog.String("error", err.Error()))
		}
	}

	if err := h.sessions.Destroy(r, w); err != nil {
		h.log.Error("error clearing session", slog.String("error", err.Error()))
	}

	if wantsJSON(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.renderTemplate(w, http.StatusOK, "signed_out.html", nil)
}

// Session reports who is signed in, from the token claims and the backend
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	entry, ok := session.EntryFromContext(r.Context())
	if !ok {
		h.SessionExpired(w, r)
		return
	}

	user, err := entry.API.Auth.Me(r.Context())
	if err != nil {
		h.backendError(w, r, err)
		return
	}

	resp := map[string]any{"user": user}
	if token, err := entry.Client.Store().Get(client.AccessTokenKey); err == nil {
		if claims, err := session.ParseUserClaims(token); err == nil {
			resp["claims"] = claims
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
