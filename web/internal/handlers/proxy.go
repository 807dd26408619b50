package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/devilmonastery/tally/internal/client"
	"github.com/devilmonastery/tally/internal/pkg/logger"
	"github.com/devilmonastery/tally/web/internal/session"
)

// maxProxyBody caps request bodies forwarded to the backend
const maxProxyBody = 10 << 20

// APIProxy forwards /api/{path} to the backend through the session's client,
// which attaches the bearer token and refreshes it when needed
func (h *Handler) APIProxy(w http.ResponseWriter, r *http.Request) {
	entry, ok := session.EntryFromContext(r.Context())
	if !ok {
		h.SessionExpired(w, r)
		return
	}

	path := "/" + mux.Vars(r)["path"]

	var body any
	if r.Body != nil {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxProxyBody))
		if err != nil {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
			return
		}
		if len(data) > 0 {
			body = data
		}
	}

	req, err := entry.Client.NewRequest(r.Context(), r.Method, path, body, client.WithQuery(r.URL.Query()))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if ct := r.Header.Get("Content-Type"); ct != "" && body != nil {
		req.Header.Set("Content-Type", ct)
	}

	resp, err := entry.Client.Do(req)
	if err != nil {
		h.backendError(w, r, err)
		return
	}

	logger.WithHTTPRequest(h.log, r.Method, path).Debug("proxied request", slog.Int("status", resp.StatusCode))

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	w.Write(resp.Body)
}
