package api

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ewhitford/labsite/internal/experiments"
)

const (
	maxSubmitBodyBytes = 64 << 10
	sessionCookieAge   = 365 * 24 * time.Hour
)

// experimentEndpoint serves the submit and export routes for one experiment.
type experimentEndpoint struct {
	service     *experiments.Service
	cookieName  string
	exportToken string
	secure      bool
	log         *zap.SugaredLogger
}

// POST /api/experiments/<slug>
func (e *experimentEndpoint) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxSubmitBodyBytes))
	if err != nil || !json.Valid(body) {
		writeStatusError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	token, minted := e.sessionToken(r)
	result := e.service.Submit(r.Context(), token, body)

	// A cookie is only set when the browser did not already carry one and the
	// submission did not fail, so a failed first attempt does not lock in a
	// session token.
	if minted && result.Status != experiments.StatusError {
		e.setSessionCookie(w, token)
	}

	switch result.Status {
	case experiments.StatusOK:
		writeJSON(w, http.StatusCreated, result)
	case experiments.StatusDuplicate:
		writeJSON(w, http.StatusConflict, result)
	default:
		if result.Code == experiments.CodeServer {
			writeJSON(w, http.StatusInternalServerError, result)
			return
		}
		writeJSON(w, http.StatusBadRequest, result)
	}
}

// GET /api/experiments/<slug>/export
func (e *experimentEndpoint) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !e.authorizeExport(r) {
		writeStatusError(w, http.StatusUnauthorized, "Unauthorized.")
		return
	}

	data, err := e.service.ExportCSV(r.Context())
	if err != nil {
		e.log.Errorw("csv export failed", "experiment", e.service.Slug(), "error", err)
		writeError(w, http.StatusInternalServerError, "Export failed")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", e.service.ExportFilename()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// authorizeExport accepts the token as a Bearer header or ?token= query
// parameter, compared in constant time. An empty configured token disables
// the route entirely.
func (e *experimentEndpoint) authorizeExport(r *http.Request) bool {
	if e.exportToken == "" {
		return false
	}
	presented := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if presented == "" || presented == r.Header.Get("Authorization") {
		presented = r.URL.Query().Get("token")
	}
	if presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(e.exportToken)) == 1
}

// sessionToken returns the browser's session token, minting one when the
// cookie is absent or empty. minted reports whether a Set-Cookie is needed.
func (e *experimentEndpoint) sessionToken(r *http.Request) (token string, minted bool) {
	cookie, err := r.Cookie(e.cookieName)
	if err == nil && cookie.Value != "" {
		return cookie.Value, false
	}
	return experiments.NewSessionToken(), true
}

func (e *experimentEndpoint) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     e.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(sessionCookieAge.Seconds()),
		HttpOnly: true,
		Secure:   e.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
