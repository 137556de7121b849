package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/ewhitford/labsite/internal/experiments"
	"github.com/ewhitford/labsite/internal/intake"
	"github.com/ewhitford/labsite/internal/middleware"
)

// Router wires the experiment and content intake handlers onto a ServeMux.
type Router struct {
	dictator *experimentEndpoint
	temporal *experimentEndpoint
	content  *contentEndpoint

	contentEnabled bool
	log            *zap.SugaredLogger
}

type RouterConfig struct {
	Dictator            *experiments.Service
	Temporal            *experiments.Service
	DictatorExportToken string
	TemporalExportToken string
	SecureCookies       bool
	ContentEnabled      bool
	Orchestrator        *intake.Orchestrator
	Reader              *intake.Reader
	Log                 *zap.SugaredLogger
}

func NewRouter(cfg RouterConfig) *Router {
	return &Router{
		dictator: &experimentEndpoint{
			service:     cfg.Dictator,
			cookieName:  "dg_session",
			exportToken: cfg.DictatorExportToken,
			secure:      cfg.SecureCookies,
			log:         cfg.Log,
		},
		temporal: &experimentEndpoint{
			service:     cfg.Temporal,
			cookieName:  "td_session",
			exportToken: cfg.TemporalExportToken,
			secure:      cfg.SecureCookies,
			log:         cfg.Log,
		},
		content: &contentEndpoint{
			orchestrator: cfg.Orchestrator,
			reader:       cfg.Reader,
			log:          cfg.Log,
		},
		contentEnabled: cfg.ContentEnabled,
		log:            cfg.Log,
	}
}

func (rt *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/experiments/dictator-game", rt.dictator.handleSubmit)
	mux.HandleFunc("/api/experiments/dictator-game/export", rt.dictator.handleExport)
	mux.HandleFunc("/api/experiments/temporal-discounting", rt.temporal.handleSubmit)
	mux.HandleFunc("/api/experiments/temporal-discounting/export", rt.temporal.handleExport)

	local := middleware.LocalOnly(rt.contentEnabled, http.HandlerFunc(rt.content.route))
	mux.Handle("/api/local-content/", local)

	mux.HandleFunc("/health", rt.handleHealth)
}

// GET /health
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeStatusError emits the {status, message} failure shape the experiment
// routes use; the intake routes report failures as {error} instead.
func writeStatusError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"status": "error", "message": message})
}
