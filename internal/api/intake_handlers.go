package api

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/ewhitford/labsite/internal/intake"
)

const maxMultipartBytes = 25 << 20

// contentEndpoint serves the loopback-only content pipeline routes.
type contentEndpoint struct {
	orchestrator *intake.Orchestrator
	reader       *intake.Reader
	log          *zap.SugaredLogger
}

func (c *contentEndpoint) route(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/local-content/submit":
		c.handleSubmit(w, r)
	case "/api/local-content/options":
		c.handleOptions(w, r)
	case "/api/local-content/item":
		c.handleItem(w, r)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

// POST /api/local-content/submit — multipart form with a JSON payload field
// and optional pdfFile/docxFile parts.
func (c *contentEndpoint) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := r.ParseMultipartForm(maxMultipartBytes); err != nil {
		writeError(w, http.StatusBadRequest, "request must be multipart/form-data")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	payload := r.FormValue("payload")
	if payload == "" {
		writeError(w, http.StatusBadRequest, "missing payload field")
		return
	}
	sub, err := intake.ParseSubmission([]byte(payload))
	if err != nil {
		c.writeIntakeError(w, err)
		return
	}

	pdfFile, err := c.formUpload(r, "pdfFile")
	if err != nil {
		c.writeIntakeError(w, err)
		return
	}
	docxFile, err := c.formUpload(r, "docxFile")
	if err != nil {
		c.writeIntakeError(w, err)
		return
	}

	result, err := c.orchestrator.Submit(r.Context(), sub, pdfFile, docxFile)
	if err != nil {
		c.writeIntakeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GET /api/local-content/options?type=
func (c *contentEndpoint) handleOptions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	contentType, err := intake.ParseContentType(r.URL.Query().Get("type"))
	if err != nil {
		c.writeIntakeError(w, err)
		return
	}
	options, err := c.reader.ListOptions(contentType)
	if err != nil {
		c.writeIntakeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"options": options})
}

// GET /api/local-content/item?type=&id=
func (c *contentEndpoint) handleItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	contentType, err := intake.ParseContentType(r.URL.Query().Get("type"))
	if err != nil {
		c.writeIntakeError(w, err)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing id parameter")
		return
	}
	item, err := c.reader.GetItem(contentType, id)
	if err != nil {
		c.writeIntakeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (c *contentEndpoint) formUpload(r *http.Request, field string) (*intake.Upload, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, intake.MaxAssetSizeBytes+1))
	if err != nil {
		return nil, err
	}
	return &intake.Upload{Name: header.Filename, Data: data}, nil
}

// writeIntakeError maps intake failures onto HTTP responses. Unexpected
// errors are logged in full but reported generically.
func (c *contentEndpoint) writeIntakeError(w http.ResponseWriter, err error) {
	var statusErr *intake.StatusError
	if errors.As(err, &statusErr) {
		writeError(w, statusErr.Code, statusErr.Msg)
		return
	}
	c.log.Errorw("content submission failed", "error", err)
	writeError(w, http.StatusInternalServerError, "Content submission failed. Check the server logs.")
}
