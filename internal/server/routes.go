package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/inkfill/inkfill/internal/pipeline"
)

// maxUploadBytes caps the multipart body to keep one bad upload from
// exhausting the host.
const maxUploadBytes = 64 << 20

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/fill", s.handleFill)
}

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the JSON error payload. A failing fill never
// returns a bare empty document.
type ErrorResponse struct {
	Error string `json:"error"`
}

// handleHealth returns basic server health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleFill accepts a multipart form with a "document" PDF and a
// "record" JSON payload (file part or form value), runs the fill
// pipeline, and responds with the filled PDF. With return_json=true
// the full run result is returned instead of the document bytes.
func (s *Server) handleFill(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse multipart form: %w", err))
		return
	}

	doc, _, err := r.FormFile("document")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing document part: %w", err))
		return
	}
	defer doc.Close()

	recordJSON, err := recordPayload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !json.Valid(recordJSON) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("record is not valid JSON"))
		return
	}

	forceOCR, _ := strconv.ParseBool(r.FormValue("force_ocr"))
	returnJSON, _ := strconv.ParseBool(r.FormValue("return_json"))

	workDir, err := os.MkdirTemp("", "inkfill-req-"+uuid.NewString()[:8])
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("allocate scratch dir: %w", err))
		return
	}
	defer os.RemoveAll(workDir)

	inPath := filepath.Join(workDir, "input.pdf")
	outPath := filepath.Join(workDir, "output.pdf")
	if err := saveUpload(doc, inPath); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("stage upload: %w", err))
		return
	}

	res, err := s.runner.Run(r.Context(), pipeline.Request{
		InputPath:  inPath,
		RecordJSON: recordJSON,
		OutputPath: outPath,
		ForceOCR:   forceOCR,
	})
	if err != nil {
		s.logger.Error("fill request failed", "error", err)
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	if s.archiveDir != "" && res.Success {
		if err := s.archive(outPath, res.RunID); err != nil {
			s.logger.Warn("archive copy failed", "error", err)
		}
	}

	if returnJSON {
		writeJSON(w, http.StatusOK, res)
		return
	}

	if !res.Success {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: res.Message})
		return
	}

	out, err := os.Open(outPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("read filled document: %w", err))
		return
	}
	defer out.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="filled.pdf"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, out); err != nil {
		s.logger.Warn("response write interrupted", "error", err)
	}
}

// recordPayload reads the record JSON from either a "record" file part
// or a plain form value.
func recordPayload(r *http.Request) ([]byte, error) {
	if f, _, err := r.FormFile("record"); err == nil {
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("read record part: %w", err)
		}
		return data, nil
	}
	if v := r.FormValue("record"); v != "" {
		return []byte(v), nil
	}
	return nil, fmt.Errorf("missing record part or form value")
}

// archive keeps a copy of a filled document under the archive dir,
// named by run id.
func (s *Server) archive(outPath, runID string) error {
	if err := os.MkdirAll(s.archiveDir, 0o755); err != nil {
		return err
	}
	if runID == "" {
		runID = uuid.NewString()[:8]
	}
	src, err := os.Open(outPath)
	if err != nil {
		return err
	}
	defer src.Close()
	return saveUpload(src, filepath.Join(s.archiveDir, "filled-"+runID+".pdf"))
}

func saveUpload(src io.Reader, dst string) error {
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}
