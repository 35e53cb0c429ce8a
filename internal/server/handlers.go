package server

import (
	"errors"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/ravi-parthasarathy/pipegen/internal/store"
	"github.com/ravi-parthasarathy/pipegen/pkg/backend"
	"github.com/ravi-parthasarathy/pipegen/pkg/catalog"
	"github.com/ravi-parthasarathy/pipegen/pkg/compose"
	"github.com/ravi-parthasarathy/pipegen/pkg/flow"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// storeError maps repository errors onto status codes. Unexpected errors are
// logged and hidden from the client.
func (s *Server) storeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, store.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.log.Error(op+" failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	tools, err := s.repo.ListTools(r.Context())
	if err != nil {
		s.storeError(w, "list tools", err)
		return
	}
	if tools == nil {
		tools = []catalog.Tool{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": tools})
}

func (s *Server) handleCreateTool(w http.ResponseWriter, r *http.Request) {
	var t catalog.Tool
	if !decodeBody(w, r, &t) {
		return
	}
	created, err := s.repo.CreateTool(r.Context(), t)
	if err != nil {
		s.storeError(w, "create tool", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListPlatforms(w http.ResponseWriter, r *http.Request) {
	ps, err := s.repo.ListPlatforms(r.Context())
	if err != nil {
		s.storeError(w, "list platforms", err)
		return
	}
	if ps == nil {
		ps = []store.Platform{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"platforms": ps})
}

func (s *Server) handleCreatePlatform(w http.ResponseWriter, r *http.Request) {
	var p store.Platform
	if !decodeBody(w, r, &p) {
		return
	}
	created, err := s.repo.CreatePlatform(r.Context(), p)
	if err != nil {
		s.storeError(w, "create platform", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleSearchPipelines(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	q := compose.Query{
		Tool:     qs.Get("tool"),
		Platform: qs.Get("platform"),
		Language: qs.Get("language"),
	}
	if raw := qs.Get("stage"); raw != "" {
		stage, err := flow.ParseStage(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		q.Stage = stage
	}

	recs, err := s.repo.SearchPipelines(r.Context(), q)
	if err != nil {
		s.storeError(w, "search pipelines", err)
		return
	}
	if recs == nil {
		recs = []compose.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"pipelines": recs})
}

func (s *Server) handleCreatePipeline(w http.ResponseWriter, r *http.Request) {
	var rec compose.Record
	if !decodeBody(w, r, &rec) {
		return
	}
	created, err := s.repo.CreatePipeline(r.Context(), rec)
	if err != nil {
		s.storeError(w, "create pipeline", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req backend.GenerateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := s.composer.Compose(r.Context(), req.Nodes, compose.Params{
		Platform: req.Platform,
		Language: req.Language,
	})
	switch {
	case errors.Is(err, compose.ErrNoToolsAssigned):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case errors.Is(err, compose.ErrNoPipelinesFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		s.log.Error("generate failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, backend.GenerateResponse{
		YAML:     res.Combined,
		Resolved: res.Resolved,
		Total:    res.Total,
	})
}
