package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/datacleaner/internal/core"
	"github.com/JonMunkholm/datacleaner/internal/logging"
	"github.com/JonMunkholm/datacleaner/internal/web/views"
)

// defaultRunsLimit is how many runs GET /api/runs returns without ?limit=.
const defaultRunsLimit = 50

type convertBody struct {
	Path      string `json:"path"`
	OutputDir string `json:"output_dir,omitempty"`
	Delimiter string `json:"delimiter,omitempty"`
}

type batchBody struct {
	Runs []core.RunRequest `json:"runs"`
}

type startedResponse struct {
	ID        string `json:"id"`
	StatusURL string `json:"status_url"`
	ReportURL string `json:"report_url"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"jobs":   s.service.LimiterStatus(),
		"cache":  s.service.CacheStats(),
	})
}

// handleAssess returns the resource assessment for ?path=.
func (s *Server) handleAssess(w http.ResponseWriter, r *http.Request) {
	path, err := resolvePath(s.cfg.Server.DataRoot, r.URL.Query().Get("path"))
	if err != nil {
		s.respondError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, s.service.Assess(r.Context(), path))
}

// handleConvert converts one file to canonical CSV.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	var body convertBody
	if !decodeJSON(w, r, &body) {
		return
	}

	root := s.cfg.Server.DataRoot
	path, err := resolvePath(root, body.Path)
	if err != nil {
		s.respondError(w, r, err, "")
		return
	}
	outDir, err := resolveOptional(root, body.OutputDir)
	if err != nil {
		s.respondError(w, r, err, "")
		return
	}

	res, err := s.service.ConvertWithDelimiter(r.Context(), path, outDir, body.Delimiter)
	if err != nil {
		s.respondError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleStartRun runs a pipeline. By default it waits for the result;
// with ?async=true it returns 202 and the run continues in the background.
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req core.RunRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.resolveRequest(&req); err != nil {
		s.respondError(w, r, err, "")
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	log := logging.FromContext(ctx)

	if parseBoolParam(r, "async") {
		id, err := s.service.Start(ctx, req)
		if err != nil {
			s.respondError(w, r, err, "")
			return
		}
		log.Info("run started in background", "run_id", id, "input", req.Input)
		w.Header().Set("Location", "/api/runs/"+id)
		writeJSON(w, http.StatusAccepted, startedResponse{
			ID:        id,
			StatusURL: "/api/runs/" + id,
			ReportURL: "/runs/" + id,
		})
		return
	}

	res, err := s.service.Run(ctx, req)
	if err != nil {
		runID := ""
		if res != nil {
			runID = res.ID
		}
		s.respondError(w, r, err, runID)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleRunBatch runs several requests and returns every result in order.
// Individual failures are reported inside the results.
func (s *Server) handleRunBatch(w http.ResponseWriter, r *http.Request) {
	var body batchBody
	if !decodeJSON(w, r, &body) {
		return
	}
	if len(body.Runs) == 0 {
		writeError(w, http.StatusBadRequest, "runs must list at least one run")
		return
	}
	for i := range body.Runs {
		if err := s.resolveRequest(&body.Runs[i]); err != nil {
			s.respondError(w, r, err, "")
			return
		}
	}

	results, err := s.service.RunBatch(WithRequestMetadata(r.Context(), r), body.Runs)
	if err != nil {
		s.respondError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": results})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs := s.service.Runs()
	if limit := parseIntParam(r, "limit", defaultRunsLimit); len(runs) > limit {
		runs = runs[:limit]
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	res, err := s.service.GetRun(chi.URLParam(r, "runID"))
	if err != nil {
		s.respondError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.CacheStats())
}

// handleCacheReset clears the lookup cache, or only ?path= when given.
func (s *Server) handleCacheReset(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("path")
	if raw == "" {
		s.service.ResetLookupCache()
		writeJSON(w, http.StatusOK, map[string]any{"reset": true})
		return
	}

	path, err := resolvePath(s.cfg.Server.DataRoot, raw)
	if err != nil {
		s.respondError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"path":    path,
		"evicted": s.service.EvictLookup(path),
	})
}

func (s *Server) handleRunsPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	views.Page("Runs", views.RunList(s.service.Runs())).Render(r.Context(), w)
}

func (s *Server) handleRunReport(w http.ResponseWriter, r *http.Request) {
	res, err := s.service.GetRun(chi.URLParam(r, "runID"))
	if err != nil {
		s.respondError(w, r, err, "")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	views.Page("Run "+res.ID, views.RunReport(res)).Render(r.Context(), w)
}
