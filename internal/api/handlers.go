package api

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cointist/internal/aggregator"
	"cointist/internal/artifacts"
	"cointist/internal/export"
	"cointist/internal/logging"
	"cointist/internal/logs"
	"cointist/internal/model"
	"cointist/internal/registrar"
	"cointist/internal/services"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	resp := StatusResponse{
		ExportFile: s.exportFile,
		Artifacts:  map[string]int{},
	}
	if s.deps.Resolver != nil {
		resp.Tiers = s.deps.Resolver.Tiers()
	}
	if s.deps.SlugMap != nil {
		resp.SlugMapFile = s.deps.SlugMap.Path()
		resp.SlugMapEntries = s.deps.SlugMap.Count()
	}
	if dir := s.deps.Artifacts; dir != nil {
		resp.ArtifactDir = dir.Root()
		entries, err := dir.List(r.Context(), "")
		if err == nil {
			resp.ArtifactsReady = true
			for _, entry := range entries {
				if !entry.Named {
					continue
				}
				resp.Artifacts[entry.Parsed.Kind]++
				if entry.Parsed.Kind == artifacts.KindSummary && resp.LatestSummary == "" {
					resp.LatestSummary = entry.Name
				}
			}
		}
	}
	if logs := s.deps.Logs; logs != nil {
		resp.WorkerLogDir = logs.Root()
		if entries, err := logs.List(r.Context(), artifacts.KindWorker+"-"); err == nil {
			resp.WorkerLogs = len(entries)
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.deps.Registrar == nil {
		s.writeError(w, http.StatusServiceUnavailable, "registrar unavailable")
		return
	}
	var req RegisterRequest
	if !s.decode(w, r, &req) {
		return
	}
	reg, err := s.deps.Registrar.Register(r.Context(), req.Keys)
	if err != nil {
		s.writeServiceError(w, r, "register run", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, RegisterResponse{Registration: reg, Dispatched: reg.Dispatched()})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/runs/"), "/")
	token, sub, _ := strings.Cut(rest, "/")
	if token == "" || (sub != "" && sub != "logs") {
		s.writeError(w, http.StatusNotFound, "unknown run resource")
		return
	}
	if s.deps.Artifacts == nil {
		s.writeError(w, http.StatusServiceUnavailable, "artifact store unavailable")
		return
	}
	ctx := services.WithRunToken(r.Context(), token)
	r = r.WithContext(ctx)
	inv, file, err := registrar.LoadInvocation(ctx, s.deps.Artifacts, token)
	if err != nil {
		s.writeServiceError(w, r, "load run", err)
		return
	}
	if sub == "logs" {
		s.handleRunLogs(w, r, inv)
		return
	}

	resp := RunResponse{
		Token:     inv.Token,
		File:      file,
		StartedAt: inv.StartedAt,
		Items:     inv.Items,
		Workers:   make([]WorkerStatus, 0, len(inv.Workers)),
	}
	for _, worker := range inv.Workers {
		status := WorkerStatus{
			Slug:       worker.Slug,
			PID:        worker.PID,
			LogPath:    worker.LogPath,
			OutputPath: worker.OutputPath,
			Dispatched: worker.Dispatched,
			Error:      worker.Error,
		}
		if worker.OutputPath != "" {
			status.Done = s.deps.Artifacts.Exists(filepath.Base(worker.OutputPath))
		}
		if worker.PID > 0 && s.deps.Alive != nil {
			alive, err := s.deps.Alive(ctx, worker.PID)
			if err != nil {
				logging.WithContext(ctx, s.logger).Debug("worker liveness probe failed",
					logging.Int("pid", worker.PID),
					logging.Error(err))
			}
			status.Alive = alive
		}
		resp.Workers = append(resp.Workers, status)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRunLogs(w http.ResponseWriter, r *http.Request, inv model.Invocation) {
	query := r.URL.Query()
	worker, ok := inv.Worker(query.Get("slug"))
	if !ok {
		s.writeError(w, http.StatusBadRequest, "slug is required and must name a worker of this run")
		return
	}
	if worker.LogPath == "" {
		s.writeError(w, http.StatusNotFound, "worker has no log")
		return
	}

	opts := logs.Options{Offset: -1, Limit: 200}
	if raw := strings.TrimSpace(query.Get("offset")); raw != "" {
		offset, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "offset must be an integer")
			return
		}
		opts.Offset = offset
	}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		opts.Limit = limit
	}
	if raw := strings.TrimSpace(query.Get("wait")); raw != "" {
		wait, ok := s.parseWait(w, raw)
		if !ok {
			return
		}
		opts.Follow = wait > 0
		opts.Wait = wait
	}

	chunk, err := logs.Tail(r.Context(), worker.LogPath, opts)
	if err != nil {
		s.writeServiceError(w, r, "tail worker log", err)
		return
	}
	lines := chunk.Lines
	if lines == nil {
		lines = []string{}
	}
	s.writeJSON(w, http.StatusOK, LogsResponse{
		Token:  inv.Token,
		Slug:   worker.Slug,
		Path:   worker.LogPath,
		Lines:  lines,
		Offset: chunk.Offset,
	})
}

// parseWait reads a wait duration in seconds, capped at the configured wait
// timeout. It writes the error response itself.
func (s *Server) parseWait(w http.ResponseWriter, raw string) (time.Duration, bool) {
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil || seconds < 0 {
		s.writeError(w, http.StatusBadRequest, "wait must be a non-negative number of seconds")
		return 0, false
	}
	wait := time.Duration(seconds * float64(time.Second))
	if s.maxWait > 0 && wait > s.maxWait {
		wait = s.maxWait
	}
	return wait, true
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.deps.Summaries == nil {
		s.writeError(w, http.StatusServiceUnavailable, "aggregator unavailable")
		return
	}
	query := r.URL.Query()

	var since *time.Time
	if raw := strings.TrimSpace(query.Get("since")); raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || ms < 0 {
			s.writeError(w, http.StatusBadRequest, "since must be epoch milliseconds")
			return
		}
		if ms > 0 {
			ts := time.UnixMilli(ms)
			since = &ts
		}
	}

	var wait time.Duration
	if raw := strings.TrimSpace(query.Get("wait")); raw != "" {
		var ok bool
		if wait, ok = s.parseWait(w, raw); !ok {
			return
		}
	}

	var (
		result aggregator.Result
		err    error
	)
	if wait > 0 {
		result, err = s.deps.Summaries.Wait(r.Context(), since, wait, s.pollInterval)
	} else {
		result, err = s.deps.Summaries.Latest(r.Context(), since)
	}
	if err != nil {
		s.writeServiceError(w, r, "summary", err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.deps.Resolver == nil {
		s.writeError(w, http.StatusServiceUnavailable, "resolver unavailable")
		return
	}
	var req ResolveRequest
	if !s.decode(w, r, &req) {
		return
	}
	report, err := s.deps.Resolver.ResolveBatch(r.Context(), req.Items)
	if err != nil {
		s.writeServiceError(w, r, "resolve", err)
		return
	}
	resp := ResolveResponse{
		Items:      req.Items,
		Resolved:   report.Resolved,
		Unresolved: report.Unresolved,
	}
	if resp.Items == nil {
		resp.Items = []model.Item{}
	}
	if resp.Resolved == nil {
		resp.Resolved = []model.Outcome{}
	}
	if resp.Unresolved == nil {
		resp.Unresolved = []int{}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.deps.Exporter == nil {
		s.writeError(w, http.StatusServiceUnavailable, "export unavailable")
		return
	}
	var req ExportRequest
	if !s.decode(w, r, &req) {
		return
	}
	batch := req.Selected
	if len(batch) == 0 {
		batch = req.Items
	}
	result, err := s.deps.Exporter.Export(r.Context(), batch)
	if err != nil {
		var rejection *export.RejectionError
		if errors.As(err, &rejection) {
			s.writeJSON(w, http.StatusUnprocessableEntity, RejectionResponse{
				Error:          rejection.Error(),
				InvalidIndexes: rejection.InvalidIndexes,
				MissingCount:   rejection.MissingCount,
			})
			return
		}
		s.writeServiceError(w, r, "export", err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// writeServiceError maps a classified error to an HTTP status.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	kind := services.Classify(err)
	status := http.StatusInternalServerError
	switch kind {
	case services.KindValidation:
		status = http.StatusBadRequest
	case services.KindNotFound:
		status = http.StatusNotFound
	case services.KindTimeout:
		status = http.StatusGatewayTimeout
	case services.KindExternalTool:
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		logging.WarnWithContext(logging.WithContext(r.Context(), s.logger), "api request failed", "api_request_failed",
			logging.String("operation", op),
			logging.String("kind", string(kind)),
			logging.Error(err),
		)
	}
	s.writeJSON(w, status, ErrorResponse{Error: err.Error(), Kind: string(kind)})
}
