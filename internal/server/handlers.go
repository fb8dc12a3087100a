package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/talkdata-labs/talkdata/internal/analysis"
	"github.com/talkdata-labs/talkdata/internal/datasource"
	"github.com/talkdata-labs/talkdata/internal/engine"
	"github.com/talkdata-labs/talkdata/internal/llm"
)

type queryRequest struct {
	Question    string `json:"question"`
	PreviousSQL string `json:"previous_sql,omitempty"`

	// Model forces a tier ("flash" or "pro"); empty lets the router pick.
	Model string `json:"model,omitempty"`
}

func (q queryRequest) toEngine() engine.Request {
	return engine.Request{
		Question:    strings.TrimSpace(q.Question),
		PreviousSQL: q.PreviousSQL,
		Tier:        llm.Tier(q.Model),
	}
}

type analyzeRequest struct {
	Data     []analysis.Record `json:"data"`
	Question string            `json:"question,omitempty"`
}

type analyzeResponse struct {
	Success     bool         `json:"success"`
	ChartConfig *chartConfig `json:"chart_config,omitempty"`
	Insight     string       `json:"insight_summary,omitempty"`
	Error       string       `json:"error,omitempty"`
}

type chartConfig struct {
	Type analysis.ChartType `json:"type"`
	XKey string             `json:"x_key"`
	YKey string             `json:"y_key"`
	Data []analysis.Record  `json:"data"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok", "database": "disconnected"}
	if ds, _, err := s.sources.Current(); err == nil {
		status["database"] = ds.Kind()
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !s.decodeQuery(w, r, &req) {
		return
	}
	res := s.runner.Run(r.Context(), req.toEngine())
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleQueryStream(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !s.decodeQuery(w, r, &req) {
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	for ev := range s.runner.Stream(r.Context(), req.toEngine()) {
		if err := sse.event(ev); err != nil {
			// Client went away; the engine notices via the request context.
			s.logger.Debug("stream write failed", "error", err)
			return
		}
	}
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.analyzer.Analyze(r.Context(), req.Data, req.Question)
	if err != nil {
		var insufficient *analysis.InsufficientDataError
		if errors.As(err, &insufficient) {
			writeJSON(w, http.StatusOK, analyzeResponse{Success: false, Error: insufficient.Reason})
			return
		}
		writeJSON(w, http.StatusOK, analyzeResponse{Success: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, analyzeResponse{
		Success: true,
		ChartConfig: &chartConfig{
			Type: res.ChartType,
			XKey: res.XKey,
			YKey: res.YKey,
			Data: res.Rows,
		},
		Insight: res.Insight,
	})
}

type datasourceRequest struct {
	Type     string            `json:"type"`
	Path     string            `json:"path,omitempty"`
	Host     string            `json:"host,omitempty"`
	Port     int               `json:"port,omitempty"`
	Database string            `json:"database,omitempty"`
	Username string            `json:"username,omitempty"`
	Password string            `json:"password,omitempty"`
	Options  map[string]string `json:"options,omitempty"`
}

// handleDatasourceSwap replaces the active datasource. Schema and result
// caches are invalidated as part of the swap.
func (s *Server) handleDatasourceSwap(w http.ResponseWriter, r *http.Request) {
	var req datasourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !datasource.IsRegistered(req.Type) {
		writeError(w, http.StatusBadRequest, "unknown datasource type: "+req.Type)
		return
	}

	err := s.sources.Swap(r.Context(), datasource.Config{
		Type:     req.Type,
		Path:     req.Path,
		Host:     req.Host,
		Port:     req.Port,
		Database: req.Database,
		Username: req.Username,
		Password: req.Password,
		Options:  req.Options,
	})
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if s.onSwap != nil {
		s.onSwap()
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": req.Type})
}

type csvUploadRequest struct {
	Table string `json:"table"`
	Path  string `json:"path"`
}

// handleCSVUpload ingests a CSV file into the active datasource. Only
// backends with CSV support accept it; the schema cache is invalidated so
// the new table is visible to the next run.
func (s *Server) handleCSVUpload(w http.ResponseWriter, r *http.Request) {
	var req csvUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Table) == "" || strings.TrimSpace(req.Path) == "" {
		writeError(w, http.StatusBadRequest, "table and path are required")
		return
	}

	ds, _, err := s.sources.Current()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	loader, ok := ds.(datasource.CSVLoader)
	if !ok {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("datasource %q does not support CSV ingestion", ds.Kind()))
		return
	}

	if err := loader.LoadCSV(r.Context(), req.Table, req.Path); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	s.sources.Invalidate()
	if s.onSwap != nil {
		s.onSwap()
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "table": req.Table})
}

func (s *Server) decodeQuery(w http.ResponseWriter, r *http.Request, req *queryRequest) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question cannot be empty")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
