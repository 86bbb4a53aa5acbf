package dashboard

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/semlayer/semlayer/internal/chat"
	"github.com/semlayer/semlayer/internal/db"
)

type queryRequest struct {
	SQL string `json:"sql"`
}

type queryResponse struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
	Count   int      `json:"count"`
	Cached  bool     `json:"cached"`
}

type askRequest struct {
	Question string `json:"question"`
}

type freshnessResponse struct {
	Connection *db.SourceConnection  `json:"connection,omitempty"`
	Tables     []db.Freshness        `json:"tables"`
	Views      []db.MaterializedView `json:"views"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var one int
	if err := s.q.QueryRowContext(r.Context(), "SELECT 1").Scan(&one); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"ask":     s.pipeline != nil,
		"adhoc":   s.opts.AllowAdhocSQL,
		"cached":  s.cache.Len(),
		"row_cap": s.opts.RowLimit,
	})
}

func (s *Server) handleRelations(w http.ResponseWriter, r *http.Request) {
	rels, err := db.ListRelations(r.Context(), s.q, db.AllSchemas...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if schema := r.URL.Query().Get("schema"); schema != "" {
		filtered := rels[:0:0]
		for _, rel := range rels {
			if strings.EqualFold(rel.Schema, schema) {
				filtered = append(filtered, rel)
			}
		}
		rels = filtered
	}
	if rels == nil {
		rels = []db.Relation{}
	}
	writeJSON(w, http.StatusOK, rels)
}

func (s *Server) handleFreshness(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var resp freshnessResponse
	var err error

	if resp.Connection, err = db.LastConnection(ctx, s.q); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if resp.Tables, err = db.ListFreshness(ctx, s.q); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if resp.Views, err = db.ListMaterializedViews(ctx, s.q); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if resp.Tables == nil {
		resp.Tables = []db.Freshness{}
	}
	if resp.Views == nil {
		resp.Views = []db.MaterializedView{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if !s.opts.AllowAdhocSQL {
		writeError(w, http.StatusForbidden, "ad-hoc SQL is disabled")
		return
	}
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	res, hit, err := s.adhoc(r.Context(), req.SQL)
	if errors.Is(err, db.ErrNotReadOnly) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, queryResponse{Columns: res.Columns, Rows: res.Rows, Count: len(res.Rows), Cached: hit})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	ans, err := s.ask(r.Context(), req.Question)
	switch {
	case errors.Is(err, chat.ErrLLMDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case err != nil:
		status := http.StatusBadGateway
		if errors.Is(err, db.ErrNotReadOnly) {
			status = http.StatusUnprocessableEntity
		}
		resp := map[string]any{"error": err.Error()}
		if ans != nil {
			resp["sql"] = ans.SQL
		}
		s.log.Debug("ask request failed", zap.Error(err))
		writeJSON(w, status, resp)
	default:
		writeJSON(w, http.StatusOK, ans)
	}
}
