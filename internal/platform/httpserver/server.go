package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	distributionservice "quill/contexts/content-delivery/distribution-service"
	distributionerrors "quill/contexts/content-delivery/distribution-service/domain/errors"
	distributionhttp "quill/contexts/content-delivery/distribution-service/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "quill/internal/platform/httpserver/docs"
)

type Server struct {
	mux          *http.ServeMux
	logger       *slog.Logger
	addr         string
	distribution distributionservice.Module
}

func New(
	distribution distributionservice.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:          http.NewServeMux(),
		logger:       logger,
		addr:         addr,
		distribution: distribution,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

// Mux exposes the router for tests.
func (s *Server) Mux() *http.ServeMux {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /content-distributions", s.handleCreateRule)
	s.mux.HandleFunc("GET /content-distributions", s.handleListRules)
	s.mux.HandleFunc("GET /content-distributions/active", s.handleListActiveRules)
	s.mux.HandleFunc("GET /content-distributions/{id}", s.handleGetRule)
	s.mux.HandleFunc("PUT /content-distributions/{id}", s.handleUpdateRule)
	s.mux.HandleFunc("DELETE /content-distributions/{id}", s.handleDeleteRule)
	s.mux.HandleFunc("GET /content-distributions/{id}/status", s.handleRuleStatus)
	s.mux.HandleFunc("POST /content-distributions/{id}/run", s.handleRunRule)

	s.mux.HandleFunc("GET /distribution-records/stats", s.handleStats)
	s.mux.HandleFunc("GET /distribution-records/by-article/{article_id}", s.handleRecordsByArticle)
	s.mux.HandleFunc("GET /distribution-records/by-site/{site_id}", s.handleRecordsBySite)
	s.mux.HandleFunc("GET /distribution-records/{id}", s.handleGetRecord)
	s.mux.HandleFunc("POST /distribution-records/{id}/retry", s.handleRetryRecord)
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req distributionhttp.CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.distribution.Handler.CreateRuleHandler(r.Context(), req)
	if err != nil {
		writeDistributionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	resp, err := s.distribution.Handler.ListRulesHandler(r.Context())
	if err != nil {
		writeDistributionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListActiveRules(w http.ResponseWriter, r *http.Request) {
	resp, err := s.distribution.Handler.ListActiveRulesHandler(r.Context())
	if err != nil {
		writeDistributionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	resp, err := s.distribution.Handler.GetRuleHandler(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDistributionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	var req distributionhttp.UpdateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.distribution.Handler.UpdateRuleHandler(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeDistributionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := s.distribution.Handler.DeleteRuleHandler(r.Context(), r.PathValue("id")); err != nil {
		writeDistributionDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRuleStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := s.distribution.Handler.RuleStatusHandler(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDistributionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRunRule(w http.ResponseWriter, r *http.Request) {
	resp, err := s.distribution.Handler.RunRuleHandler(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDistributionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	resp, err := s.distribution.Handler.GetRecordHandler(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDistributionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRecordsByArticle(w http.ResponseWriter, r *http.Request) {
	resp, err := s.distribution.Handler.RecordsByArticleHandler(r.Context(), r.PathValue("article_id"))
	if err != nil {
		writeDistributionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRecordsBySite(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitRaw := r.URL.Query().Get("limit"); limitRaw != "" {
		parsed, err := strconv.Atoi(limitRaw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		limit = parsed
	}
	resp, err := s.distribution.Handler.RecordsBySiteHandler(r.Context(), r.PathValue("site_id"), limit)
	if err != nil {
		writeDistributionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRetryRecord(w http.ResponseWriter, r *http.Request) {
	resp, err := s.distribution.Handler.RetryRecordHandler(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDistributionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	resp, err := s.distribution.Handler.StatsHandler(r.Context(), query.Get("target_site"), query.Get("rule_id"))
	if err != nil {
		writeDistributionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeDistributionDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, distributionerrors.ErrRuleNotFound):
		writeError(w, http.StatusNotFound, "rule_not_found", err.Error())
	case errors.Is(err, distributionerrors.ErrRuleNotFoundOrInactive):
		writeError(w, http.StatusBadRequest, "rule_inactive", err.Error())
	case errors.Is(err, distributionerrors.ErrRuleNameTaken):
		writeError(w, http.StatusConflict, "rule_name_taken", err.Error())
	case errors.Is(err, distributionerrors.ErrRuleAlreadyRunning):
		writeError(w, http.StatusConflict, "rule_already_running", err.Error())
	case errors.Is(err, distributionerrors.ErrRuleRunning):
		writeError(w, http.StatusConflict, "rule_running", err.Error())
	case errors.Is(err, distributionerrors.ErrInvalidRuleInput):
		writeError(w, http.StatusBadRequest, "invalid_rule_input", err.Error())
	case errors.Is(err, distributionerrors.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, "record_not_found", err.Error())
	case errors.Is(err, distributionerrors.ErrRecordExists):
		writeError(w, http.StatusConflict, "record_exists", err.Error())
	case errors.Is(err, distributionerrors.ErrRecordAlreadyDistributed):
		writeError(w, http.StatusBadRequest, "record_already_distributed", err.Error())
	case errors.Is(err, distributionerrors.ErrInvalidRecordInput):
		writeError(w, http.StatusBadRequest, "invalid_record_input", err.Error())
	case errors.Is(err, distributionerrors.ErrTargetSiteNotFound):
		writeError(w, http.StatusNotFound, "target_site_not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, distributionhttp.ErrorResponse{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
