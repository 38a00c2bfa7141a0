package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"markestedt/aityping/apperr"
	"markestedt/aityping/config"
	"markestedt/aityping/orchestrator"
	"markestedt/aityping/storage"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

type configResponse struct {
	*config.Config
	HasAPIKey bool `json:"has_api_key"`
}

// handleConfig handles GET and PUT requests for configuration
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cfg := s.deps.Config.Config()
		writeJSON(w, http.StatusOK, configResponse{Config: cfg, HasAPIKey: cfg.APIKey() != ""})
	case http.MethodPut:
		s.handlePutConfig(w, r)
	default:
		methodNotAllowed(w)
	}
}

// handlePutConfig merges the request body into the current configuration.
// Omitted fields keep their values.
func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	req := struct {
		*config.Config
		APIKey *string `json:"api_key"`
	}{Config: s.deps.Config.Config().Clone()}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := req.Config.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.APIKey != nil && *req.APIKey != "" {
		if err := s.deps.Config.SetAPIKey(*req.APIKey); err != nil {
			slog.Error("Failed to store API key", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to store API key")
			return
		}
	}

	if err := s.deps.Config.Update(req.Config); err != nil {
		slog.Error("Failed to save config", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save configuration")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

type statusResponse struct {
	State              string            `json:"state"`
	Enabled            bool              `json:"enabled"`
	Streaming          bool              `json:"streaming"`
	TargetLanguage     string            `json:"target_language"`
	TargetLanguageName string            `json:"target_language_name"`
	Hotkeys            map[string]string `json:"hotkeys"`
}

// handleStatus reports the agent state; PUT {"enabled": bool} pauses or
// resumes translation
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		var req struct {
			Enabled *bool `json:"enabled"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
			writeError(w, http.StatusBadRequest, "enabled is required")
			return
		}
		cfg := s.deps.Config.Config().Clone()
		cfg.Hotkey.Enabled = *req.Enabled
		if err := s.deps.Config.Update(cfg); err != nil {
			slog.Error("Failed to save config", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to save configuration")
			return
		}
	default:
		methodNotAllowed(w)
		return
	}

	cfg := s.deps.Config.Config()
	writeJSON(w, http.StatusOK, statusResponse{
		State:              s.deps.Runner.State().String(),
		Enabled:            cfg.Hotkey.Enabled,
		Streaming:          cfg.LLM.Streaming,
		TargetLanguage:     cfg.Language.CurrentTarget,
		TargetLanguageName: cfg.LanguageName(cfg.Language.CurrentTarget),
		Hotkeys: map[string]string{
			string(orchestrator.ModeSelected): cfg.Hotkey.Selected.Format(),
			string(orchestrator.ModeFull):     cfg.Hotkey.Full.Format(),
		},
	})
}

// handleHistory returns a page of history, or clears it on DELETE
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleGetHistory(w, r)
	case http.MethodDelete:
		if err := s.deps.Store.ClearHistory(r.Context()); err != nil {
			slog.Error("Failed to clear history", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to clear history")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := storage.HistoryQuery{
		Page:     atoiDefault(q.Get("page"), 1),
		PageSize: atoiDefault(q.Get("page_size"), 20),
		Search:   strings.TrimSpace(q.Get("search")),
		Mode:     q.Get("mode"),
	}

	page, err := s.deps.Store.GetHistory(r.Context(), query)
	if err != nil {
		slog.Error("Failed to get history", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"records":   page.Records,
		"total":     page.Total,
		"page":      query.Page,
		"page_size": query.PageSize,
	})
}

// handleHistoryItem deletes one record (DELETE /api/history/{id})
func (s *Server) handleHistoryItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}

	id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/api/history/"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := s.deps.Store.DeleteTranslation(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "translation not found")
			return
		}
		slog.Error("Failed to delete translation", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to delete translation")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// handleStats returns performance statistics for ?period=hour|day|week
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	period := storage.Period(r.URL.Query().Get("period"))
	if period == "" {
		period = storage.PeriodDay
	}

	stats, err := s.deps.Store.GetPerformanceStats(r.Context(), period)
	if err != nil {
		slog.Error("Failed to get stats", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get statistics")
		return
	}

	writeJSON(w, http.StatusOK, struct {
		*storage.PerformanceStats
		SuccessRate float64 `json:"success_rate"`
	}{stats, stats.SuccessRate()})
}

type languagesResponse struct {
	Current   string            `json:"current"`
	Favorites []config.Language `json:"favorites"`
}

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	cfg := s.deps.Config.Config()
	writeJSON(w, http.StatusOK, languagesResponse{
		Current:   cfg.Language.CurrentTarget,
		Favorites: cfg.Language.Favorites,
	})
}

// handleSwitchLanguage changes the target language (POST {"code": "ja-JP"})
func (s *Server) handleSwitchLanguage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cfg := s.deps.Config.Config().Clone()
	if err := cfg.SwitchLanguage(req.Code); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.deps.Config.Update(cfg); err != nil {
		slog.Error("Failed to save config", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save configuration")
		return
	}

	slog.Info("Target language switched", "language", cfg.Language.CurrentTarget)
	writeJSON(w, http.StatusOK, languagesResponse{
		Current:   cfg.Language.CurrentTarget,
		Favorites: cfg.Language.Favorites,
	})
}

// handleHotkeyConflicts validates a hotkey and lists the shortcuts it shadows
func (s *Server) handleHotkeyConflicts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var spec config.HotkeySpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid hotkey")
		return
	}

	resp := struct {
		Valid     bool     `json:"valid"`
		Error     string   `json:"error,omitempty"`
		Display   string   `json:"display"`
		Conflicts []string `json:"conflicts"`
	}{Valid: true, Display: spec.Format(), Conflicts: []string{}}

	if err := spec.Validate(); err != nil {
		resp.Valid = false
		resp.Error = err.Error()
	} else if c := spec.Conflicts(); len(c) > 0 {
		resp.Conflicts = c
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleTestConnection sends a short test translation to the LLM endpoint
func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	msg, err := s.deps.TestConnection(r.Context())
	if err != nil {
		slog.Warn("Connection test failed", "error", err)
		writeJSON(w, http.StatusOK, map[string]any{
			"success":  false,
			"message":  apperr.Message(err),
			"category": apperr.CategoryOf(err),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": msg})
}

// handleTranslate translates the posted text without touching the focused
// application
func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	run, err := s.deps.Runner.TranslateText(r.Context(), req.Text)
	switch {
	case errors.Is(err, orchestrator.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
		return
	case run == nil && err == nil:
		writeError(w, http.StatusBadRequest, "text is empty")
		return
	case run == nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status := http.StatusOK
	if err != nil {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, struct {
		Translated string     `json:"translated"`
		Run        RunMessage `json:"run"`
	}{run.Translated, newRunMessage(run)})
}

func atoiDefault(s string, def int) int {
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return def
}
