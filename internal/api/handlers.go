package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/nepbay/voice-search/internal/config"
	"github.com/nepbay/voice-search/internal/kafka"
	"github.com/nepbay/voice-search/internal/models"
	"github.com/nepbay/voice-search/internal/orchestrator"
	"github.com/nepbay/voice-search/internal/speech"
)

const (
	maxRequestBodySize = 1 << 20  // 1 MB
	maxAudioBodySize   = 10 << 20 // 10 MB
	maxQueryLen        = 500
	maxSuggestLen      = 100
)

type Handler struct {
	orchestrator *orchestrator.Orchestrator
	recognizer   speech.Recognizer
	producer     *kafka.Producer
	speechCfg    config.SpeechConfig
	logger       *zap.Logger
}

func NewHandler(orch *orchestrator.Orchestrator, recognizer speech.Recognizer, producer *kafka.Producer, speechCfg config.SpeechConfig, logger *zap.Logger) *Handler {
	return &Handler{
		orchestrator: orch,
		recognizer:   recognizer,
		producer:     producer,
		speechCfg:    speechCfg,
		logger:       logger,
	}
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := RequestIDFromContext(ctx)

	req, err := h.parseSearchRequest(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Query == "" {
		h.writeError(w, http.StatusBadRequest, "missing_query", "Query parameter 'q' is required")
		return
	}
	if len(req.Query) > maxQueryLen {
		req.Query = req.Query[:maxQueryLen]
	}
	req.RequestID = requestID

	h.runSearch(w, r, req)
}

// VoiceSearch accepts a multipart form carrying either a text transcript in
// the "query" field or raw audio in the "audio" file field. Audio is
// transcribed server-side, so the parsed intent always matches what the
// pipeline ranked against.
func (h *Handler) VoiceSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := RequestIDFromContext(ctx)

	if err := r.ParseMultipartForm(maxAudioBodySize); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "expected multipart form data")
		return
	}

	req := &models.SearchRequest{
		Query:      r.FormValue("query"),
		UserID:     r.FormValue("user_id"),
		SessionKey: r.FormValue("session_key"),
		Region:     r.FormValue("region"),
		RequestID:  requestID,
	}
	if p, err := strconv.Atoi(r.FormValue("page")); err == nil && p >= 0 {
		req.Page = p
	}
	if ps, err := strconv.Atoi(r.FormValue("page_size")); err == nil && ps > 0 {
		req.PageSize = ps
	}

	audio, _, err := r.FormFile("audio")
	if err == nil {
		defer audio.Close()
		transcript, terr := h.transcribe(r, audio)
		if terr != nil {
			if errors.Is(terr, speech.ErrNoSpeech) {
				h.writeError(w, http.StatusUnprocessableEntity, "no_speech", "No speech detected in audio")
				return
			}
			h.logger.Error("transcription failed", zap.String("request_id", requestID), zap.Error(terr))
			h.writeError(w, http.StatusInternalServerError, "transcription_error", "Speech recognition temporarily unavailable")
			return
		}
		req.Query = transcript
	}

	if req.Query == "" {
		h.writeError(w, http.StatusBadRequest, "missing_query", "Either 'query' text or an 'audio' file is required")
		return
	}
	if len(req.Query) > maxQueryLen {
		req.Query = req.Query[:maxQueryLen]
	}

	h.runSearch(w, r, req)
}

func (h *Handler) transcribe(r *http.Request, audio io.Reader) (string, error) {
	if h.recognizer == nil {
		return "", errors.New("no speech recognizer configured")
	}

	events, err := h.recognizer.Recognize(r.Context(), audio)
	if err != nil {
		return "", err
	}

	timeout := h.speechCfg.NoResultTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return speech.Collect(r.Context(), events, timeout)
}

func (h *Handler) runSearch(w http.ResponseWriter, r *http.Request, req *models.SearchRequest) {
	resp, err := h.orchestrator.Search(r.Context(), req)
	if err != nil {
		if errors.Is(err, orchestrator.ErrSuperseded) {
			h.writeError(w, http.StatusConflict, "superseded", "A newer search replaced this one")
			return
		}
		h.logger.Error("search failed",
			zap.String("request_id", req.RequestID),
			zap.Error(err),
		)
		h.writeError(w, http.StatusInternalServerError, "search_error", "Search service temporarily unavailable")
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// Explain returns the parsed intent and its summary without searching, for
// client-side "searching for..." confirmations.
func (h *Handler) Explain(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "missing_query", "Query parameter 'q' is required")
		return
	}
	if len(query) > maxQueryLen {
		query = query[:maxQueryLen]
	}

	intent, explain := h.orchestrator.Explain(query)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"intent":  intent,
		"explain": explain,
	})
}

func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("q")
	if prefix == "" {
		h.writeError(w, http.StatusBadRequest, "missing_query", "Query parameter 'q' is required")
		return
	}
	if len(prefix) > maxSuggestLen {
		prefix = prefix[:maxSuggestLen]
	}

	suggestions, err := h.orchestrator.Suggest(r.Context(), prefix, 10)
	if err != nil {
		h.logger.Warn("suggest failed", zap.Error(err))
		suggestions = nil
	}
	if suggestions == nil {
		suggestions = []string{}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"suggestions": suggestions,
	})
}

func (h *Handler) Trending(w http.ResponseWriter, r *http.Request) {
	region := r.URL.Query().Get("region")
	if region == "" {
		region = "global"
	}

	trending, err := h.orchestrator.Trending(r.Context(), region, 10)
	if err != nil {
		h.logger.Warn("trending failed", zap.Error(err))
		trending = nil
	}
	if trending == nil {
		trending = []string{}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"trending": trending,
		"region":   region,
	})
}

// RecordInteraction accepts a view/click/purchase event and publishes it to
// the interaction topic. The consumer folds it into the user's history, so
// writes here influence personalization asynchronously.
func (h *Handler) RecordInteraction(w http.ResponseWriter, r *http.Request) {
	if h.producer == nil {
		h.writeError(w, http.StatusServiceUnavailable, "interactions_unavailable", "Interaction recording is not configured")
		return
	}

	var it models.UserInteraction
	limited := io.LimitReader(r.Body, maxRequestBodySize)
	if err := json.NewDecoder(limited).Decode(&it); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid interaction body")
		return
	}
	if it.UserID == "" || it.ProductID == 0 || it.InteractionType == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_interaction", "user_id, product_id and interaction_type are required")
		return
	}
	if it.Timestamp.IsZero() {
		it.Timestamp = time.Now().UTC()
	}

	if err := h.producer.PublishInteraction(r.Context(), &it); err != nil {
		h.logger.Error("publishing interaction",
			zap.String("user_id", it.UserID),
			zap.Error(err),
		)
		h.writeError(w, http.StatusInternalServerError, "publish_error", "Could not record interaction")
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *Handler) parseSearchRequest(r *http.Request) (*models.SearchRequest, error) {
	if r.Method == http.MethodPost {
		var req models.SearchRequest
		limited := io.LimitReader(r.Body, maxRequestBodySize)
		if err := json.NewDecoder(limited).Decode(&req); err != nil {
			return nil, err
		}
		return &req, nil
	}

	// GET request
	req := &models.SearchRequest{
		Query:      r.URL.Query().Get("q"),
		Region:     r.URL.Query().Get("region"),
		UserID:     r.URL.Query().Get("user_id"),
		SessionKey: r.URL.Query().Get("session_key"),
	}

	if p := r.URL.Query().Get("page"); p != "" {
		page, err := strconv.Atoi(p)
		if err == nil && page >= 0 {
			req.Page = page
		}
	}

	if ps := r.URL.Query().Get("page_size"); ps != "" {
		pageSize, err := strconv.Atoi(ps)
		if err == nil && pageSize > 0 {
			req.PageSize = pageSize
		}
	}

	if r.URL.Query().Get("force_fresh") == "true" {
		req.ForceFresh = true
	}

	return req, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("writing json response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, map[string]string{
		"error": message,
		"code":  code,
	})
}
