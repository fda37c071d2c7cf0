package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/davidbz/hearth/internal/domain"
	"github.com/davidbz/hearth/internal/observability"
)

// Handler serves the gateway over HTTP.
type Handler struct {
	gateway *domain.GatewayService
}

// NewHandler creates a new HTTP handler (DI constructor).
func NewHandler(gateway *domain.GatewayService) *Handler {
	return &Handler{
		gateway: gateway,
	}
}

// completeRequest is the body of POST /v1/complete and POST /v1/stream.
// Either Prompt or Turns is set: a bare prompt goes through the cached
// single-shot path, turns through the streaming exchange. When Provider is
// empty, Model picks the vendor that serves it.
type completeRequest struct {
	Provider string        `json:"provider,omitempty"`
	Model    string        `json:"model,omitempty"`
	Prompt   string        `json:"prompt,omitempty"`
	System   string        `json:"system,omitempty"`
	Turns    []domain.Turn `json:"turns,omitempty"`
}

// completeResponse is the body of a successful POST /v1/complete.
type completeResponse struct {
	Provider  string        `json:"provider"`
	Text      string        `json:"text"`
	Reasoning string        `json:"reasoning,omitempty"`
	Usage     *domain.Usage `json:"usage,omitempty"`
}

// HandleComplete processes non-streaming completion requests.
func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, domain.ErrCodeValidation, "method not allowed")
		return
	}

	req, ctx, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	if !h.resolveProvider(ctx, w, req) {
		return
	}

	logger := observability.FromContext(ctx)
	logger.Info("completion request received",
		zap.String("provider", req.Provider),
		zap.Int("turns", len(req.Turns)),
	)

	resp := completeResponse{Provider: req.Provider}

	if len(req.Turns) > 0 {
		result, err := h.gateway.Exchange(ctx, req.Provider, req.System, req.Turns)
		if err != nil {
			writeDomainError(ctx, w, err)
			return
		}
		resp.Text = result.Text
		resp.Reasoning = result.Reasoning
		resp.Usage = &result.Usage
	} else {
		text, err := h.gateway.CompletePrompt(ctx, req.Provider, req.Prompt)
		if err != nil {
			writeDomainError(ctx, w, err)
			return
		}
		resp.Text = text
	}

	writeJSON(ctx, w, resp)
}

// streamEvent is one SSE data frame. StreamChunk does not marshal its
// error, so failures are re-carried as a plain string.
type streamEvent struct {
	Type  domain.ChunkType `json:"type"`
	Text  string           `json:"text,omitempty"`
	Usage *domain.Usage    `json:"usage,omitempty"`
	Error string           `json:"error,omitempty"`
}

// HandleStream processes streaming requests. Each chunk is sent as one SSE
// data frame; a clean close is followed by the [DONE] sentinel. An error
// frame is terminal and no sentinel follows it.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, domain.ErrCodeValidation, "method not allowed")
		return
	}

	req, ctx, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	if !h.resolveProvider(ctx, w, req) {
		return
	}

	// A bare prompt is accepted here too, as a single user turn.
	if len(req.Turns) == 0 && req.Prompt != "" {
		req.Turns = []domain.Turn{domain.TextTurn(domain.RoleUser, req.Prompt)}
	}

	logger := observability.FromContext(ctx)
	logger.Info("stream request started",
		zap.String("provider", req.Provider),
		zap.Int("turns", len(req.Turns)),
	)

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		writeError(w, http.StatusInternalServerError, domain.ErrCodeInternal, "streaming not supported")
		return
	}

	chunks, err := h.gateway.CreateMessage(ctx, req.Provider, req.System, req.Turns)
	if err != nil {
		writeDomainError(ctx, w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for chunk := range chunks {
		if chunk.Type == domain.ChunkError {
			logger.Error("stream failed mid-flight", zap.Error(chunk.Err))
			writeEvent(w, flusher, streamEvent{Type: chunk.Type, Error: chunk.Err.Error()})
			return
		}
		writeEvent(w, flusher, streamEvent{Type: chunk.Type, Text: chunk.Text, Usage: chunk.Usage})
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
	logger.Info("stream completed")
}

// modelsResponse is the body of GET /v1/models.
type modelsResponse struct {
	Models []domain.ProviderModel `json:"models"`
}

// HandleModels lists the resolved model of every registered provider.
func (h *Handler) HandleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, domain.ErrCodeValidation, "method not allowed")
		return
	}

	models, err := h.gateway.Models()
	if err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}

	writeJSON(r.Context(), w, modelsResponse{Models: models})
}

// HandleHealth handles health check requests.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	}); err != nil {
		// Already written status, can't change it, just log.
		return
	}
}

// decodeRequest parses the shared request body and annotates the context
// with the requested provider and model for downstream logging.
func decodeRequest(w http.ResponseWriter, r *http.Request) (*completeRequest, context.Context, bool) {
	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, domain.ErrCodeValidation,
			fmt.Sprintf("invalid request body: %v", err))
		return nil, nil, false
	}

	ctx := r.Context()
	if req.Provider != "" {
		ctx = observability.WithProvider(ctx, req.Provider)
	}
	if req.Model != "" {
		ctx = observability.WithModel(ctx, req.Model)
	}

	return &req, ctx, true
}

// resolveProvider fills in the provider from the model when the request
// named only a model.
func (h *Handler) resolveProvider(ctx context.Context, w http.ResponseWriter, req *completeRequest) bool {
	if req.Provider != "" || req.Model == "" {
		return true
	}

	name, err := h.gateway.RouteModel(req.Model)
	if err != nil {
		writeDomainError(ctx, w, err)
		return false
	}
	req.Provider = name

	return true
}

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFor maps a classified error code onto an HTTP status.
func statusFor(code domain.ErrorCode) int {
	switch code {
	case domain.ErrCodeValidation:
		return http.StatusBadRequest
	case domain.ErrCodeAuth:
		return http.StatusUnauthorized
	case domain.ErrCodeNotFound:
		return http.StatusNotFound
	case domain.ErrCodeRateLimit:
		return http.StatusTooManyRequests
	case domain.ErrCodeTimeout, domain.ErrCodeStall:
		return http.StatusGatewayTimeout
	case domain.ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	case domain.ErrCodeProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	code := domain.CodeOf(err)
	status := statusFor(code)

	logger := observability.FromContext(ctx)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.String("code", string(code)), zap.Error(err))
	} else {
		logger.Warn("request rejected", zap.String("code", string(code)), zap.Error(err))
	}

	writeError(w, status, code, err.Error())
}

func writeError(w http.ResponseWriter, status int, code domain.ErrorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: errorBody{
		Code:    string(code),
		Message: message,
	}})
}

func writeJSON(ctx context.Context, w http.ResponseWriter, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		observability.FromContext(ctx).Error("failed to encode response", zap.Error(err))
	}
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, event streamEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}
