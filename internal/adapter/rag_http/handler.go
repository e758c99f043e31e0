package rag_http

import (
	"context"
	"log/slog"
	"net/http"

	"agentic-rag/internal/domain"
	"agentic-rag/internal/usecase"

	"github.com/labstack/echo/v4"
)

// Handler exposes the pipeline over HTTP: a buffered answer endpoint, a
// server-sent-events streaming endpoint, and document ingestion.
type Handler struct {
	pipeline *usecase.Pipeline
	ingestor *usecase.Ingestor
	ready    func(ctx context.Context) error
	logger   *slog.Logger
}

// NewHandler wires the handler. ready probes the storage backend for the
// readiness endpoint and may be nil.
func NewHandler(pipeline *usecase.Pipeline, ingestor *usecase.Ingestor, ready func(ctx context.Context) error, logger *slog.Logger) *Handler {
	return &Handler{pipeline: pipeline, ingestor: ingestor, ready: ready, logger: logger}
}

// RegisterRoutes mounts all endpoints on the echo instance.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/answer", h.Answer)
	e.POST("/v1/answer/stream", h.AnswerStream)
	e.POST("/v1/ingest", h.Ingest)
	e.GET("/healthz", h.Health)
	e.GET("/readyz", h.Ready)
}

type turnPayload struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type answerRequest struct {
	Query         string        `json:"query"`
	History       []turnPayload `json:"history,omitempty"`
	CorrelationID string        `json:"correlation_id,omitempty"`
}

type answerResponse struct {
	CorrelationID string                  `json:"correlation_id"`
	Answer        string                  `json:"answer"`
	Citations     []domain.Citation       `json:"citations"`
	SafetyVerdict domain.SafetyVerdict    `json:"safety_verdict"`
	Rationale     string                  `json:"safety_rationale,omitempty"`
	Degradations  []usecase.DegradedEvent `json:"degradations,omitempty"`
}

type errorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Answer runs the pipeline to completion and returns the aggregate result.
// (POST /v1/answer)
func (h *Handler) Answer(c echo.Context) error {
	var req answerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Kind: string(domain.ErrorKindInvalidInput), Message: "invalid request body"})
	}

	ctx := c.Request().Context()
	events := h.pipeline.Run(ctx, req.Query, toTurns(req.History), req.CorrelationID)

	var degradations []usecase.DegradedEvent
	for event := range events {
		switch event.Kind {
		case usecase.EventKindDegraded:
			degradations = append(degradations, *event.Degraded)
		case usecase.EventKindDone:
			return c.JSON(http.StatusOK, answerResponse{
				CorrelationID: event.Done.CorrelationID,
				Answer:        event.Done.Answer,
				Citations:     event.Done.Citations,
				SafetyVerdict: event.Done.Verdict,
				Rationale:     event.Done.Rationale,
				Degradations:  degradations,
			})
		case usecase.EventKindFailed:
			return c.JSON(statusForKind(event.Failed.Kind), errorResponse{
				Kind:    string(event.Failed.Kind),
				Message: event.Failed.Message,
			})
		}
	}
	return c.JSON(http.StatusInternalServerError, errorResponse{
		Kind:    string(domain.ErrorKindInternal),
		Message: "pipeline ended without terminal event",
	})
}

// AnswerStream runs the pipeline and relays every event as SSE.
// (POST /v1/answer/stream)
func (h *Handler) AnswerStream(c echo.Context) error {
	var req answerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Kind: string(domain.ErrorKindInvalidInput), Message: "invalid request body"})
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	writer := newSSEWriter(res)
	ctx := c.Request().Context()

	for event := range h.pipeline.Run(ctx, req.Query, toTurns(req.History), req.CorrelationID) {
		if err := writer.Write(event); err != nil {
			h.logger.Warn("sse_client_disconnected", slog.String("error", err.Error()))
			return nil
		}
	}
	return nil
}

type ingestRequest struct {
	SourceURI string `json:"source_uri"`
	Title     string `json:"title,omitempty"`
	Body      string `json:"body"`
}

// Ingest chunks, embeds, and stores one document.
// (POST /v1/ingest)
func (h *Handler) Ingest(c echo.Context) error {
	var req ingestRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Kind: string(domain.ErrorKindInvalidInput), Message: "invalid request body"})
	}
	if req.SourceURI == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Kind: string(domain.ErrorKindInvalidInput), Message: "source_uri is required"})
	}

	count, err := h.ingestor.IngestDocument(c.Request().Context(), req.SourceURI, req.Title, req.Body)
	if err != nil {
		kind := domain.KindOf(err)
		return c.JSON(statusForKind(kind), errorResponse{Kind: string(kind), Message: err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"source_uri":  req.SourceURI,
		"chunk_count": count,
	})
}

// Health reports process liveness. (GET /healthz)
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports whether the storage backend answers. (GET /readyz)
func (h *Handler) Ready(c echo.Context) error {
	if h.ready != nil {
		if err := h.ready(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}

func toTurns(payload []turnPayload) []domain.Turn {
	turns := make([]domain.Turn, len(payload))
	for i, t := range payload {
		turns[i] = domain.Turn{Role: t.Role, Content: t.Content}
	}
	return turns
}

func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.ErrorKindInvalidInput:
		return http.StatusBadRequest
	case domain.ErrorKindRateLimited:
		return http.StatusTooManyRequests
	case domain.ErrorKindProviderUnavailable, domain.ErrorKindRetrievalUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
