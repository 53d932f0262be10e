package controller

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/janani/maai/models"
	"github.com/janani/maai/services"
	"github.com/janani/maai/store"
)

// InteractionLog is the read side of the store used by the logs endpoint.
type InteractionLog interface {
	User(ctx context.Context, userKey string) (models.UserRecord, error)
	History(ctx context.Context, userKey string) ([]models.InteractionLogEntry, error)
}

// Ingester indexes raw text into the reference corpus.
type Ingester interface {
	IngestText(ctx context.Context, source, text string) (int, error)
}

// RAGController handles the HTTP requests for the voice assistant API.
type RAGController struct {
	ragService services.RAGService
	logs       InteractionLog
	ingester   Ingester
	health     *services.HealthChecker
	logger     *zap.Logger
}

// NewRAGController wires the handlers. ingester and health may be nil.
func NewRAGController(service services.RAGService, logs InteractionLog, ingester Ingester, health *services.HealthChecker, logger *zap.Logger) *RAGController {
	return &RAGController{
		ragService: service,
		logs:       logs,
		ingester:   ingester,
		health:     health,
		logger:     logger,
	}
}

// RegisterRoutes mounts every endpoint on r.
func (c *RAGController) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", c.Health)

	apiV1 := r.Group("/api/v1")
	{
		apiV1.POST("/ask", c.Ask)
		apiV1.POST("/ask/stream", c.AskStream)
		apiV1.GET("/logs/:identity", c.GetHistory)
		apiV1.GET("/logs/:identity/summary/doctor", c.GetDoctorSummary)
		apiV1.POST("/ingest", c.IngestData)
	}
}

// Ask is the handler for POST /api/v1/ask.
func (c *RAGController) Ask(ctx *gin.Context) {
	var req models.QueryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, errorBody("Invalid request body: "+err.Error()))
		return
	}

	response, err := c.ragService.Ask(ctx.Request.Context(), req)
	if err != nil {
		c.logger.Error("CONTROLLER: ask failed", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, errorBody(failureMessage(err)))
		return
	}

	ctx.JSON(http.StatusOK, response)
}

// AskStream is the handler for POST /api/v1/ask/stream. Answer fragments
// are sent as "fragment" events, followed by one "result" or "error" event.
func (c *RAGController) AskStream(ctx *gin.Context) {
	var req models.QueryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, errorBody("Invalid request body: "+err.Error()))
		return
	}

	ctx.Header("Content-Type", "text/event-stream")
	ctx.Header("Cache-Control", "no-cache")
	ctx.Header("Connection", "keep-alive")
	ctx.Status(http.StatusOK)

	emit := func(fragment string) error {
		ctx.SSEvent("fragment", fragment)
		ctx.Writer.Flush()
		return ctx.Request.Context().Err()
	}

	response, err := c.ragService.AskStream(ctx.Request.Context(), req, emit)
	if err != nil {
		c.logger.Error("CONTROLLER: streamed ask failed", zap.Error(err))
		ctx.SSEvent("error", errorBody(failureMessage(err)))
		ctx.Writer.Flush()
		return
	}

	ctx.SSEvent("result", response)
	ctx.Writer.Flush()
}

// GetHistory is the handler for GET /api/v1/logs/:identity, where identity
// is a phone number or email.
func (c *RAGController) GetHistory(ctx *gin.Context) {
	user, history, ok := c.loadHistory(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, models.HistoryResponse{
		User:         user,
		Count:        len(history),
		Dashboard:    models.BuildDashboard(history),
		Interactions: history,
	})
}

// GetDoctorSummary is the handler for GET /api/v1/logs/:identity/summary/doctor.
func (c *RAGController) GetDoctorSummary(ctx *gin.Context) {
	user, history, ok := c.loadHistory(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, models.DoctorSummaryResponse{
		User:    user,
		Summary: models.BuildDoctorSummary(history, time.Now().UTC()),
	})
}

// loadHistory writes the error response itself when it returns false.
func (c *RAGController) loadHistory(ctx *gin.Context) (models.UserRecord, []models.InteractionLogEntry, bool) {
	identity := strings.TrimSpace(ctx.Param("identity"))
	if identity == "" {
		ctx.JSON(http.StatusBadRequest, errorBody("identity is required"))
		return models.UserRecord{}, nil, false
	}

	user, err := c.logs.User(ctx.Request.Context(), identity)
	if errors.Is(err, store.ErrNotFound) {
		ctx.JSON(http.StatusNotFound, errorBody("no interactions recorded for "+identity))
		return models.UserRecord{}, nil, false
	}
	if err != nil {
		c.logger.Error("CONTROLLER: failed to load user", zap.String("identity", identity), zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, errorBody("Failed to retrieve history"))
		return models.UserRecord{}, nil, false
	}

	history, err := c.logs.History(ctx.Request.Context(), identity)
	if err != nil {
		c.logger.Error("CONTROLLER: failed to load history", zap.String("identity", identity), zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, errorBody("Failed to retrieve history"))
		return models.UserRecord{}, nil, false
	}
	return user, history, true
}

// IngestData is the handler for POST /api/v1/ingest.
func (c *RAGController) IngestData(ctx *gin.Context) {
	if c.ingester == nil {
		ctx.JSON(http.StatusServiceUnavailable, errorBody("ingestion is not configured"))
		return
	}

	var req models.IngestDataRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, errorBody("Invalid request body: "+err.Error()))
		return
	}
	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = "api/" + uuid.New().String()
	}

	chunks, err := c.ingester.IngestText(ctx.Request.Context(), source, req.Text)
	if err != nil {
		c.logger.Error("CONTROLLER: ingest failed", zap.String("source", source), zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, models.IngestDataResponse{
			Message: "Failed to ingest text",
			Chunks:  chunks,
			Error:   err.Error(),
		})
		return
	}

	ctx.JSON(http.StatusCreated, models.IngestDataResponse{
		Message: "Ingested " + source,
		Chunks:  chunks,
	})
}

// Health reports dependency status. It always answers 200: the checks
// are advisory.
func (c *RAGController) Health(ctx *gin.Context) {
	body := gin.H{
		"status":  "healthy",
		"service": "maai",
		"version": "1.0.0",
	}
	if c.health != nil {
		body["dependencies"] = c.health.Latest(ctx.Request.Context())
	}
	ctx.JSON(http.StatusOK, body)
}

func errorBody(message string) models.ErrorResponse {
	return models.ErrorResponse{Status: models.StatusError, Message: message}
}

func failureMessage(err error) string {
	if errors.Is(err, services.ErrGeneration) {
		return "Failed to generate an answer"
	}
	return "Request failed"
}
