package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-assessor/internal/dto"
	"github.com/noah-isme/gema-assessor/internal/middleware"
	"github.com/noah-isme/gema-assessor/internal/service"
	"github.com/noah-isme/gema-assessor/internal/utils"
	"github.com/noah-isme/gema-assessor/pkg/ai"
	"github.com/noah-isme/gema-assessor/pkg/document"
)

// closeBatchNotFound is the websocket close code sent for unknown batch ids.
const closeBatchNotFound = 4404

// GradingDefaults are applied when a request leaves a parameter empty.
type GradingDefaults struct {
	SystemPromptPath string
	UserPromptPath   string
	SupportFolder    string
	OutputFolder     string
	MaxWorkers       int
}

// GradingHandler exposes single, batch and history grading endpoints.
type GradingHandler struct {
	grading   service.GradingService
	jobs      service.BatchJobService
	history   service.GradingHistoryService
	defaults  GradingDefaults
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewGradingHandler builds a grading handler instance. history may be nil.
func NewGradingHandler(grading service.GradingService, jobs service.BatchJobService, history service.GradingHistoryService, defaults GradingDefaults, validator *validator.Validate, logger zerolog.Logger) *GradingHandler {
	return &GradingHandler{
		grading:   grading,
		jobs:      jobs,
		history:   history,
		defaults:  defaults,
		validator: validator,
		logger:    logger.With().Str("component", "grading_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *GradingHandler) Register(router fiber.Router) {
	router.Post("/submissions", h.gradeSubmission)
	router.Post("/batches", h.startBatch)
	router.Get("/batches/:id", h.getBatch)
	router.Use("/batches/:id/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/batches/:id/ws", websocket.New(h.streamBatch))
	router.Get("/history", h.listHistory)
}

func (h *GradingHandler) gradeSubmission(c *fiber.Ctx) error {
	var payload dto.GradeSubmissionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return h.handleError(c, err)
	}

	systemPrompt, err := service.ResolvePrompt(payload.SystemPrompt, payload.SystemPromptPath, h.defaults.SystemPromptPath)
	if err != nil {
		return h.handleError(c, err)
	}
	userPrompt, err := service.ResolvePrompt(payload.UserPrompt, payload.UserPromptPath, h.defaults.UserPromptPath)
	if err != nil {
		return h.handleError(c, err)
	}

	result := h.grading.GradeSubmission(requestContext(c), service.GradingRequest{
		SubmissionPath: payload.SubmissionPath,
		SystemPrompt:   systemPrompt,
		UserPrompt:     userPrompt,
		SupportFolder:  firstNonEmpty(payload.SupportFolder, h.defaults.SupportFolder),
		OutputFolder:   firstNonEmpty(payload.OutputFolder, h.defaults.OutputFolder),
		ModelKey:       payload.Model,
		Temperature:    payload.Temperature,
	})

	response := newGradingResultResponse(result)
	if result.Success {
		return utils.SendSuccess(c, "submission graded", response)
	}
	return utils.SendFailure(c, gradingFailureStatus(result.Err), result.Feedback, response)
}

func (h *GradingHandler) startBatch(c *fiber.Ctx) error {
	var payload dto.GradeBatchRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return h.handleError(c, err)
	}

	systemPrompt, err := service.ResolvePrompt(payload.SystemPrompt, payload.SystemPromptPath, h.defaults.SystemPromptPath)
	if err != nil {
		return h.handleError(c, err)
	}
	userPrompt, err := service.ResolvePrompt(payload.UserPrompt, payload.UserPromptPath, h.defaults.UserPromptPath)
	if err != nil {
		return h.handleError(c, err)
	}

	workers := payload.MaxWorkers
	if workers == 0 {
		workers = h.defaults.MaxWorkers
	}

	job, err := h.jobs.Start(requestContext(c), service.BatchRequest{
		SubmissionsFolder: payload.SubmissionsFolder,
		SystemPrompt:      systemPrompt,
		UserPrompt:        userPrompt,
		SupportFolder:     firstNonEmpty(payload.SupportFolder, h.defaults.SupportFolder),
		OutputFolder:      firstNonEmpty(payload.OutputFolder, h.defaults.OutputFolder),
		ModelKey:          payload.Model,
		Temperature:       payload.Temperature,
		MaxWorkers:        workers,
	})
	if err != nil {
		return h.handleError(c, err)
	}

	requestLogger(h.logger, c).Info().Str("batch_id", job.ID).Int("total", job.Total).Msg("batch grading queued")
	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "batch grading queued", newBatchJobResponse(job))
}

func (h *GradingHandler) getBatch(c *fiber.Ctx) error {
	job, err := h.jobs.Get(requestContext(c), c.Params("id"))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "batch retrieved", newBatchJobResponse(job))
}

func (h *GradingHandler) streamBatch(conn *websocket.Conn) {
	id := conn.Params("id")
	updates, unsubscribe := h.jobs.Subscribe(id)
	defer unsubscribe()
	defer conn.Close()

	job, err := h.jobs.Get(context.Background(), id)
	if err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(closeBatchNotFound, "batch not found"))
		return
	}

	if err := conn.WriteJSON(newBatchJobResponse(job)); err != nil || job.Finished() {
		return
	}

	for progress := range updates {
		if err := conn.WriteJSON(progress); err != nil {
			h.logger.Debug().Err(err).Str("batch_id", id).Msg("progress subscriber went away")
			return
		}
	}

	if final, err := h.jobs.Get(context.Background(), id); err == nil {
		_ = conn.WriteJSON(newBatchJobResponse(final))
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "batch finished"))
}

func (h *GradingHandler) listHistory(c *fiber.Ctx) error {
	if h.history == nil {
		return utils.SendError(c, fiber.StatusServiceUnavailable, "grading history is not enabled")
	}

	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	query := dto.GradingHistoryQuery{
		Submission: strings.TrimSpace(c.Query("submission")),
		BatchID:    strings.TrimSpace(c.Query("batch_id")),
		Limit:      limit,
	}
	if raw := strings.TrimSpace(c.Query("success")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid success flag")
		}
		query.Success = &parsed
	}
	if err := h.validator.Struct(query); err != nil {
		return h.handleError(c, err)
	}

	records, err := h.history.List(requestContext(c), service.GradingHistoryFilter{
		Submission: query.Submission,
		BatchID:    query.BatchID,
		Success:    query.Success,
		Limit:      query.Limit,
	})
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "grading history", dto.NewGradingRecordResponses(records))
}

func (h *GradingHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	case errors.Is(err, service.ErrValidation):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrBatchJobNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "batch not found")
	case errors.Is(err, document.ErrNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, document.ErrNotADirectory), errors.Is(err, document.ErrNotAFile):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}

func gradingFailureStatus(err error) int {
	var apiErr *ai.APIError
	switch {
	case errors.As(err, &apiErr):
		return fiber.StatusBadGateway
	case errors.Is(err, document.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, document.ErrNotAFile), errors.Is(err, document.ErrFormat):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func newGradingResultResponse(result service.GradingResult) dto.GradingResultResponse {
	response := dto.GradingResultResponse{
		Success:        result.Success,
		Feedback:       result.Feedback,
		Submission:     result.Submission,
		OutputPath:     result.OutputPath,
		Model:          result.Model,
		Temperature:    result.Temperature,
		DurationMillis: result.Duration.Milliseconds(),
	}
	for _, skipped := range result.SkippedSupport {
		response.SkippedSupport = append(response.SkippedSupport, dto.SupportFailureResponse{Name: skipped.Name, Reason: skipped.Reason})
	}
	return response
}

func newBatchJobResponse(job service.BatchJob) dto.BatchJobResponse {
	response := dto.BatchJobResponse{
		ID:                job.ID,
		Status:            job.Status,
		SubmissionsFolder: job.SubmissionsFolder,
		Total:             job.Total,
		Processed:         job.Processed,
		SuccessCount:      job.SuccessCount,
		FailCount:         job.FailCount,
		Error:             job.Error,
		CreatedAt:         job.CreatedAt,
		FinishedAt:        job.FinishedAt,
	}

	if job.Report != nil {
		report := dto.BatchReportResponse{
			SuccessCount: job.Report.SuccessCount,
			FailCount:    job.Report.FailCount,
			Results:      make([]dto.GradingResultResponse, 0, len(job.Report.Order)),
		}
		for _, result := range job.Report.Entries() {
			report.Results = append(report.Results, newGradingResultResponse(result))
		}
		response.Report = &report
	}

	return response
}
