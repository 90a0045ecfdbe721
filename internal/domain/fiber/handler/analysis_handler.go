package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"time"

	"github.com/fadilmartias/resume-insight/internal/agent"
	"github.com/fadilmartias/resume-insight/internal/dispatcher"
	"github.com/fadilmartias/resume-insight/internal/dto"
	"github.com/fadilmartias/resume-insight/internal/extract"
	"github.com/fadilmartias/resume-insight/internal/middleware"
	"github.com/fadilmartias/resume-insight/internal/model"
	"github.com/fadilmartias/resume-insight/internal/response"
	"github.com/fadilmartias/resume-insight/internal/usecase"
	"github.com/fadilmartias/resume-insight/internal/util"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const resumeField = "resume"

type AnalysisService interface {
	Submit(ctx context.Context, in usecase.SubmitInput) (*model.AnalysisTask, error)
	GetResult(ctx context.Context, id string) (*model.AnalysisTask, error)
	Extract(ctx context.Context, filename, mime string, data []byte) (*extract.Document, error)
	SkillGap(ctx context.Context, resumeText, targetRole string) (*agent.SkillGapReport, error)
	SearchJobs(ctx context.Context, query, location string) (*agent.JobMatches, error)
	ListJobs(ctx context.Context, page, pageSize int) ([]model.JobListing, *response.Pagination, error)
	DispatcherStats() []dispatcher.Stats
}

type Config struct {
	MaxUploadBytes int64
	// AnalyzeMax requests per AnalyzeWindow are accepted on POST /analyze.
	AnalyzeMax    int
	AnalyzeWindow time.Duration
}

type AnalysisHandler struct {
	uc  AnalysisService
	cfg Config
}

func NewAnalysisHandler(uc AnalysisService, cfg Config) *AnalysisHandler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 5 * 1024 * 1024
	}
	if cfg.AnalyzeMax <= 0 {
		cfg.AnalyzeMax = 5
	}
	if cfg.AnalyzeWindow <= 0 {
		cfg.AnalyzeWindow = time.Minute
	}
	return &AnalysisHandler{uc: uc, cfg: cfg}
}

func (h *AnalysisHandler) RegisterRoutes(app *fiber.App) {
	app.Post("/analyze", middleware.RateLimiter(h.cfg.AnalyzeMax, h.cfg.AnalyzeWindow), h.Analyze)
	app.Get("/result/:id", h.Result)
	app.Post("/extract", h.Extract)
	app.Post("/skill-gap", h.SkillGap)
	app.Get("/jobs/search", h.SearchJobs)
	app.Get("/jobs", h.ListJobs)
	app.Get("/dispatcher/stats", h.DispatcherStats)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}

func (h *AnalysisHandler) Analyze(c *fiber.Ctx) error {
	var form dto.AnalyzeForm
	if err := c.BodyParser(&form); err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusBadRequest,
			Message: "invalid form",
		}, err)
	}
	if fe := util.ValidateStruct(form); fe != nil {
		return util.FormErrorResponse(c, fe)
	}

	file, data, uerr := h.readUpload(c)
	if uerr != nil {
		return uerr.respond(c)
	}

	task, err := h.uc.Submit(c.UserContext(), usecase.SubmitInput{
		FileName:   file.Filename,
		MIMEType:   file.Header.Get(fiber.HeaderContentType),
		Data:       data,
		TargetRole: form.TargetRole,
		Location:   form.Location,
	})
	if err != nil {
		return extractionError(c, "failed to submit analysis", err)
	}

	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusAccepted,
		Message: "Success submit analysis",
		Data:    dto.SubmitResponse{ID: task.ID.String(), Status: task.Status},
	})
}

func (h *AnalysisHandler) Result(c *fiber.Ctx) error {
	task, err := h.uc.GetResult(c.UserContext(), c.Params("id"))
	switch {
	case errors.Is(err, usecase.ErrInvalidID):
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusBadRequest,
			Message: "invalid analysis id",
		}, err)
	case errors.Is(err, usecase.ErrTaskNotFound):
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusNotFound,
			Message: "analysis not found",
		}, err)
	case err != nil:
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Message: "failed to get analysis result",
		}, err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Success get analysis result",
		Data:    dto.NewAnalysisTaskDTO(task),
	})
}

func (h *AnalysisHandler) Extract(c *fiber.Ctx) error {
	file, data, uerr := h.readUpload(c)
	if uerr != nil {
		return uerr.respond(c)
	}
	doc, err := h.uc.Extract(c.UserContext(), file.Filename, file.Header.Get(fiber.HeaderContentType), data)
	if err != nil {
		return extractionError(c, "failed to extract resume text", err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Success extract resume text",
		Data: dto.ExtractResponse{
			FileName:   file.Filename,
			Kind:       string(doc.Kind),
			MIMEType:   doc.MIMEType,
			Pages:      doc.Pages,
			OCR:        doc.OCR,
			Characters: len([]rune(doc.Text)),
			Text:       doc.Text,
		},
	})
}

func (h *AnalysisHandler) SkillGap(c *fiber.Ctx) error {
	var req dto.SkillGapRequest
	if err := c.BodyParser(&req); err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusBadRequest,
			Message: "invalid request body",
		}, err)
	}
	if fe := util.ValidateStruct(req); fe != nil {
		return util.FormErrorResponse(c, fe)
	}

	report, err := h.uc.SkillGap(c.UserContext(), req.ResumeText, req.TargetRole)
	if err != nil {
		code := fiber.StatusInternalServerError
		if errors.Is(err, agent.ErrTargetRoleRequired) || errors.Is(err, agent.ErrNoContent) {
			code = fiber.StatusUnprocessableEntity
		}
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    code,
			Message: "failed to analyse skill gap",
		}, err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Success analyse skill gap",
		Data:    report,
	})
}

func (h *AnalysisHandler) SearchJobs(c *fiber.Ctx) error {
	var q dto.JobSearchQuery
	if err := c.QueryParser(&q); err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusBadRequest,
			Message: "invalid query",
		}, err)
	}
	if fe := util.ValidateStruct(q); fe != nil {
		return util.FormErrorResponse(c, fe)
	}

	matches, err := h.uc.SearchJobs(c.UserContext(), q.Query, q.Location)
	if err != nil {
		code := fiber.StatusInternalServerError
		if errors.Is(err, agent.ErrNoJobQuery) {
			code = fiber.StatusServiceUnavailable
		}
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    code,
			Message: "failed to search jobs",
		}, err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Success search jobs",
		Data:    matches,
	})
}

func (h *AnalysisHandler) ListJobs(c *fiber.Ctx) error {
	var q dto.PaginationQuery
	if err := c.QueryParser(&q); err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusBadRequest,
			Message: "invalid query",
		}, err)
	}
	if fe := util.ValidateStruct(q); fe != nil {
		return util.FormErrorResponse(c, fe)
	}
	q.Normalize()

	listings, page, err := h.uc.ListJobs(c.UserContext(), q.Page, q.PageSize)
	if err != nil {
		code := fiber.StatusInternalServerError
		if errors.Is(err, usecase.ErrListingDisabled) {
			code = fiber.StatusServiceUnavailable
		}
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    code,
			Message: "failed to list jobs",
		}, err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message:    "Success list jobs",
		Data:       listings,
		Pagination: page,
	})
}

func (h *AnalysisHandler) DispatcherStats(c *fiber.Ctx) error {
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Success get dispatcher stats",
		Data:    h.uc.DispatcherStats(),
	})
}

type uploadError struct {
	code  int
	msg   string
	cause error
}

func (e *uploadError) respond(c *fiber.Ctx) error {
	return util.ErrorResponse(c, util.ErrorResponseFormat{Code: e.code, Message: e.msg}, e.cause)
}

// readUpload returns the resume part and its bytes.
func (h *AnalysisHandler) readUpload(c *fiber.Ctx) (*multipart.FileHeader, []byte, *uploadError) {
	file, err := c.FormFile(resumeField)
	if err != nil {
		return nil, nil, &uploadError{fiber.StatusBadRequest, fmt.Sprintf("%s file is required", resumeField), err}
	}
	if file.Size > h.cfg.MaxUploadBytes {
		msg := fmt.Sprintf("%s file size is too large (max %dMB)", resumeField, h.cfg.MaxUploadBytes>>20)
		return nil, nil, &uploadError{fiber.StatusRequestEntityTooLarge, msg, nil}
	}

	f, err := file.Open()
	if err != nil {
		return nil, nil, &uploadError{fiber.StatusInternalServerError, fmt.Sprintf("cannot read %s file", resumeField), err}
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, nil, &uploadError{fiber.StatusInternalServerError, fmt.Sprintf("cannot read %s file", resumeField), err}
	}
	return file, data, nil
}

func extractionError(c *fiber.Ctx, msg string, err error) error {
	code := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, extract.ErrUnsupportedType):
		code = fiber.StatusUnsupportedMediaType
	case errors.Is(err, extract.ErrTooShort), errors.Is(err, agent.ErrNoContent):
		code = fiber.StatusUnprocessableEntity
	case errors.Is(err, usecase.ErrClosed):
		code = fiber.StatusServiceUnavailable
	}
	return util.ErrorResponse(c, util.ErrorResponseFormat{Code: code, Message: msg}, err)
}
