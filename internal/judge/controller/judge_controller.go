package controller

import (
	"context"
	"strconv"

	"olymp/internal/judge/model"
	"olymp/internal/judge/report"
	pkgrepo "olymp/pkg/repository"
	"olymp/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// RunService is the part of the judge service the HTTP layer uses.
type RunService interface {
	Submit(ctx context.Context, req model.RunRequest) (model.RunStatus, error)
	Get(ctx context.Context, runID string) (model.RunStatus, error)
	List(ctx context.Context, problem string, page, pageSize int) (*pkgrepo.PaginationResult[model.RunStatus], error)
	Report(ctx context.Context, runID string) (report.Report, error)
}

// JudgeController handles judging run requests.
type JudgeController struct {
	svc RunService
}

// NewJudgeController creates a new controller.
func NewJudgeController(svc RunService) *JudgeController {
	return &JudgeController{svc: svc}
}

// Register mounts the run routes on r.
func (h *JudgeController) Register(r gin.IRouter) {
	runs := r.Group("/api/v1/judge/runs")
	runs.POST("", h.CreateRun)
	runs.GET("", h.ListRuns)
	runs.GET("/:id", h.GetRun)
	runs.GET("/:id/report", h.GetReport)
}

// CreateRun accepts a run and answers with its pending status.
func (h *JudgeController) CreateRun(c *gin.Context) {
	var req model.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}
	status, err := h.svc.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, status)
}

// GetRun returns status for one run.
func (h *JudgeController) GetRun(c *gin.Context) {
	runID := c.Param("id")
	if runID == "" {
		response.BadRequest(c, "Invalid run id")
		return
	}
	status, err := h.svc.Get(c.Request.Context(), runID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, status)
}

// ListRuns pages through archived runs, optionally of one problem.
func (h *JudgeController) ListRuns(c *gin.Context) {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		response.BadRequest(c, "Invalid page")
		return
	}
	pageSize, err := queryInt(c, "pageSize", pkgrepo.DefaultLimit)
	if err != nil || pageSize > pkgrepo.MaxLimit {
		response.BadRequest(c, "Invalid page size")
		return
	}
	result, err := h.svc.List(c.Request.Context(), c.Query("problem"), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// GetReport returns the stored report of a finished run.
func (h *JudgeController) GetReport(c *gin.Context) {
	rep, err := h.svc.Report(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, rep)
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
