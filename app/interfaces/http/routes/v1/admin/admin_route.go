package admin

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"openlend.ai/position-cache/app/domain/audit"
	"openlend.ai/position-cache/app/domain/query"
	"openlend.ai/position-cache/app/domain/retryjob"
	"openlend.ai/position-cache/app/interfaces/http/middleware"
	"openlend.ai/position-cache/app/interfaces/http/responses"
	"openlend.ai/position-cache/app/utils/functional"
	"openlend.ai/position-cache/app/utils/idgen"
)

const actorOperator = "operator"

// AdminRoute is the operator surface over the retry queue and the audit
// trail. Every endpoint sits behind the admin key.
type AdminRoute struct {
	retryJobService *retryjob.Service
	auditService    *audit.Service
}

func NewAdminRoute(retryJobService *retryjob.Service, auditService *audit.Service) *AdminRoute {
	return &AdminRoute{
		retryJobService: retryJobService,
		auditService:    auditService,
	}
}

func (route *AdminRoute) RegisterRouter(router gin.IRouter) {
	adminRouter := router.Group("/admin", middleware.AdminKeyMiddleware())
	adminRouter.GET("/jobs", route.ListJobs)
	adminRouter.GET("/jobs/:job_id", route.GetJob)
	adminRouter.POST("/jobs/:job_id/retry", route.ForceRetry)
	adminRouter.POST("/jobs/:job_id/ignore", route.IgnoreJob)
	adminRouter.POST("/jobs/:job_id/replay", route.ReplayJob)
	adminRouter.GET("/audit", route.ListAudit)
	adminRouter.GET("/metrics", route.GetMetrics)
}

type JobResponse struct {
	ID                  string     `json:"id"`
	Subject             string     `json:"subject"`
	Asset               string     `json:"asset"`
	ViewTarget          string     `json:"view_target"`
	ReasonCode          string     `json:"reason_code"`
	ReasonDetail        string     `json:"reason_detail,omitempty"`
	SourceRef           string     `json:"source_ref"`
	AttemptedCollateral string     `json:"attempted_collateral,omitempty"`
	AttemptedDebt       string     `json:"attempted_debt,omitempty"`
	Status              string     `json:"status"`
	Attempts            int        `json:"attempts"`
	DuplicateSignals    int        `json:"duplicate_signals"`
	LastAttemptAt       *time.Time `json:"last_attempt_at,omitempty"`
	NextAvailableAt     time.Time  `json:"next_available_at"`
	Note                string     `json:"note,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func jobToResponse(job *retryjob.Job) JobResponse {
	return JobResponse{
		ID:                  job.PublicID,
		Subject:             job.Subject,
		Asset:               job.Asset,
		ViewTarget:          job.ViewTarget,
		ReasonCode:          string(job.ReasonCode),
		ReasonDetail:        job.ReasonDetail,
		SourceRef:           job.SourceRef,
		AttemptedCollateral: job.AttemptedCollateral,
		AttemptedDebt:       job.AttemptedDebt,
		Status:              string(job.Status),
		Attempts:            job.Attempts,
		DuplicateSignals:    job.DuplicateSignals,
		LastAttemptAt:       job.LastAttemptAt,
		NextAvailableAt:     job.NextAvailableAt,
		Note:                job.Note,
		CreatedAt:           job.CreatedAt,
		UpdatedAt:           job.UpdatedAt,
	}
}

// jobIDParam validates the job_id path parameter's shape before any lookup.
func (route *AdminRoute) jobIDParam(reqCtx *gin.Context) (string, bool) {
	jobID := reqCtx.Param("job_id")
	if !idgen.ValidateIDFormat(jobID, "job") {
		reqCtx.AbortWithStatusJSON(http.StatusBadRequest, responses.ErrorResponse{
			Code:  "e1f2a3b4-c5d6-4e7f-88a9-b0c1d2e3f4a5",
			Error: "invalid job id",
		})
		return "", false
	}
	return jobID, true
}

// ListJobs godoc
// @Summary     List retry jobs
// @Description Filterable by status, subject, asset and view target.
// @Tags        admin
// @Produce     json
// @Security    AdminKey
// @Success     200 {object} responses.ListResponse[JobResponse]
// @Router      /v1/admin/jobs [get]
func (route *AdminRoute) ListJobs(reqCtx *gin.Context) {
	ctx := reqCtx.Request.Context()

	pagination, err := query.GetPaginationFromQuery(reqCtx)
	if err != nil {
		reqCtx.AbortWithStatusJSON(http.StatusBadRequest, responses.ErrorResponse{
			Code:  "1a2b3c4d-5e6f-4708-9a0b-c1d2e3f4a5b6",
			Error: err.Error(),
		})
		return
	}

	filter := retryjob.Filter{}
	if v := reqCtx.Query("status"); v != "" {
		status := retryjob.Status(v)
		filter.Status = &status
	}
	if v := reqCtx.Query("subject"); v != "" {
		filter.Subject = &v
	}
	if v := reqCtx.Query("asset"); v != "" {
		filter.Asset = &v
	}
	if v := reqCtx.Query("view_target"); v != "" {
		filter.ViewTarget = &v
	}

	jobs, err := route.retryJobService.FindByFilter(ctx, filter, pagination)
	if err != nil {
		reqCtx.AbortWithStatusJSON(http.StatusInternalServerError, responses.ErrorResponse{
			Code:  "7b8c9d0e-1f2a-4b3c-8d4e-5f6a7b8c9d0e",
			Error: "list retry jobs failed",
		})
		return
	}
	total, err := route.retryJobService.Count(ctx, filter)
	if err != nil {
		reqCtx.AbortWithStatusJSON(http.StatusInternalServerError, responses.ErrorResponse{
			Code:  "3c4d5e6f-7a8b-4c9d-80e1-f2a3b4c5d6e7",
			Error: "count retry jobs failed",
		})
		return
	}

	reqCtx.JSON(http.StatusOK, responses.ListResponse[JobResponse]{
		Status:  responses.StatusOk,
		Total:   total,
		Results: functional.Map(jobs, jobToResponse),
	})
}

// GetJob godoc
// @Summary     Fetch one retry job
// @Tags        admin
// @Produce     json
// @Security    AdminKey
// @Success     200 {object} responses.GeneralResponse[JobResponse]
// @Router      /v1/admin/jobs/{job_id} [get]
func (route *AdminRoute) GetJob(reqCtx *gin.Context) {
	jobID, ok := route.jobIDParam(reqCtx)
	if !ok {
		return
	}
	job, err := route.retryJobService.FindByPublicID(reqCtx.Request.Context(), jobID)
	if err != nil {
		route.jobError(reqCtx, err)
		return
	}
	reqCtx.JSON(http.StatusOK, responses.GeneralResponse[JobResponse]{
		Status: responses.StatusOk,
		Result: jobToResponse(job),
	})
}

type forceRetryRequest struct {
	DryRun bool `json:"dry_run"`
}

// ForceRetry godoc
// @Summary     Clear a pending job's cooldown
// @Description The next worker cycle picks the job up immediately. With
// @Description dry_run the job is returned unchanged.
// @Tags        admin
// @Accept      json
// @Produce     json
// @Security    AdminKey
// @Success     200 {object} responses.GeneralResponse[JobResponse]
// @Router      /v1/admin/jobs/{job_id}/retry [post]
func (route *AdminRoute) ForceRetry(reqCtx *gin.Context) {
	jobID, ok := route.jobIDParam(reqCtx)
	if !ok {
		return
	}
	var req forceRetryRequest
	if reqCtx.Request.ContentLength > 0 {
		if err := reqCtx.ShouldBindJSON(&req); err != nil {
			reqCtx.AbortWithStatusJSON(http.StatusBadRequest, responses.ErrorResponse{
				Code:  "9e0f1a2b-3c4d-4e5f-86a7-b8c9d0e1f2a3",
				Error: err.Error(),
			})
			return
		}
	}

	job, err := route.retryJobService.ForceRetry(reqCtx.Request.Context(), jobID, req.DryRun, actorOperator)
	if err != nil {
		route.jobError(reqCtx, err)
		return
	}
	reqCtx.JSON(http.StatusOK, responses.GeneralResponse[JobResponse]{
		Status: responses.StatusOk,
		Result: jobToResponse(job),
	})
}

type ignoreRequest struct {
	Note string `json:"note"`
}

// IgnoreJob godoc
// @Summary     Close a job without applying it
// @Description Only pending and dead-lettered jobs can be ignored. The note
// @Description is kept on the job and in the audit trail.
// @Tags        admin
// @Accept      json
// @Produce     json
// @Security    AdminKey
// @Success     200 {object} responses.GeneralResponse[JobResponse]
// @Router      /v1/admin/jobs/{job_id}/ignore [post]
func (route *AdminRoute) IgnoreJob(reqCtx *gin.Context) {
	jobID, ok := route.jobIDParam(reqCtx)
	if !ok {
		return
	}
	var req ignoreRequest
	if reqCtx.Request.ContentLength > 0 {
		if err := reqCtx.ShouldBindJSON(&req); err != nil {
			reqCtx.AbortWithStatusJSON(http.StatusBadRequest, responses.ErrorResponse{
				Code:  "5f6a7b8c-9d0e-4f1a-82b3-c4d5e6f7a8b9",
				Error: err.Error(),
			})
			return
		}
	}

	job, err := route.retryJobService.MarkIgnored(reqCtx.Request.Context(), jobID, req.Note, actorOperator)
	if err != nil {
		route.jobError(reqCtx, err)
		return
	}
	reqCtx.JSON(http.StatusOK, responses.GeneralResponse[JobResponse]{
		Status: responses.StatusOk,
		Result: jobToResponse(job),
	})
}

// ReplayJob godoc
// @Summary     Re-enqueue a dead-lettered job
// @Description Resets the attempt budget and puts the job back in pending.
// @Tags        admin
// @Produce     json
// @Security    AdminKey
// @Success     200 {object} responses.GeneralResponse[JobResponse]
// @Router      /v1/admin/jobs/{job_id}/replay [post]
func (route *AdminRoute) ReplayJob(reqCtx *gin.Context) {
	jobID, ok := route.jobIDParam(reqCtx)
	if !ok {
		return
	}
	job, err := route.retryJobService.ReplayDeadletter(reqCtx.Request.Context(), jobID, actorOperator)
	if err != nil {
		route.jobError(reqCtx, err)
		return
	}
	reqCtx.JSON(http.StatusOK, responses.GeneralResponse[JobResponse]{
		Status: responses.StatusOk,
		Result: jobToResponse(job),
	})
}

type AuditRecordResponse struct {
	ID            uint      `json:"id"`
	JobID         *string   `json:"job_id,omitempty"`
	Subject       string    `json:"subject"`
	Asset         string    `json:"asset"`
	ViewTarget    string    `json:"view_target"`
	Action        string    `json:"action"`
	Actor         string    `json:"actor"`
	BeforeVersion uint64    `json:"before_version"`
	AfterVersion  uint64    `json:"after_version"`
	Detail        string    `json:"detail,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ListAudit godoc
// @Summary     Query the reconciliation audit trail
// @Description Filterable by key, action, job and time window.
// @Tags        admin
// @Produce     json
// @Security    AdminKey
// @Success     200 {object} responses.ListResponse[AuditRecordResponse]
// @Router      /v1/admin/audit [get]
func (route *AdminRoute) ListAudit(reqCtx *gin.Context) {
	ctx := reqCtx.Request.Context()

	pagination, err := query.GetPaginationFromQuery(reqCtx)
	if err != nil {
		reqCtx.AbortWithStatusJSON(http.StatusBadRequest, responses.ErrorResponse{
			Code:  "0a1b2c3d-4e5f-4607-b8c9-d0e1f2a3b4c5",
			Error: err.Error(),
		})
		return
	}

	filter := audit.Filter{}
	if v := reqCtx.Query("subject"); v != "" {
		filter.Subject = &v
	}
	if v := reqCtx.Query("asset"); v != "" {
		filter.Asset = &v
	}
	if v := reqCtx.Query("view_target"); v != "" {
		filter.ViewTarget = &v
	}
	if v := reqCtx.Query("action"); v != "" {
		filter.Action = &v
	}
	if v := reqCtx.Query("job_id"); v != "" {
		filter.JobPublicID = &v
	}
	if v := reqCtx.Query("from"); v != "" {
		from, err := time.Parse(time.RFC3339, v)
		if err != nil {
			reqCtx.AbortWithStatusJSON(http.StatusBadRequest, responses.ErrorResponse{
				Code:  "6b7c8d9e-0f1a-4b2c-83d4-e5f6a7b8c9d0",
				Error: "invalid from timestamp, expected RFC3339",
			})
			return
		}
		filter.From = &from
	}
	if v := reqCtx.Query("to"); v != "" {
		to, err := time.Parse(time.RFC3339, v)
		if err != nil {
			reqCtx.AbortWithStatusJSON(http.StatusBadRequest, responses.ErrorResponse{
				Code:  "2c3d4e5f-6a7b-4c8d-90e1-f2a3b4c5d6e7",
				Error: "invalid to timestamp, expected RFC3339",
			})
			return
		}
		filter.To = &to
	}

	records, err := route.auditService.Query(ctx, filter, pagination)
	if err != nil {
		reqCtx.AbortWithStatusJSON(http.StatusInternalServerError, responses.ErrorResponse{
			Code:  "8d9e0f1a-2b3c-4d4e-85f6-a7b8c9d0e1f2",
			Error: "audit query failed",
		})
		return
	}
	total, err := route.auditService.Count(ctx, filter)
	if err != nil {
		reqCtx.AbortWithStatusJSON(http.StatusInternalServerError, responses.ErrorResponse{
			Code:  "4e5f6a7b-8c9d-4e0f-91a2-b3c4d5e6f7a8",
			Error: "audit count failed",
		})
		return
	}

	reqCtx.JSON(http.StatusOK, responses.ListResponse[AuditRecordResponse]{
		Status:  responses.StatusOk,
		Total:   total,
		Results: functional.Map(records, func(record *audit.Record) AuditRecordResponse {
			return AuditRecordResponse{
				ID:            record.ID,
				JobID:         record.JobPublicID,
				Subject:       record.Subject,
				Asset:         record.Asset,
				ViewTarget:    record.ViewTarget,
				Action:        record.Action,
				Actor:         record.Actor,
				BeforeVersion: record.BeforeVersion,
				AfterVersion:  record.AfterVersion,
				Detail:        record.Detail,
				CreatedAt:     record.CreatedAt,
			}
		}),
	})
}

// GetMetrics godoc
// @Summary     Reconciliation health metrics
// @Description Queue depth by status, audit action counts over the window,
// @Description deadletter rate and mean time to repair.
// @Tags        admin
// @Produce     json
// @Security    AdminKey
// @Success     200 {object} responses.GeneralResponse[audit.Metrics]
// @Router      /v1/admin/metrics [get]
func (route *AdminRoute) GetMetrics(reqCtx *gin.Context) {
	window := 24 * time.Hour
	if v := reqCtx.Query("window"); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil || parsed <= 0 {
			reqCtx.AbortWithStatusJSON(http.StatusBadRequest, responses.ErrorResponse{
				Code:  "0f1a2b3c-4d5e-4f6a-87b8-c9d0e1f2a3b4",
				Error: "invalid window, expected a positive duration",
			})
			return
		}
		window = parsed
	}

	metrics, err := route.auditService.Metrics(reqCtx.Request.Context(), window)
	if err != nil {
		reqCtx.AbortWithStatusJSON(http.StatusInternalServerError, responses.ErrorResponse{
			Code:  "6a7b8c9d-0e1f-4a2b-93c4-d5e6f7a8b9c0",
			Error: "metrics computation failed",
		})
		return
	}
	reqCtx.JSON(http.StatusOK, responses.GeneralResponse[audit.Metrics]{
		Status: responses.StatusOk,
		Result: *metrics,
	})
}

func (route *AdminRoute) jobError(reqCtx *gin.Context, err error) {
	switch {
	case errors.Is(err, retryjob.ErrNotFound):
		reqCtx.AbortWithStatusJSON(http.StatusNotFound, responses.ErrorResponse{
			Code:  "2b3c4d5e-6f7a-4b8c-99d0-e1f2a3b4c5d6",
			Error: "retry job not found",
		})
	case errors.Is(err, retryjob.ErrInvalidTransition):
		reqCtx.AbortWithStatusJSON(http.StatusConflict, responses.ErrorResponse{
			Code:  "8c9d0e1f-2a3b-4c4d-85e6-f7a8b9c0d1e2",
			Error: err.Error(),
		})
	case errors.Is(err, retryjob.ErrConflict):
		reqCtx.AbortWithStatusJSON(http.StatusConflict, responses.ErrorResponse{
			Code:  "d0e1f2a3-b4c5-4d6e-97f8-a9b0c1d2e3f4",
			Error: "retry job changed concurrently, retry the operation",
		})
	default:
		reqCtx.AbortWithStatusJSON(http.StatusInternalServerError, responses.ErrorResponse{
			Code:  "4d5e6f7a-8b9c-4d0e-91f2-a3b4c5d6e7f8",
			Error: "retry job operation failed",
		})
	}
}
