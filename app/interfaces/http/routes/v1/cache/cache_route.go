package cache

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"openlend.ai/position-cache/app/domain/failure"
	"openlend.ai/position-cache/app/domain/position"
	"openlend.ai/position-cache/app/domain/retryjob"
	"openlend.ai/position-cache/app/domain/target"
	"openlend.ai/position-cache/app/interfaces/http/responses"
	"openlend.ai/position-cache/app/utils/logger"
)

// CacheRoute exposes the versioned write path and the read path.
type CacheRoute struct {
	positionService *position.Service
	failureService  *failure.Service
	targetResolver  target.Resolver
}

func NewCacheRoute(
	positionService *position.Service,
	failureService *failure.Service,
	targetResolver target.Resolver,
) *CacheRoute {
	return &CacheRoute{
		positionService: positionService,
		failureService:  failureService,
		targetResolver:  targetResolver,
	}
}

func (route *CacheRoute) RegisterRouter(router gin.IRouter) {
	cacheRouter := router.Group("/cache")
	cacheRouter.POST("/apply", route.ApplyWrite)
	cacheRouter.GET("/entries/:subject/:asset", route.GetEntry)
	cacheRouter.POST("/failures", route.RecordFailure)
}

type ApplyRequest struct {
	Subject             string `json:"subject" binding:"required"`
	Asset               string `json:"asset" binding:"required"`
	Collateral          string `json:"collateral" binding:"required"`
	Debt                string `json:"debt" binding:"required"`
	ExpectedNextVersion uint64 `json:"expected_next_version"`
	RequestID           string `json:"request_id" binding:"required"`
	Sequence            uint64 `json:"sequence"`
	SourceRef           string `json:"source_ref"`
}

type ApplyResponse struct {
	Outcome string `json:"outcome"`
	Version uint64 `json:"version"`
	Detail  string `json:"detail,omitempty"`
}

// ApplyWrite godoc
// @Summary     Push one position update into the cache
// @Description Applies a versioned, idempotent write attempt. Rejections
// @Description (duplicate, stale version, out of order) are reported in the
// @Description outcome, not as HTTP errors: they are the protocol working.
// @Tags        cache
// @Accept      json
// @Produce     json
// @Success     200 {object} ApplyResponse
// @Router      /v1/cache/apply [post]
func (route *CacheRoute) ApplyWrite(reqCtx *gin.Context) {
	ctx := reqCtx.Request.Context()

	var req ApplyRequest
	if err := reqCtx.ShouldBindJSON(&req); err != nil {
		reqCtx.AbortWithStatusJSON(http.StatusBadRequest, responses.ErrorResponse{
			Code:  "7f33d1a2-9c44-4b61-8a0e-d2f5c6b7a801",
			Error: err.Error(),
		})
		return
	}

	viewTarget, err := route.targetResolver.Resolve(ctx, req.Subject, req.Asset)
	if err != nil {
		// the push cannot reach a store; record the failure durably and let
		// the caller continue; its own operation must not fail on us
		route.recordSignal(ctx, req, target.UnknownTarget, retryjob.ReasonTargetUnresolved, err.Error())
		reqCtx.AbortWithStatusJSON(http.StatusBadGateway, responses.ErrorResponse{
			Code:  "0b5e2c4d-3f6a-4871-9e2b-8c1d0a9f7e63",
			Error: "view target unresolved, failure signal recorded",
		})
		return
	}

	result, err := route.positionService.Apply(ctx, position.WriteAttempt{
		Subject:             req.Subject,
		Asset:               req.Asset,
		ViewTarget:          viewTarget,
		Collateral:          req.Collateral,
		Debt:                req.Debt,
		ExpectedNextVersion: req.ExpectedNextVersion,
		RequestID:           req.RequestID,
		Sequence:            req.Sequence,
		SourceRef:           req.SourceRef,
	})
	if err != nil {
		logger.GetLogger().Errorf("cache apply failed for (%s, %s): %v", req.Subject, req.Asset, err)
		route.recordSignal(ctx, req, viewTarget, retryjob.ReasonWriteUnavailable, err.Error())
		reqCtx.AbortWithStatusJSON(http.StatusServiceUnavailable, responses.ErrorResponse{
			Code:  "4e8f1b6c-2d3a-4590-b7c8-9a0e1f2d3c45",
			Error: "cache store unavailable, failure signal recorded",
		})
		return
	}

	reqCtx.JSON(http.StatusOK, ApplyResponse{
		Outcome: string(result.Outcome),
		Version: result.Version,
		Detail:  result.Detail,
	})
}

func (route *CacheRoute) recordSignal(ctx context.Context, req ApplyRequest, viewTarget string, reason retryjob.ReasonCode, detail string) {
	sourceRef := req.SourceRef
	if sourceRef == "" {
		sourceRef = req.RequestID
	}
	if _, err := route.failureService.Record(ctx, failure.Signal{
		Subject:             req.Subject,
		Asset:               req.Asset,
		ViewTarget:          viewTarget,
		AttemptedCollateral: req.Collateral,
		AttemptedDebt:       req.Debt,
		ReasonCode:          reason,
		ReasonDetail:        detail,
		SourceRef:           sourceRef,
	}); err != nil {
		logger.GetLogger().Errorf("failure signal intake failed for (%s, %s): %v", req.Subject, req.Asset, err)
	}
}

type EntryResponse struct {
	Subject              string    `json:"subject"`
	Asset                string    `json:"asset"`
	ViewTarget           string    `json:"view_target"`
	Collateral           string    `json:"collateral"`
	Debt                 string    `json:"debt"`
	Version              uint64    `json:"version"`
	LastConfirmedVersion uint64    `json:"last_confirmed_version"`
	PendingCorrection    bool      `json:"pending_correction"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// GetEntry godoc
// @Summary     Read the cached position for a key
// @Description Returns the latest locally-known snapshot. The value may lag
// @Description the ledger; pending_correction indicates a retry in flight.
// @Tags        cache
// @Produce     json
// @Success     200 {object} responses.GeneralResponse[EntryResponse]
// @Router      /v1/cache/entries/{subject}/{asset} [get]
func (route *CacheRoute) GetEntry(reqCtx *gin.Context) {
	ctx := reqCtx.Request.Context()
	subject := reqCtx.Param("subject")
	asset := reqCtx.Param("asset")
	viewTarget, err := route.targetResolver.Resolve(ctx, subject, asset)
	if err != nil {
		reqCtx.AbortWithStatusJSON(http.StatusBadGateway, responses.ErrorResponse{
			Code:  "9d2c7e0f-1a4b-4836-8c5d-6e7f8a9b0c1d",
			Error: "view target unresolved",
		})
		return
	}

	view, err := route.positionService.ReadCache(ctx, subject, asset, viewTarget)
	if err != nil {
		reqCtx.AbortWithStatusJSON(http.StatusInternalServerError, responses.ErrorResponse{
			Code:  "5a6b7c8d-9e0f-4123-a4b5-c6d7e8f90a1b",
			Error: "cache read failed",
		})
		return
	}
	if view == nil {
		reqCtx.AbortWithStatusJSON(http.StatusNotFound, responses.ErrorResponse{
			Code:  "2f3e4d5c-6b7a-4890-91e2-d3c4b5a69788",
			Error: "no cache entry for key",
		})
		return
	}

	entry := view.Entry
	reqCtx.JSON(http.StatusOK, responses.GeneralResponse[EntryResponse]{
		Status: responses.StatusOk,
		Result: EntryResponse{
			Subject:              entry.Subject,
			Asset:                entry.Asset,
			ViewTarget:           entry.ViewTarget,
			Collateral:           entry.Collateral,
			Debt:                 entry.Debt,
			Version:              entry.Version,
			LastConfirmedVersion: view.LastConfirmedVersion,
			PendingCorrection:    view.PendingCorrection,
			UpdatedAt:            entry.UpdatedAt,
		},
	})
}

type FailureRequest struct {
	Subject             string `json:"subject" binding:"required"`
	Asset               string `json:"asset" binding:"required"`
	ViewTarget          string `json:"view_target"`
	AttemptedCollateral string `json:"attempted_collateral"`
	AttemptedDebt       string `json:"attempted_debt"`
	ReasonCode          string `json:"reason_code"`
	ReasonDetail        string `json:"reason_detail"`
	SourceRef           string `json:"source_ref" binding:"required"`
}

type FailureResponse struct {
	JobID            string `json:"job_id"`
	Status           string `json:"status"`
	DuplicateSignals int    `json:"duplicate_signals"`
}

// RecordFailure godoc
// @Summary     Record a failure signal for a push that never landed
// @Description Enqueues corrective work idempotently: a repeated signal for
// @Description the same source_ref folds into the existing job.
// @Tags        cache
// @Accept      json
// @Produce     json
// @Success     202 {object} responses.GeneralResponse[FailureResponse]
// @Router      /v1/cache/failures [post]
func (route *CacheRoute) RecordFailure(reqCtx *gin.Context) {
	ctx := reqCtx.Request.Context()

	var req FailureRequest
	if err := reqCtx.ShouldBindJSON(&req); err != nil {
		reqCtx.AbortWithStatusJSON(http.StatusBadRequest, responses.ErrorResponse{
			Code:  "8c9d0e1f-2a3b-4c5d-86e7-f8a9b0c1d2e3",
			Error: err.Error(),
		})
		return
	}

	job, err := route.failureService.Record(ctx, failure.Signal{
		Subject:             req.Subject,
		Asset:               req.Asset,
		ViewTarget:          req.ViewTarget,
		AttemptedCollateral: req.AttemptedCollateral,
		AttemptedDebt:       req.AttemptedDebt,
		ReasonCode:          retryjob.ReasonCode(req.ReasonCode),
		ReasonDetail:        req.ReasonDetail,
		SourceRef:           req.SourceRef,
	})
	if err != nil {
		reqCtx.AbortWithStatusJSON(http.StatusBadRequest, responses.ErrorResponse{
			Code:  "6e5d4c3b-2a19-4087-b6c5-d4e3f2a1b0c9",
			Error: err.Error(),
		})
		return
	}

	reqCtx.JSON(http.StatusAccepted, responses.GeneralResponse[FailureResponse]{
		Status: responses.StatusOk,
		Result: FailureResponse{
			JobID:            job.PublicID,
			Status:           string(job.Status),
			DuplicateSignals: job.DuplicateSignals,
		},
	})
}
