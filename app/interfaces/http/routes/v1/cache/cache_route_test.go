package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"openlend.ai/position-cache/app/domain/failure"
	"openlend.ai/position-cache/app/domain/position"
	"openlend.ai/position-cache/app/domain/retryjob"
	"openlend.ai/position-cache/app/domain/target"
)

type memPositionRepo struct {
	entries map[string]*position.Entry
}

func (r *memPositionRepo) key(subject, asset, viewTarget string) string {
	return subject + "|" + asset + "|" + viewTarget
}

func (r *memPositionRepo) FindByKey(ctx context.Context, subject, asset, viewTarget string) (*position.Entry, error) {
	entry, ok := r.entries[r.key(subject, asset, viewTarget)]
	if !ok {
		return nil, nil
	}
	clone := *entry
	return &clone, nil
}

func (r *memPositionRepo) Create(ctx context.Context, entry *position.Entry) error {
	key := r.key(entry.Subject, entry.Asset, entry.ViewTarget)
	if _, ok := r.entries[key]; ok {
		return position.ErrConflict
	}
	clone := *entry
	r.entries[key] = &clone
	return nil
}

func (r *memPositionRepo) UpdateVersioned(ctx context.Context, entry *position.Entry, expectedVersion uint64) error {
	key := r.key(entry.Subject, entry.Asset, entry.ViewTarget)
	stored, ok := r.entries[key]
	if !ok || stored.Version != expectedVersion {
		return position.ErrConflict
	}
	clone := *entry
	r.entries[key] = &clone
	return nil
}

type memEnqueuer struct {
	jobs map[string]*retryjob.Job
}

func (e *memEnqueuer) Enqueue(ctx context.Context, params retryjob.EnqueueParams) (*retryjob.Job, bool, error) {
	key := params.ViewTarget + "|" + params.SourceRef
	if job, ok := e.jobs[key]; ok {
		job.DuplicateSignals++
		return job, false, nil
	}
	job := &retryjob.Job{
		PublicID:   "job_" + params.SourceRef,
		Subject:    params.Subject,
		Asset:      params.Asset,
		ViewTarget: params.ViewTarget,
		ReasonCode: params.ReasonCode,
		SourceRef:  params.SourceRef,
		Status:     retryjob.StatusPending,
	}
	e.jobs[key] = job
	return job, true, nil
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	repo := &memPositionRepo{entries: make(map[string]*position.Entry)}
	positionService := position.NewService(repo, nil, nil, nil, position.ServiceConfig{})
	failureService := failure.NewService(&memEnqueuer{jobs: make(map[string]*retryjob.Job)})
	route := NewCacheRoute(positionService, failureService, target.NewStaticResolver("primary"))

	engine := gin.New()
	route.RegisterRouter(engine.Group("/v1"))
	return engine
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func applyBody(requestID string, expectedNext uint64) map[string]any {
	return map[string]any{
		"subject":               "acct-1",
		"asset":                 "usdc",
		"collateral":            "100",
		"debt":                  "40",
		"expected_next_version": expectedNext,
		"request_id":            requestID,
	}
}

func TestApplyEndpoint(t *testing.T) {
	router := newTestRouter()

	recorder := postJSON(t, router, "/v1/cache/apply", applyBody("req-1", 1))
	require.Equal(t, http.StatusOK, recorder.Code)
	var resp ApplyResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, "applied", resp.Outcome)
	assert.Equal(t, uint64(1), resp.Version)

	// redelivery of the same request is reported, not applied twice
	recorder = postJSON(t, router, "/v1/cache/apply", applyBody("req-1", 1))
	require.Equal(t, http.StatusOK, recorder.Code)
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, "duplicate", resp.Outcome)
	assert.Equal(t, uint64(1), resp.Version)

	// stale expectation is a 200 with the rejection in the body
	recorder = postJSON(t, router, "/v1/cache/apply", applyBody("req-2", 9))
	require.Equal(t, http.StatusOK, recorder.Code)
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, "stale_version", resp.Outcome)
}

func TestApplyEndpointRejectsMissingFields(t *testing.T) {
	router := newTestRouter()
	recorder := postJSON(t, router, "/v1/cache/apply", map[string]any{"subject": "acct-1"})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestGetEntryEndpoint(t *testing.T) {
	router := newTestRouter()

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/v1/cache/entries/acct-1/usdc", nil))
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	postJSON(t, router, "/v1/cache/apply", applyBody("req-1", 1))

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/v1/cache/entries/acct-1/usdc", nil))
	require.Equal(t, http.StatusOK, recorder.Code)
	var resp struct {
		Result EntryResponse `json:"result"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, "100", resp.Result.Collateral)
	assert.Equal(t, uint64(1), resp.Result.Version)
	assert.Equal(t, "primary", resp.Result.ViewTarget)
	assert.False(t, resp.Result.PendingCorrection)
}

func TestRecordFailureEndpoint(t *testing.T) {
	router := newTestRouter()

	body := map[string]any{
		"subject":     "acct-1",
		"asset":       "usdc",
		"view_target": "primary",
		"reason_code": "write-unavailable",
		"source_ref":  "push-42",
	}
	recorder := postJSON(t, router, "/v1/cache/failures", body)
	require.Equal(t, http.StatusAccepted, recorder.Code)
	var resp struct {
		Result FailureResponse `json:"result"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, "job_push-42", resp.Result.JobID)
	assert.Equal(t, "pending", resp.Result.Status)

	// duplicate signal folds into the same job
	recorder = postJSON(t, router, "/v1/cache/failures", body)
	require.Equal(t, http.StatusAccepted, recorder.Code)
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, "job_push-42", resp.Result.JobID)
	assert.Equal(t, 1, resp.Result.DuplicateSignals)
}

func TestRecordFailureRequiresSourceRef(t *testing.T) {
	router := newTestRouter()
	recorder := postJSON(t, router, "/v1/cache/failures", map[string]any{
		"subject": "acct-1",
		"asset":   "usdc",
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}
