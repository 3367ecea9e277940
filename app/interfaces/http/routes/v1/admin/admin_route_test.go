package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"openlend.ai/position-cache/app/domain/audit"
	"openlend.ai/position-cache/app/domain/query"
	"openlend.ai/position-cache/app/domain/retryjob"
	"openlend.ai/position-cache/config/environment_variables"
)

const testAdminKey = "test-admin-secret"

type memJobRepo struct {
	jobs map[string]*retryjob.Job
}

func (r *memJobRepo) Create(ctx context.Context, job *retryjob.Job) error {
	clone := *job
	r.jobs[job.PublicID] = &clone
	return nil
}

func (r *memJobRepo) Update(ctx context.Context, job *retryjob.Job) error {
	clone := *job
	r.jobs[job.PublicID] = &clone
	return nil
}

func (r *memJobRepo) FindByPublicID(ctx context.Context, publicID string) (*retryjob.Job, error) {
	job, ok := r.jobs[publicID]
	if !ok {
		return nil, retryjob.ErrNotFound
	}
	clone := *job
	return &clone, nil
}

func (r *memJobRepo) FindByFilter(ctx context.Context, filter retryjob.Filter, pagination *query.Pagination) ([]*retryjob.Job, error) {
	var out []*retryjob.Job
	for _, job := range r.jobs {
		if filter.Status != nil && job.Status != *filter.Status {
			continue
		}
		clone := *job
		out = append(out, &clone)
	}
	return out, nil
}

func (r *memJobRepo) Count(ctx context.Context, filter retryjob.Filter) (int64, error) {
	jobs, _ := r.FindByFilter(ctx, filter, nil)
	return int64(len(jobs)), nil
}

func (r *memJobRepo) FindDue(ctx context.Context, status retryjob.Status, now time.Time, limit int) ([]*retryjob.Job, error) {
	return nil, nil
}

func (r *memJobRepo) FindStaleInFlight(ctx context.Context, olderThan time.Time, limit int) ([]*retryjob.Job, error) {
	return nil, nil
}

func (r *memJobRepo) CountOpenForKey(ctx context.Context, subject, asset, viewTarget string) (int64, error) {
	return 0, nil
}

func (r *memJobRepo) CountByStatus(ctx context.Context) (map[retryjob.Status]int64, error) {
	out := make(map[retryjob.Status]int64)
	for _, job := range r.jobs {
		out[job.Status]++
	}
	return out, nil
}

func (r *memJobRepo) OldestPendingCreatedAt(ctx context.Context) (*time.Time, error) {
	return nil, nil
}

func (r *memJobRepo) AverageRepairSeconds(ctx context.Context) (float64, error) {
	return 0, nil
}

type memAuditRepo struct {
	records []*audit.Record
}

func (r *memAuditRepo) Append(ctx context.Context, record *audit.Record) error {
	r.records = append(r.records, record)
	return nil
}

func (r *memAuditRepo) FindByFilter(ctx context.Context, filter audit.Filter, pagination *query.Pagination) ([]*audit.Record, error) {
	return r.records, nil
}

func (r *memAuditRepo) Count(ctx context.Context, filter audit.Filter) (int64, error) {
	return int64(len(r.records)), nil
}

func (r *memAuditRepo) CountByAction(ctx context.Context, from time.Time) (map[string]int64, error) {
	out := make(map[string]int64)
	for _, record := range r.records {
		out[record.Action]++
	}
	return out, nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *retryjob.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	environment_variables.EnvironmentVariables.ADMIN_API_SECRET = testAdminKey

	jobRepo := &memJobRepo{jobs: make(map[string]*retryjob.Job)}
	auditService := audit.NewService(&memAuditRepo{}, jobRepo)
	retryJobService := retryjob.NewService(jobRepo, auditService, retryjob.ServiceConfig{
		MaxAttempts: 3,
		Backoff:     retryjob.Backoff{Base: time.Minute, Max: time.Hour},
	})

	engine := gin.New()
	NewAdminRoute(retryJobService, auditService).RegisterRouter(engine.Group("/v1"))
	return engine, retryJobService
}

func doRequest(router *gin.Engine, method, path string, body []byte, withKey bool) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if withKey {
		req.Header.Set("X-Admin-Key", testAdminKey)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func enqueueTestJob(t *testing.T, service *retryjob.Service) *retryjob.Job {
	t.Helper()
	job, _, err := service.Enqueue(context.Background(), retryjob.EnqueueParams{
		Subject:    "acct-1",
		Asset:      "usdc",
		ViewTarget: "primary",
		ReasonCode: retryjob.ReasonWriteUnavailable,
		SourceRef:  "push-42",
	})
	require.NoError(t, err)
	return job
}

func TestAdminEndpointsRequireKey(t *testing.T) {
	router, _ := newTestRouter(t)

	recorder := doRequest(router, http.MethodGet, "/v1/admin/jobs", nil, false)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestListJobs(t *testing.T) {
	router, service := newTestRouter(t)
	enqueueTestJob(t, service)

	recorder := doRequest(router, http.MethodGet, "/v1/admin/jobs?status=pending", nil, true)
	require.Equal(t, http.StatusOK, recorder.Code)
	var resp struct {
		Total   int64         `json:"total"`
		Results []JobResponse `json:"results"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Total)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "pending", resp.Results[0].Status)
	assert.Equal(t, "acct-1", resp.Results[0].Subject)
}

func TestIgnoreJob(t *testing.T) {
	router, service := newTestRouter(t)
	job := enqueueTestJob(t, service)

	body, _ := json.Marshal(map[string]string{"note": "known discrepancy"})
	recorder := doRequest(router, http.MethodPost, "/v1/admin/jobs/"+job.PublicID+"/ignore", body, true)
	require.Equal(t, http.StatusOK, recorder.Code)
	var resp struct {
		Result JobResponse `json:"result"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, "ignored", resp.Result.Status)
	assert.Equal(t, "known discrepancy", resp.Result.Note)

	// ignoring a settled job conflicts
	recorder = doRequest(router, http.MethodPost, "/v1/admin/jobs/"+job.PublicID+"/ignore", nil, true)
	assert.Equal(t, http.StatusConflict, recorder.Code)
}

func TestReplayJob(t *testing.T) {
	router, service := newTestRouter(t)
	job := enqueueTestJob(t, service)

	// replay requires deadletter
	recorder := doRequest(router, http.MethodPost, "/v1/admin/jobs/"+job.PublicID+"/replay", nil, true)
	assert.Equal(t, http.StatusConflict, recorder.Code)

	ctx := context.Background()
	require.NoError(t, service.MarkLeased(ctx, job, "test-worker"))
	require.NoError(t, service.MarkRetrying(ctx, job, "test-worker"))
	require.NoError(t, service.Deadletter(ctx, job, "test-worker", "malformed"))

	recorder = doRequest(router, http.MethodPost, "/v1/admin/jobs/"+job.PublicID+"/replay", nil, true)
	require.Equal(t, http.StatusOK, recorder.Code)
	var resp struct {
		Result JobResponse `json:"result"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, "pending", resp.Result.Status)
	assert.Equal(t, 0, resp.Result.Attempts)
}

func TestForceRetryUnknownJob(t *testing.T) {
	router, _ := newTestRouter(t)
	recorder := doRequest(router, http.MethodPost, "/v1/admin/jobs/job_missing/retry", nil, true)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestJobEndpointsRejectMalformedID(t *testing.T) {
	router, _ := newTestRouter(t)

	recorder := doRequest(router, http.MethodGet, "/v1/admin/jobs/wrk_abc123", nil, true)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = doRequest(router, http.MethodPost, "/v1/admin/jobs/not-a-job/retry", nil, true)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	router, service := newTestRouter(t)
	enqueueTestJob(t, service)

	recorder := doRequest(router, http.MethodGet, "/v1/admin/metrics", nil, true)
	require.Equal(t, http.StatusOK, recorder.Code)
	var resp struct {
		Result audit.Metrics `json:"result"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Result.QueueDepth["pending"])
	assert.Equal(t, int64(1), resp.Result.ActionCounts["enqueued"])
}

func TestAuditEndpoint(t *testing.T) {
	router, service := newTestRouter(t)
	enqueueTestJob(t, service)

	recorder := doRequest(router, http.MethodGet, "/v1/admin/audit", nil, true)
	require.Equal(t, http.StatusOK, recorder.Code)
	var resp struct {
		Total   int64                 `json:"total"`
		Results []AuditRecordResponse `json:"results"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	require.Equal(t, int64(1), resp.Total)
	assert.Equal(t, "enqueued", resp.Results[0].Action)
	require.NotNil(t, resp.Results[0].JobID)
}
