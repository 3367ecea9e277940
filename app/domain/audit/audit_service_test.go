package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"openlend.ai/position-cache/app/domain/query"
	"openlend.ai/position-cache/app/domain/retryjob"
)

type fakeAuditRepo struct {
	records   []*Record
	appendErr error
}

func (r *fakeAuditRepo) Append(ctx context.Context, record *Record) error {
	if r.appendErr != nil {
		return r.appendErr
	}
	r.records = append(r.records, record)
	return nil
}

func (r *fakeAuditRepo) FindByFilter(ctx context.Context, filter Filter, pagination *query.Pagination) ([]*Record, error) {
	return r.records, nil
}

func (r *fakeAuditRepo) Count(ctx context.Context, filter Filter) (int64, error) {
	return int64(len(r.records)), nil
}

func (r *fakeAuditRepo) CountByAction(ctx context.Context, since time.Time) (map[string]int64, error) {
	out := make(map[string]int64)
	for _, record := range r.records {
		out[record.Action]++
	}
	return out, nil
}

type fakeQueueStats struct {
	byStatus map[retryjob.Status]int64
	oldest   *time.Time
	mttr     float64
}

func (q *fakeQueueStats) CountByStatus(ctx context.Context) (map[retryjob.Status]int64, error) {
	return q.byStatus, nil
}

func (q *fakeQueueStats) OldestPendingCreatedAt(ctx context.Context) (*time.Time, error) {
	return q.oldest, nil
}

func (q *fakeQueueStats) AverageRepairSeconds(ctx context.Context) (float64, error) {
	return q.mttr, nil
}

func TestRecordWriteAppends(t *testing.T) {
	repo := &fakeAuditRepo{}
	service := NewService(repo, &fakeQueueStats{})

	service.RecordWrite(context.Background(), "acct-1", "usdc", "primary", "applied", "write-path", 2, 3, "")
	require.Len(t, repo.records, 1)
	record := repo.records[0]
	assert.Nil(t, record.JobPublicID)
	assert.Equal(t, "applied", record.Action)
	assert.Equal(t, uint64(2), record.BeforeVersion)
	assert.Equal(t, uint64(3), record.AfterVersion)
}

func TestRecordJobCarriesJobID(t *testing.T) {
	repo := &fakeAuditRepo{}
	service := NewService(repo, &fakeQueueStats{})

	service.RecordJob(context.Background(), "job_abc", "acct-1", "usdc", "primary", "deadlettered", "worker-1", "retry exhausted")
	require.Len(t, repo.records, 1)
	require.NotNil(t, repo.records[0].JobPublicID)
	assert.Equal(t, "job_abc", *repo.records[0].JobPublicID)
}

func TestAppendFailureDoesNotPanicOrPropagate(t *testing.T) {
	repo := &fakeAuditRepo{appendErr: errors.New("db down")}
	service := NewService(repo, &fakeQueueStats{})

	assert.NotPanics(t, func() {
		service.RecordWrite(context.Background(), "acct-1", "usdc", "primary", "applied", "write-path", 0, 1, "")
	})
}

func TestMetrics(t *testing.T) {
	repo := &fakeAuditRepo{}
	service := NewService(repo, &fakeQueueStats{
		byStatus: map[retryjob.Status]int64{
			retryjob.StatusPending:    6,
			retryjob.StatusSucceeded:  10,
			retryjob.StatusDeadletter: 4,
		},
		mttr: 42.5,
	})

	service.RecordWrite(context.Background(), "acct-1", "usdc", "primary", "applied", "write-path", 0, 1, "")
	service.RecordWrite(context.Background(), "acct-1", "usdc", "primary", "applied", "write-path", 1, 2, "")
	service.RecordWrite(context.Background(), "acct-1", "usdc", "primary", "rejected-stale-version", "write-path", 2, 2, "")

	metrics, err := service.Metrics(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), metrics.ActionCounts["applied"])
	assert.Equal(t, int64(1), metrics.ActionCounts["rejected-stale-version"])
	assert.Equal(t, int64(6), metrics.QueueDepth["pending"])
	assert.InDelta(t, 0.2, metrics.DeadletterRate, 1e-9)
	assert.Equal(t, 42.5, metrics.MeanTimeToRepair)
	assert.Nil(t, metrics.OldestPendingAge)
}

func TestMetricsOldestPendingAge(t *testing.T) {
	created := time.Now().Add(-90 * time.Second)
	service := NewService(&fakeAuditRepo{}, &fakeQueueStats{
		byStatus: map[retryjob.Status]int64{retryjob.StatusPending: 1},
		oldest:   &created,
	})

	metrics, err := service.Metrics(context.Background(), time.Hour)
	require.NoError(t, err)
	require.NotNil(t, metrics.OldestPendingAge)
	assert.InDelta(t, 90, *metrics.OldestPendingAge, 5)
}

func TestMetricsEmptyQueue(t *testing.T) {
	service := NewService(&fakeAuditRepo{}, &fakeQueueStats{byStatus: map[retryjob.Status]int64{}})

	metrics, err := service.Metrics(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Zero(t, metrics.DeadletterRate)
}
