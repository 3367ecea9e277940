package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mileusna/crontab"

	"openlend.ai/position-cache/app/domain/lease"
	"openlend.ai/position-cache/app/domain/ledger"
	"openlend.ai/position-cache/app/domain/position"
	"openlend.ai/position-cache/app/domain/retryjob"
	"openlend.ai/position-cache/app/utils/idgen"
	"openlend.ai/position-cache/app/utils/logger"
	"openlend.ai/position-cache/config/environment_variables"
)

// JobQueue is the slice of the retry-job service the worker drives.
type JobQueue interface {
	DueJobs(ctx context.Context, limit int) ([]*retryjob.Job, error)
	MarkLeased(ctx context.Context, job *retryjob.Job, actor string) error
	MarkRetrying(ctx context.Context, job *retryjob.Job, actor string) error
	ReleaseUnattempted(ctx context.Context, job *retryjob.Job, actor string) error
	CompleteSuccess(ctx context.Context, job *retryjob.Job, actor, detail string) error
	FailAttempt(ctx context.Context, job *retryjob.Job, actor, detail string) (retryjob.Status, error)
	Deadletter(ctx context.Context, job *retryjob.Job, actor, detail string) error
	CountByStatus(ctx context.Context) (map[retryjob.Status]int64, error)
	RecoverStuck(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

// CacheApplier is the slice of the versioned cache store the worker needs.
type CacheApplier interface {
	Apply(ctx context.Context, attempt position.WriteAttempt) (position.ApplyResult, error)
	CurrentVersion(ctx context.Context, subject, asset, viewTarget string) (uint64, error)
}

type Config struct {
	Workers      int
	PollInterval time.Duration
	BatchSize    int
	LeaseTTL     time.Duration
}

// Pool runs the corrective loop: pull due jobs, lease their keys, re-read the
// ledger, re-attempt the cache write, and map the outcome back onto the job
// state machine. Failures stay contained per job; one broken job never blocks
// the rest of the queue.
type Pool struct {
	queue     JobQueue
	positions CacheApplier
	ledger    ledger.Reader
	leases    lease.Coordinator
	config    Config
	holder    string

	wg sync.WaitGroup
}

func NewPool(queue JobQueue, positions CacheApplier, reader ledger.Reader, leases lease.Coordinator, config Config) *Pool {
	holder := environment_variables.EnvironmentVariables.INSTANCE_NAME
	if holder == "" {
		if generated, err := idgen.GenerateSecureID("wrk", 12); err == nil {
			holder = generated
		} else {
			holder = "wrk_local"
		}
	}
	return &Pool{
		queue:     queue,
		positions: positions,
		ledger:    reader,
		leases:    leases,
		config:    config,
		holder:    holder,
	}
}

// Start launches the worker goroutines. They stop when ctx is cancelled;
// Wait blocks until they drained.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.config.Workers; i++ {
		p.wg.Add(1)
		go p.runLoop(ctx, fmt.Sprintf("%s/worker-%d", p.holder, i))
	}
	logger.GetLogger().
		WithField("workers", p.config.Workers).
		WithField("poll_interval", p.config.PollInterval.String()).
		Info("retry worker pool started")
}

func (p *Pool) Wait() {
	p.wg.Wait()
}

// StartCron registers the periodic stuck-job sweep, the queue-health log line
// and the env reload.
func (p *Pool) StartCron(ctx context.Context, ctab *crontab.Crontab) {
	ctab.AddJob("* * * * *", func() {
		p.recoverStuckJobs(ctx)
		p.logQueueHealth(ctx)
		environment_variables.EnvironmentVariables.LoadFromEnv()
	})
}

// recoverStuckJobs returns in-flight jobs abandoned by a crashed worker to
// pending once their lease TTL has passed.
func (p *Pool) recoverStuckJobs(ctx context.Context) {
	recovered, err := p.queue.RecoverStuck(ctx, p.config.LeaseTTL, p.config.BatchSize)
	if err != nil {
		logger.GetLogger().Warnf("worker: stuck-job sweep failed: %v", err)
		return
	}
	if recovered > 0 {
		logger.GetLogger().
			WithField("requeued", recovered).
			Warn("requeued in-flight jobs with expired leases")
	}
}

func (p *Pool) runLoop(ctx context.Context, actor string) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runCycle(ctx, actor)
		}
	}
}

func (p *Pool) runCycle(ctx context.Context, actor string) {
	jobs, err := p.queue.DueJobs(ctx, p.config.BatchSize)
	if err != nil {
		logger.GetLogger().Errorf("worker %s: due-job poll failed: %v", actor, err)
		return
	}
	for _, job := range jobs {
		if ctx.Err() != nil {
			return
		}
		p.processJob(ctx, job, actor)
	}
}

// processJob executes one pending -> retrying -> (succeeded|pending|deadletter)
// cycle for a job. The lease guarantees no other worker is correcting the same
// key; the mandatory ledger re-read guarantees the retry never replays values
// captured at failure time.
func (p *Pool) processJob(ctx context.Context, job *retryjob.Job, actor string) {
	if !job.Due(time.Now()) {
		return
	}

	key := lease.Key{Subject: job.Subject, Asset: job.Asset, ViewTarget: job.ViewTarget}
	l, err := p.leases.Acquire(ctx, key, actor, p.config.LeaseTTL)
	if err != nil {
		if errors.Is(err, lease.ErrHeld) {
			return // another worker owns this key right now
		}
		logger.GetLogger().Errorf("worker %s: lease acquire failed for %s: %v", actor, key, err)
		return
	}
	defer func() {
		if err := p.leases.Release(ctx, l); err != nil {
			logger.GetLogger().Warnf("worker %s: lease release failed for %s: %v", actor, key, err)
		}
	}()

	if err := p.queue.MarkLeased(ctx, job, actor); err != nil {
		logger.GetLogger().Errorf("worker %s: job %s lease transition failed: %v", actor, job.PublicID, err)
		return
	}
	if err := p.queue.MarkRetrying(ctx, job, actor); err != nil {
		logger.GetLogger().Errorf("worker %s: job %s retry transition failed: %v", actor, job.PublicID, err)
		// no attempt reached the store; hand the job back rather than leaving
		// it parked in leased until the sweep finds it
		if err := p.queue.ReleaseUnattempted(ctx, job, actor); err != nil {
			logger.GetLogger().Warnf("worker %s: job %s release failed: %v", actor, job.PublicID, err)
		}
		return
	}

	p.attempt(ctx, job, actor)
}

func (p *Pool) attempt(ctx context.Context, job *retryjob.Job, actor string) {
	balances, err := p.ledger.ReadBalances(ctx, job.Subject, job.Asset)
	if err != nil {
		p.failAttempt(ctx, job, actor, fmt.Sprintf("ledger read failed: %v", err))
		return
	}

	currentVersion, err := p.positions.CurrentVersion(ctx, job.Subject, job.Asset, job.ViewTarget)
	if err != nil {
		p.failAttempt(ctx, job, actor, fmt.Sprintf("cache version read failed: %v", err))
		return
	}

	// The request ID is scoped to this retry attempt, not to the original
	// failed push: the re-read balances are a distinct logical update and must
	// not collide with the idempotency record of any earlier write.
	attempt := position.WriteAttempt{
		Subject:             job.Subject,
		Asset:               job.Asset,
		ViewTarget:          job.ViewTarget,
		Collateral:          balances.Collateral,
		Debt:                balances.Debt,
		ExpectedNextVersion: currentVersion + 1,
		RequestID:           fmt.Sprintf("retry_%s_%d", job.PublicID, job.Attempts+1),
		SourceRef:           job.SourceRef,
	}

	result, err := p.positions.Apply(ctx, attempt)
	if err != nil {
		p.failAttempt(ctx, job, actor, fmt.Sprintf("apply failed: %v", err))
		return
	}

	switch {
	case result.Settled():
		detail := fmt.Sprintf("cache at version %d", result.Version)
		if err := p.queue.CompleteSuccess(ctx, job, actor, detail); err != nil {
			logger.GetLogger().Errorf("worker %s: job %s success transition failed: %v", actor, job.PublicID, err)
		}
	case result.Outcome == position.OutcomeInvalid:
		// malformed input cannot heal with time; retrying has no value
		if err := p.queue.Deadletter(ctx, job, actor, fmt.Sprintf("invalid attempt: %s", result.Detail)); err != nil {
			logger.GetLogger().Errorf("worker %s: job %s deadletter transition failed: %v", actor, job.PublicID, err)
		}
	default:
		// stale or out-of-order: another writer advanced the key between our
		// reads; back off and rebuild the attempt from fresh reads next cycle
		p.failAttempt(ctx, job, actor, fmt.Sprintf("%s: %s", result.Outcome, result.Detail))
	}
}

func (p *Pool) failAttempt(ctx context.Context, job *retryjob.Job, actor, detail string) {
	status, err := p.queue.FailAttempt(ctx, job, actor, detail)
	if err != nil {
		logger.GetLogger().Errorf("worker: job %s failure transition failed: %v", job.PublicID, err)
		return
	}
	if status == retryjob.StatusDeadletter {
		logger.GetLogger().
			WithField("job_id", job.PublicID).
			WithField("subject", job.Subject).
			WithField("asset", job.Asset).
			Error("retry exhausted, job dead-lettered")
	}
}

func (p *Pool) logQueueHealth(ctx context.Context) {
	counts, err := p.queue.CountByStatus(ctx)
	if err != nil {
		logger.GetLogger().Warnf("worker: queue health poll failed: %v", err)
		return
	}
	log := logger.GetLogger().WithField("component", "retry-queue")
	for status, n := range counts {
		log = log.WithField(string(status), n)
	}
	log.Info("queue depth")
}
