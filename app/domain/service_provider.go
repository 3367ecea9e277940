package domain

import (
	"time"

	"github.com/google/wire"
	"openlend.ai/position-cache/app/domain/audit"
	"openlend.ai/position-cache/app/domain/failure"
	"openlend.ai/position-cache/app/domain/position"
	"openlend.ai/position-cache/app/domain/retryjob"
	"openlend.ai/position-cache/app/domain/target"
	"openlend.ai/position-cache/app/domain/worker"
	"openlend.ai/position-cache/config/environment_variables"
)

func NewPositionServiceConfig() position.ServiceConfig {
	return position.ServiceConfig{
		StrictSequenceCheck: environment_variables.EnvironmentVariables.STRICT_SEQUENCE_CHECK,
	}
}

func NewRetryJobServiceConfig() retryjob.ServiceConfig {
	ev := environment_variables.EnvironmentVariables
	return retryjob.ServiceConfig{
		MaxAttempts: ev.RETRY_MAX_ATTEMPTS,
		Backoff: retryjob.Backoff{
			Base: time.Duration(ev.RETRY_BASE_BACKOFF_SECONDS) * time.Second,
			Max:  time.Duration(ev.RETRY_MAX_BACKOFF_SECONDS) * time.Second,
		},
	}
}

func NewWorkerConfig() worker.Config {
	ev := environment_variables.EnvironmentVariables
	return worker.Config{
		Workers:      ev.WORKER_COUNT,
		PollInterval: time.Duration(ev.WORKER_POLL_INTERVAL_SECONDS) * time.Second,
		BatchSize:    ev.WORKER_BATCH_SIZE,
		LeaseTTL:     time.Duration(ev.LEASE_TTL_SECONDS) * time.Second,
	}
}

func NewTargetResolver() target.Resolver {
	return target.NewStaticResolver(environment_variables.EnvironmentVariables.DEFAULT_VIEW_TARGET)
}

var ServiceProvider = wire.NewSet(
	NewPositionServiceConfig,
	NewRetryJobServiceConfig,
	NewWorkerConfig,
	NewTargetResolver,
	audit.NewService,
	retryjob.NewService,
	position.NewService,
	failure.NewService,
	worker.NewPool,
	wire.Bind(new(audit.QueueStats), new(retryjob.Repository)),
	wire.Bind(new(retryjob.AuditSink), new(*audit.Service)),
	wire.Bind(new(position.AuditSink), new(*audit.Service)),
	wire.Bind(new(position.PendingChecker), new(*retryjob.Service)),
	wire.Bind(new(failure.Enqueuer), new(*retryjob.Service)),
	wire.Bind(new(worker.JobQueue), new(*retryjob.Service)),
	wire.Bind(new(worker.CacheApplier), new(*position.Service)),
)
