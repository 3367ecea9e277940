package repository

import (
	"github.com/google/wire"

	"openlend.ai/position-cache/app/infrastructure/database/repository/auditrepo"
	"openlend.ai/position-cache/app/infrastructure/database/repository/positionrepo"
	"openlend.ai/position-cache/app/infrastructure/database/repository/retryjobrepo"
)

var RepositoryProvider = wire.NewSet(
	positionrepo.NewPositionGormRepository,
	retryjobrepo.NewRetryJobGormRepository,
	auditrepo.NewAuditGormRepository,
)
