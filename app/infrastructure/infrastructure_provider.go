package infrastructure

import (
	"github.com/google/wire"

	ledgerDomain "openlend.ai/position-cache/app/domain/ledger"
	positionDomain "openlend.ai/position-cache/app/domain/position"
	"openlend.ai/position-cache/app/infrastructure/cache"
	"openlend.ai/position-cache/app/infrastructure/lease"
	"openlend.ai/position-cache/app/utils/httpclients/ledgerapi"
)

var InfrastructureProvider = wire.NewSet(
	cache.NewCacheService,
	cache.NewPositionSnapshotCache,
	lease.NewCoordinator,
	ledgerapi.NewLedgerClient,
	wire.Bind(new(ledgerDomain.Reader), new(*ledgerapi.LedgerClient)),
	wire.Bind(new(positionDomain.SnapshotCache), new(*cache.PositionSnapshotCache)),
)
