package routes

import (
	"github.com/google/wire"
	v1 "openlend.ai/position-cache/app/interfaces/http/routes/v1"
	"openlend.ai/position-cache/app/interfaces/http/routes/v1/admin"
	"openlend.ai/position-cache/app/interfaces/http/routes/v1/cache"
)

var RouteProvider = wire.NewSet(
	cache.NewCacheRoute,
	admin.NewAdminRoute,
	v1.NewV1Route,
)
