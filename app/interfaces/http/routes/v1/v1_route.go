package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"openlend.ai/position-cache/app/interfaces/http/routes/v1/admin"
	"openlend.ai/position-cache/app/interfaces/http/routes/v1/cache"
	"openlend.ai/position-cache/config"
)

type V1Route struct {
	cacheRoute *cache.CacheRoute
	adminRoute *admin.AdminRoute
}

func NewV1Route(
	cacheRoute *cache.CacheRoute,
	adminRoute *admin.AdminRoute,
) *V1Route {
	return &V1Route{
		cacheRoute,
		adminRoute,
	}
}

func (v1Route *V1Route) RegisterRouter(router gin.IRouter) {
	v1Router := router.Group("/v1")
	v1Router.GET("/version", GetVersion)
	v1Route.cacheRoute.RegisterRouter(v1Router)
	v1Route.adminRoute.RegisterRouter(v1Router)
}

// GetVersion godoc
// @Summary     Get API build version
// @Description Returns the current build version of the API server.
// @Tags        system
// @Produce     json
// @Success     200 {object} map[string]string "version info"
// @Router      /v1/version [get]
func GetVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version": config.Version,
	})
}
