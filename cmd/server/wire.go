//go:build wireinject

package main

import (
	"github.com/google/wire"
	"openlend.ai/position-cache/app/domain"
	"openlend.ai/position-cache/app/infrastructure"
	"openlend.ai/position-cache/app/infrastructure/database"
	"openlend.ai/position-cache/app/infrastructure/database/repository"
	"openlend.ai/position-cache/app/interfaces/http"
	"openlend.ai/position-cache/app/interfaces/http/routes"
)

func CreateApplication() (*Application, error) {
	wire.Build(
		database.NewDB,
		repository.RepositoryProvider,
		infrastructure.InfrastructureProvider,
		domain.ServiceProvider,
		routes.RouteProvider,
		http.NewHttpServer,
		wire.Struct(new(Application), "*"),
	)
	return nil, nil
}
