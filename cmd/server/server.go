package main

import (
	"context"

	"github.com/mileusna/crontab"
	"openlend.ai/position-cache/app/domain/worker"
	"openlend.ai/position-cache/app/interfaces/http"
	"openlend.ai/position-cache/app/utils/httpclients"
	"openlend.ai/position-cache/app/utils/httpclients/ledgerapi"
	"openlend.ai/position-cache/config/environment_variables"
)

type Application struct {
	HttpServer *http.HttpServer
	WorkerPool *worker.Pool
}

func (application *Application) Start(ctx context.Context) {
	application.WorkerPool.Start(ctx)
	if err := application.HttpServer.Run(); err != nil {
		panic(err)
	}
}

func init() {
	environment_variables.EnvironmentVariables.LoadFromEnv()
	httpclients.Init()
	ledgerapi.Init()
}

func main() {
	application, err := CreateApplication()
	if err != nil {
		panic(err)
	}
	cron := crontab.New()
	crontabContext := context.Background()
	application.WorkerPool.StartCron(crontabContext, cron)
	application.Start(crontabContext)
}
