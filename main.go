package main

import (
	"context"
	"leica/assetcheck"
	"leica/client/es"
	"leica/client/s3"
	"leica/common"
	"leica/config"
	"leica/domain"
	"leica/domain/flow"
	"leica/domain/fulfillment"
	"leica/domain/order"
	"leica/domain/resource"
	"leica/event"
	"leica/indices"
	"leica/indices/indexlog"
	"leica/infra/tracing"
	"leica/jobs"
	"leica/persistence"
	"leica/servehttp"
	"leica/session"

	"github.com/sirupsen/logrus"
)

func main() {
	logrus.Info("service start")

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load config failed: %v", err)
	}
	common.ConfigureLogLevel(cfg.LogLevel)
	if err := common.InitIDWorker(cfg.MachineID); err != nil {
		logrus.Fatalf("id worker init failed: %v", err)
	}

	closer, err := tracing.Bootstrap(cfg.Tracing.Enabled)
	if err != nil {
		logrus.Fatalf("tracer bootstrap failed: %v", err)
	}
	defer closer.Close()

	// create database (no conflict)
	if cfg.Database.Driver == "mysql" {
		if err := persistence.PrepareMysqlDatabase(cfg.Database.Args); err != nil {
			logrus.Fatalf("failed to prepare database: %v", err)
		}
	}
	ds := &persistence.DataSourceManager{DatabaseConfig: &persistence.DatabaseConfig{
		DriverType: cfg.Database.Driver, DriverArgs: cfg.Database.Args}}
	if err := ds.Start(); err != nil {
		logrus.Fatalf("database connection failed: %v", err)
	}
	defer ds.Stop()
	persistence.ActiveDataSourceManager = ds

	// database migration (race condition)
	err = ds.GormDB(nil).AutoMigrate(&domain.Order{}, &domain.Assignment{}, &domain.Professional{}, &domain.Asset{},
		&domain.Pool{}, &domain.Customer{}, &domain.WorkingLocation{}, &domain.Link{},
		&event.EventRecord{}, &indexlog.IndexLogRecord{}).Error
	if err != nil {
		logrus.Fatalf("database migration failed: %v", err)
	}

	workflows := flow.New(flow.Settings{
		SchedulingLeadDays:     cfg.Workflow.SchedulingLeadDays,
		CancellationWindowDays: cfg.Workflow.CancellationWindowDays,
	})
	clock := common.RealClock{}
	order.Fulfillment = fulfillment.NewService(workflows, clock)
	resource.Workflows, resource.Clock = workflows, clock

	bus := event.NewBus()
	defer bus.Close()
	event.EventHandlers = append(event.EventHandlers, event.PublishingHandler(bus))

	withSearch := cfg.Search.URL != ""
	extraJobs := map[string]func(){}
	if withSearch {
		if _, err := es.CreateClient(cfg.Search.URL); err != nil {
			logrus.Fatalf("search client failed: %v", err)
		}
		event.EventHandlers = append(event.EventHandlers, indices.IndexOrderEventHandle)
		extraJobs[cfg.Jobs.IndexSyncCron] = func() {
			if err := indices.IndicesFullSyncFunc(context.Background()); err != nil {
				logrus.WithError(err).Error("indices full sync aborted")
			}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.OSS.Endpoint != "" {
		if err := s3.Bootstrap(cfg.OSS); err != nil {
			logrus.Fatalf("object storage bootstrap failed: %v", err)
		}
		if err := assetcheck.Start(ctx, bus); err != nil {
			logrus.Fatalf("asset check consumer failed: %v", err)
		}
	}

	if cfg.SystemToken != "" {
		session.RegisterPermanent(cfg.SystemToken, session.System(nil))
	}

	if cfg.Jobs.Enabled {
		crontab, err := jobs.StartCron(cfg.Jobs, cfg.Workflow, extraJobs)
		if err != nil {
			logrus.Fatalf("cron jobs failed: %v", err)
		}
		defer crontab.Stop()
	}

	if err := servehttp.StartHTTPServer(servehttp.BuildEngine(withSearch), cfg.HTTP.Addr); err != nil {
		logrus.Errorf("http server stopped: %v", err)
	}
	logrus.Info("[QUIT] service exiting")
}
