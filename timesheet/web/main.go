package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"piecework.app/piecework/config"
	database "piecework.app/piecework/core"
	"piecework.app/piecework/infrastructure/communication"
	"piecework.app/piecework/infrastructure/devops"
	"piecework.app/piecework/infrastructure/filesystem"
	"piecework.app/piecework/logging"
	"piecework.app/piecework/security"
	"piecework.app/piecework/timesheet/core"
	"piecework.app/piecework/timesheet/repository"
	common "piecework.app/piecework/timesheet/web/common"
)

func main() {
	cfg, err := config.Load(os.Getenv("PIECEWORK_CONFIG"))
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	if cfg.Log.Format != "console" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	problems := cfg.Problems()
	var handler *common.Handler
	if len(problems) == 0 {
		app, err := build(ctx, cfg, logger)
		if err != nil {
			problems = append(problems, err.Error())
		} else {
			defer app.close()
			handler = app.handler
		}
	}
	if len(problems) > 0 {
		logger.Error("starting in degraded mode", zap.Strings("problems", problems))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", cfg.Server.Port),
		Handler:           newRouter(handler, cfg.Server.StaticDir, problems, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdown); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}

type application struct {
	handler *common.Handler
	closers []func()
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// build connects the stores and assembles the services. Optional
// collaborators that fail to connect are logged and left out.
func build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*application, error) {
	app := &application{}

	dsn, err := devops.ResolveDSN(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database settings: %w", err)
	}
	level := database.ParseLogLevel(cfg.Database.LogLevel)
	dm, err := database.New(dsn, cfg.Database.MaxConns, level, logger.Named("db"))
	if err != nil {
		return nil, fmt.Errorf("database unavailable: %w", err)
	}
	app.closers = append(app.closers, func() { _ = dm.Close() })
	repo := repository.New(dm.DB(context.Background()))

	var privileged repository.RecycleBinRepository
	if cfg.Database.PrivilegedDSN != "" {
		pdm, err := database.New(cfg.Database.PrivilegedDSN, 2, level, logger.Named("db.privileged"))
		if err != nil {
			logger.Warn("privileged connection unavailable", zap.Error(err))
		} else {
			app.closers = append(app.closers, func() { _ = pdm.Close() })
			privileged = repository.New(pdm.DB(context.Background())).RecycleBin
		}
	}

	var drafts core.DraftStore
	if cfg.Redis.Addr != "" {
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Warn("redis unavailable, keeping drafts in memory", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
			_ = rdb.Close()
		} else {
			app.closers = append(app.closers, func() { _ = rdb.Close() })
			drafts = core.NewRedisDraftStore(rdb, core.DraftTTL)
		}
	}

	var notifier core.Notifier
	if cfg.Slack.Token != "" {
		slack := communication.NewSlack(cfg.Slack.Token, communication.SlackOption{
			InfoChannelID:  cfg.Slack.InfoChannel,
			ErrorChannelID: cfg.Slack.ErrorChannel,
		})
		if slack.Enabled() {
			notifier = slack
		}
	}

	var archiver core.Archiver
	if cfg.Import.ArchiveBucket != "" {
		s3, err := filesystem.ConnectS3Archiver(ctx, cfg.Import.ArchiveBucket)
		if err != nil {
			logger.Warn("import archive disabled", zap.Error(err))
		} else {
			archiver = s3
		}
	}

	services := core.NewServices(core.Dependencies{
		Repo:       repo,
		Privileged: privileged,
		Drafts:     drafts,
		Archiver:   archiver,
		Notifier:   notifier,
		Auth: core.AuthSettings{
			Secret:          security.DecodeSecret(cfg.Auth.JWTSecret),
			SessionTTL:      cfg.Auth.SessionTTL,
			RevalidateAfter: cfg.Auth.RevalidateAfter,
			QueryTimeout:    cfg.Auth.QueryTimeout,
		},
		Retention: cfg.Recycle.Retention,
		ImportMax: cfg.Import.MaxBytes,
		ChunkSize: cfg.Import.ChunkSize,
	}, logger)

	sweeper := core.NewSweeper(services.RecycleBin, notifier, logger)
	if err := sweeper.Start(cfg.Recycle.SweepSchedule); err != nil {
		app.close()
		return nil, err
	}
	app.closers = append(app.closers, sweeper.Stop)

	app.handler = &common.Handler{Services: services, Logger: logger}
	return app, nil
}
