package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"piecework.app/piecework/config"
	database "piecework.app/piecework/core"
	"piecework.app/piecework/infrastructure/communication"
	"piecework.app/piecework/infrastructure/devops"
	"piecework.app/piecework/logging"
	"piecework.app/piecework/timesheet/core"
	"piecework.app/piecework/timesheet/repository"
)

type SweepResult struct {
	Purged int64     `json:"purged"`
	At     time.Time `json:"at"`
}

type sweepHandler struct {
	sweeper *core.Sweeper
	logger  *zap.Logger
}

// Handle runs one sweep per scheduled event.
func (h *sweepHandler) Handle(ctx context.Context, event events.CloudWatchEvent) (SweepResult, error) {
	h.logger.Info("sweep triggered", zap.String("event", event.ID), zap.Strings("resources", event.Resources))
	n, err := h.sweeper.RunOnce(ctx)
	if err != nil {
		return SweepResult{}, err
	}
	return SweepResult{Purged: n, At: time.Now().UTC()}, nil
}

func newHandler(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*sweepHandler, func(), error) {
	dsn, err := devops.ResolveDSN(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	level := database.ParseLogLevel(cfg.Database.LogLevel)
	dm, err := database.New(dsn, 2, level, logger.Named("db"))
	if err != nil {
		return nil, nil, err
	}
	closers := []func(){func() { _ = dm.Close() }}
	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}

	var privileged repository.RecycleBinRepository
	if cfg.Database.PrivilegedDSN != "" {
		pdm, err := database.New(cfg.Database.PrivilegedDSN, 1, level, logger.Named("db.privileged"))
		if err != nil {
			logger.Warn("privileged connection unavailable", zap.Error(err))
		} else {
			closers = append(closers, func() { _ = pdm.Close() })
			privileged = repository.New(pdm.DB(context.Background())).RecycleBin
		}
	}

	var notifier core.Notifier
	slack := communication.NewSlack(cfg.Slack.Token, communication.SlackOption{
		InfoChannelID:  cfg.Slack.InfoChannel,
		ErrorChannelID: cfg.Slack.ErrorChannel,
	})
	if cfg.Slack.Token != "" && slack.Enabled() {
		notifier = slack
	}

	repo := repository.New(dm.DB(context.Background()))
	recycle := core.NewRecycleBinService(repo, privileged, cfg.Recycle.Retention, logger)
	return &sweepHandler{sweeper: core.NewSweeper(recycle, notifier, logger), logger: logger}, cleanup, nil
}

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

	h, cleanup, err := newHandler(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("recycle sweep setup failed", zap.Error(err))
	}
	defer cleanup()

	lambda.Start(h.Handle)
}
