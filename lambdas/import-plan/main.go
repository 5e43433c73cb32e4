package main

import (
	"context"
	"log"
	"os"

	v1 "calman.com/worklog/calman/v1"
	"calman.com/worklog/config"
	"calman.com/worklog/infrastructure/communication"
	"calman.com/worklog/infrastructure/filesystem"
	"calman.com/worklog/lambdas/import-plan/helper"
	"calman.com/worklog/logging"
	"github.com/aws/aws-lambda-go/lambda"
)

const clientID = "import-plan-lambda"

func main() {
	ctx := context.Background()

	cfg, err := config.Load("")
	if err == nil {
		if name := os.Getenv("CALMAN_SSM_PARAMETER"); name != "" {
			cfg, err = config.LoadFromSSM(ctx, name, cfg)
		}
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Log.Level, "json", clientID)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}

	storage, err := filesystem.NewS3Storage(ctx, cfg.Storage.Region)
	if err != nil {
		log.Fatalf("failed to create S3 client: %v", err)
	}

	im := &helper.Importer{
		Files:  storage,
		API:    v1.NewCalmanClient(cfg.BaseURL, clientID, v1.WithTimeout(cfg.RequestTimeout), v1.WithLogger(logger)).WorkLogs,
		Logger: logger,
	}
	if cfg.Slack.Enabled() {
		im.Slack = communication.NewSlack(cfg.Slack.Token, communication.SlackOption{
			InfoChannelID:  cfg.Slack.InfoChannelID,
			ErrorChannelID: cfg.Slack.ErrorChannelID,
		})
	}

	lambda.Start(im.HandleRequest)
}
