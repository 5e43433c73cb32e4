package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"calman.com/worklog/config"
	"calman.com/worklog/infrastructure/communication"
	"calman.com/worklog/logging"
	"calman.com/worklog/web"
	"calman.com/worklog/web/broker"
	"calman.com/worklog/web/repository"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		migrate    bool
	)

	cmd := &cobra.Command{
		Use:           "worklog-server",
		Short:         "Serve the work log API and event stream",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, migrate)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "create or update the work_log table on start")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, migrate bool) error {
	logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Format, "worklog-server")
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	var repo repository.Repository
	if cfg.Server.DSN == "" {
		logger.Warn("no database configured, work logs are kept in memory")
		repo = repository.NewMemoryRepository()
	} else {
		dm, db, err := repository.ConnectDB(ctx, cfg.Server.DSN, cfg.Server.MaxConnections, repository.ParseLogLevel(cfg.Server.DBLogLevel))
		if err != nil {
			return err
		}
		defer dm.Close()
		if migrate {
			if err := repository.Migrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
		repo = repository.NewGormRepository(db)
	}

	var slack *communication.Slack
	if cfg.Slack.Enabled() {
		slack = communication.NewSlack(cfg.Slack.Token, communication.SlackOption{
			InfoChannelID:  cfg.Slack.InfoChannelID,
			ErrorChannelID: cfg.Slack.ErrorChannelID,
		})
	}

	events := broker.New(cfg.Server.ReplaySize, logger.Named("broker"))
	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: web.NewRouter(web.Options{
			Repo:      repo,
			Events:    events,
			Logger:    logger,
			KeepAlive: cfg.Server.KeepAlive,
		}),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Server.Addr))
		announce(gctx, slack, logger, fmt.Sprintf("worklog-server started on %s", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		// open streams never finish on their own
		events.Shutdown()

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	err = g.Wait()
	if err != nil {
		logger.Error("server stopped", zap.Error(err))
		if slack != nil {
			_ = slack.Error(context.Background(), fmt.Sprintf("worklog-server stopped: %v", err))
		}
		return err
	}
	logger.Info("server stopped")
	return nil
}

func announce(ctx context.Context, slack *communication.Slack, logger *zap.Logger, message string) {
	if slack == nil {
		return
	}
	if err := slack.Info(ctx, message); err != nil {
		logger.Warn("slack announce failed", zap.Error(err))
	}
}
