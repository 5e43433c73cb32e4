package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	v1 "calman.com/worklog/calman/v1"
	"calman.com/worklog/config"
	"calman.com/worklog/core"
	"calman.com/worklog/infrastructure/communication"
	"calman.com/worklog/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootOptions struct {
	configPath   string
	ssmParameter string
	baseURL      string
	logLevel     string
	clientID     string
}

// app holds what the subcommands share. The controller is built on first use
// so commands can add their own live channel options.
type app struct {
	opts   rootOptions
	out    io.Writer
	errOut io.Writer

	cfg     config.Config
	logger  *zap.Logger
	client  *v1.CalmanClient
	session *core.Session
	ctrl    *core.Controller
	slack   *communication.SlackNotifier
	closers []func()
	once    sync.Once
}

func execute(out, errOut io.Writer, args []string) error {
	a := &app{out: out, errOut: errOut}
	defer a.close()

	cmd := newRootCmd(a)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(errOut, "Error:", err)
		return err
	}
	return nil
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "worklog",
		Short:         "Browse and edit the work log schedule",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.opts.configPath, "config", "", "path to a YAML config file")
	flags.StringVar(&a.opts.ssmParameter, "ssm-parameter", "", "SSM parameter holding a YAML config overlay")
	flags.StringVar(&a.opts.baseURL, "base-url", "", "backend base URL (overrides config)")
	flags.StringVar(&a.opts.logLevel, "log-level", "", "log level (overrides config)")
	flags.StringVar(&a.opts.clientID, "client-id", "", "client id sent as X-Client-ID (random when empty)")

	cmd.AddCommand(
		newListCmd(a),
		newWatchCmd(a),
		newCreateCmd(a),
		newEditCmd(a),
		newStatusCmd(a),
		newDeleteCmd(a),
		newImportCmd(a),
		newSourcesCmd(a),
	)
	return cmd
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.opts.configPath)
	if err != nil {
		return err
	}
	if a.opts.ssmParameter != "" {
		if cfg, err = config.LoadFromSSM(cmd.Context(), a.opts.ssmParameter, cfg); err != nil {
			return err
		}
	}
	if a.opts.baseURL != "" {
		cfg.BaseURL = a.opts.baseURL
	}
	if a.opts.logLevel != "" {
		cfg.Log.Level = a.opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Format, "worklog-cli")
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	a.session = core.NewSession()
	if a.opts.clientID != "" {
		a.session.ClientID = a.opts.clientID
	}
	a.client = v1.NewCalmanClient(cfg.BaseURL, a.session.ClientID,
		v1.WithTimeout(cfg.RequestTimeout),
		v1.WithLogger(logger.Named("http")),
	)

	if cfg.Slack.Enabled() {
		slack := communication.NewSlack(cfg.Slack.Token, communication.SlackOption{
			InfoChannelID:  cfg.Slack.InfoChannelID,
			ErrorChannelID: cfg.Slack.ErrorChannelID,
		})
		a.slack = communication.NewSlackNotifier(slack, core.LevelWarning, "worklog-cli", logger.Named("slack"))
		a.closers = append(a.closers, a.slack.Close)
	}
	return nil
}

// controller returns the shared controller, building it with opts on first call.
func (a *app) controller(opts ...core.LiveOption) (*core.Controller, error) {
	if a.ctrl != nil {
		return a.ctrl, nil
	}
	policy, err := core.ParseUpdatePolicy(a.cfg.UpdatePolicy)
	if err != nil {
		return nil, err
	}

	notifiers := core.MultiNotifier{newNoticePrinter(a.errOut), core.NewLogNotifier(a.logger)}
	if a.slack != nil {
		notifiers = append(notifiers, a.slack)
	}

	a.ctrl = core.NewClientController(a.client, a.session, core.ControllerConfig{
		UpdatePolicy: policy,
		Live: core.LiveConfig{
			BaseDelay:   a.cfg.Live.BaseDelay,
			MaxAttempts: a.cfg.Live.MaxAttempts,
		},
		Notifier:    notifiers,
		Logger:      a.logger,
		LiveOptions: opts,
	})
	a.closers = append(a.closers, a.ctrl.Close)
	return a.ctrl, nil
}

func (a *app) close() {
	a.once.Do(func() {
		for i := len(a.closers) - 1; i >= 0; i-- {
			a.closers[i]()
		}
		if a.logger != nil {
			_ = a.logger.Sync()
		}
	})
}
