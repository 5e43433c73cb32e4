package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"calman.com/worklog/core"
	"github.com/spf13/cobra"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		view     viewFlags
		duration time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the table current with live updates until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			qc, err := view.context()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			ctrl, err := a.controller(core.WithStatusObserver(func(st core.ChannelStatus) {
				fmt.Fprintf(a.errOut, "live: %s (attempt %d)\n", st.State, st.Attempt)
			}))
			if err != nil {
				return err
			}

			unsubscribe := ctrl.Store.Subscribe(newTableProjector(a.out, ctrl.Context))
			defer unsubscribe()

			if _, err := ctrl.SetContext(ctx, qc); err != nil {
				return err
			}
			ctrl.Live.Connect()
			<-ctx.Done()
			ctrl.Close()
			return nil
		},
	}

	view.bind(cmd)
	cmd.Flags().DurationVar(&duration, "for", 0, "stop after this long (0 waits for an interrupt)")
	return cmd
}
