package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tra-portal/tra-portal/internal/services"
	"github.com/tra-portal/tra-portal/internal/store"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		interval time.Duration
		count    int
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the ledger statistics",
		Long: `Print the ledger statistics and refresh them on an interval until
interrupted, or until --count refreshes have been printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if !cmd.Flags().Changed("interval") {
				interval = a.cfg.RefreshInterval
			}

			stats, err := a.store.FetchBlockchainStats(ctx)
			if err != nil {
				return err
			}
			if err := a.printStats(cmd, time.Time{}, stats); err != nil {
				return err
			}

			updates := make(chan store.State, 1)
			var last time.Time
			unsubscribe := a.store.Subscribe(func(s store.State) {
				if !s.RealTimeData.LastUpdated.After(last) {
					return
				}
				last = s.RealTimeData.LastUpdated
				select {
				case updates <- s:
				default:
				}
			})
			defer unsubscribe()

			poller, err := store.NewPoller(a.store, interval, a.logger)
			if err != nil {
				return err
			}
			poller.Start()
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := poller.Stop(stopCtx); err != nil {
					a.logger.Warn("refresh did not stop cleanly", slog.String("error", err.Error()))
				}
			}()

			for seen := 0; count == 0 || seen < count; seen++ {
				select {
				case <-ctx.Done():
					return nil
				case s := <-updates:
					if err := a.printStats(cmd, s.RealTimeData.LastUpdated, s.BlockchainStats); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", store.DefaultRefreshInterval, "refresh interval (defaults to REFRESH_INTERVAL)")
	cmd.Flags().IntVar(&count, "count", 0, "stop after this many refreshes (0 runs until interrupted)")
	return cmd
}

func (a *app) printStats(cmd *cobra.Command, at time.Time, s *services.BlockchainStats) error {
	if s == nil {
		return nil
	}
	if a.output != OutputTable {
		return a.print(cmd.OutOrStdout(), s, nil, nil)
	}
	label := "initial"
	if !at.IsZero() {
		label = timestamp(at.Local())
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "[%s] blocks=%d transactions=%d nodes=%d status=%s\n",
		label, s.TotalBlocks, s.TotalTransactions, s.ActiveNodes, s.NetworkStatus)
	return err
}
