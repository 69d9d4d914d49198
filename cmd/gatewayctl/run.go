package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ygrebnov/gateways"
	"github.com/ygrebnov/gateways/config"
	"github.com/ygrebnov/gateways/metrics"
	"github.com/ygrebnov/gateways/observe"
)

var batchPath string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Dispatch a batch document and print completed messages",
	Args:  cobra.NoArgs,
	RunE:  runBatch,
}

func init() {
	runCmd.Flags().StringVarP(&batchPath, "batch", "b", "batch.yaml", "batch document")
	rootCmd.AddCommand(runCmd)
}

func runBatch(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	batch, err := config.LoadBatch(batchPath)
	if err != nil {
		return fmt.Errorf("load batch: %w", err)
	}
	msgs, err := batch.Build()
	if err != nil {
		return fmt.Errorf("build batch: %w", err)
	}

	logger, err := observe.NewLogger(cmd.ErrOrStderr(), "gatewayctl", cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}

	extra := []gateways.Option{
		gateways.WithSink(observe.NewZerolog(logger)),
		gateways.WithHandler(delayHandler(cfg.Handler.Delay())),
	}
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		provider := metrics.NewPromProvider(cfg.Metrics.Namespace, reg)
		extra = append(extra, gateways.WithMetrics(provider))
		if cfg.Metrics.Addr != "" {
			go func() {
				if err := metrics.StartPromServer(ctx, cfg.Metrics.Addr, reg); err != nil {
					logger.Error().Err(err).Msg("prom server")
				}
			}()
		}
		defer func() {
			if err := provider.Err(); err != nil {
				logger.Warn().Err(err).Msg("metrics registration")
			}
		}()
	}

	opts, err := cfg.Options(extra...)
	if err != nil {
		return err
	}
	d, err := gateways.New(cfg.Gateways, opts...)
	if err != nil {
		return err
	}
	for _, g := range batch.Cancel {
		if err = d.CancelGroup(g); err != nil {
			return fmt.Errorf("cancel group %d: %w", g, err)
		}
	}

	dispatchErr := d.Dispatch(ctx, msgs)
	if err = printResult(cmd.OutOrStdout(), d); err != nil {
		return err
	}
	if dispatchErr != nil {
		return fmt.Errorf("dispatch: %w", dispatchErr)
	}
	return nil
}

// delayHandler simulates processing time; a zero delay completes immediately.
func delayHandler(delay time.Duration) gateways.Handler {
	if delay <= 0 {
		return nil
	}
	return func(ctx context.Context, _ *gateways.Message) error {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func printResult(w io.Writer, d *gateways.Dispatcher) error {
	for _, m := range d.Completed() {
		kind := "message"
		if m.IsTermination() {
			kind = "termination"
		}
		if _, err := fmt.Fprintf(w, "%d\t%s\t%s\n", m.GroupID(), kind, m.ID()); err != nil {
			return err
		}
	}
	if pending := len(d.Pending()); pending > 0 {
		_, err := fmt.Fprintf(w, "pending: %d\n", pending)
		return err
	}
	return nil
}
