package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"hdymonitor/internal/components/chrono"
	"hdymonitor/internal/components/telemetry"
	"hdymonitor/internal/monitor"
	"hdymonitor/lib/serviceutil"
	"hdymonitor/lib/timezone"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:          "run",
	Short:        "Check the promotion page and the config id frontier, once or on a schedule.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := loadConfig()

		interval, _ := cmd.Flags().GetInt("interval")
		if !cmd.Flags().Changed("interval") {
			interval = cfg.RunIntervalSeconds
		}

		if cfg.Telemetry.Enabled() {
			otelTel, err := telemetry.Setup(ctx, "hdymonitor", cfg.Telemetry)
			if err != nil {
				serviceutil.Fatal("failed to setup telemetry", err)
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := otelTel.Shutdown(shutdownCtx); err != nil {
					slog.Warn("telemetry shutdown", "err", err)
				}
			}()
			telemetry.InstrumentPerfStats(ctx)
		}

		schedule, _ := cmd.Flags().GetString("schedule")
		if schedule == "" {
			schedule = cfg.Schedule
		}
		if schedule != "" {
			if err := chrono.ValidateCron(schedule); err != nil {
				return fmt.Errorf("invalid schedule %q: %w", schedule, err)
			}
		}

		mon := newMonitor(cfg, telemetry.SlogAPI{})

		if schedule != "" {
			cron := chrono.NewStandardCron(timezone.Location, telemetry.SlogAPI{})
			err := cron.Cron(schedule, func() {
				logReport(mon.RunOnce(ctx))
			})
			if err != nil {
				return err
			}
			slog.Info("monitoring started", "schedule", schedule)
			<-ctx.Done()
			<-cron.Stop().Done()
			slog.Info("monitoring stopped")
			return nil
		}

		if interval <= 0 {
			report := mon.RunOnce(ctx)
			logReport(report)
			if !report.Success() {
				return fmt.Errorf("cycle %s failed", report.RunID)
			}
			return nil
		}

		slog.Info("monitoring started", "interval", time.Duration(interval)*time.Second)
		serviceutil.Every(ctx, time.Duration(interval)*time.Second, func(ctx context.Context) {
			logReport(mon.RunOnce(ctx))
		})
		slog.Info("monitoring stopped")
		return nil
	},
}

func logReport(report monitor.Report) {
	for _, res := range []struct {
		signal string
		result monitor.Result
	}{
		{signal: "products", result: report.Products},
		{signal: "config_id", result: report.ConfigID},
	} {
		if res.result.Success {
			slog.Info(
				"check finished",
				"run", report.RunID,
				"signal", res.signal,
				"status", res.result.StatusCode,
				"message", res.result.Message,
			)
			continue
		}
		slog.Error(
			"check failed",
			"run", report.RunID,
			"signal", res.signal,
			"status", res.result.StatusCode,
			"message", res.result.Message,
		)
		for _, solution := range res.result.Solutions {
			slog.Error("  " + solution)
		}
	}
}

func init() {
	runCmd.Flags().Int("interval", 0, "Seconds between cycles, 0 runs a single cycle. Defaults to run_interval_seconds from the config.")
	runCmd.Flags().String("schedule", "", "Cron expression in Asia/Shanghai time to run cycles on, takes precedence over --interval. Defaults to schedule from the config.")
	rootCmd.AddCommand(runCmd)
}
