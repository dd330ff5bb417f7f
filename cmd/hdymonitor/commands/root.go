package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"hdymonitor/internal/components/chrono"
	"hdymonitor/internal/components/telemetry"
	"hdymonitor/internal/config"
	"hdymonitor/internal/frontier"
	"hdymonitor/internal/monitor"
	"hdymonitor/internal/notify"
	"hdymonitor/internal/scrapers/hdy"
	"hdymonitor/internal/snapshot"
	"hdymonitor/lib/restyutil"
	"hdymonitor/lib/serviceutil"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "hdymonitor",
	SilenceErrors: true,
	Short:         "hdymonitor watches szhdy.com for promotional servers and new configuration pages.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "hdymonitor.json5", "The json5 config file, a .local sibling is merged over it.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() config.Config {
	cfg, err := config.Load(configPath, os.Getenv)
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	return cfg
}

func newClient(cfg config.Config, dump restyutil.Output, tel telemetry.API) *hdy.Client {
	client, err := hdy.NewClient(hdy.ClientOptions{
		ConfigTemplate: cfg.ConfigID.URLTemplate,
		Referer:        cfg.Fetch.Referer,
		Timeout:        time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second,
		RatePerSecond:  cfg.Fetch.RatePerSecond,
		Dump:           dump,
	}, tel)
	if err != nil {
		serviceutil.Fatal("failed to create http client", err)
	}
	return client
}

func newDispatcher(cfg config.Config, tel telemetry.API) *notify.Dispatcher {
	channels := notify.NewPushDeerChannels(cfg.PushDeer.Keys, cfg.PushDeer.Endpoint, tel)

	smtp := notify.SmtpConfig{
		Server:   cfg.Smtp.Server,
		Port:     cfg.Smtp.Port,
		Username: cfg.Smtp.Username,
		Password: cfg.Smtp.Password,
		From:     cfg.Smtp.From,
		To:       cfg.Smtp.To,
	}
	if smtp.Enabled() {
		channels = append(channels, notify.NewEmail(smtp))
	}
	return notify.NewDispatcher(tel, notify.DefaultTimeout, channels...)
}

func productStore(cfg config.Config) snapshot.Store[[]hdy.Product] {
	return snapshot.New[[]hdy.Product](cfg.Products.StoragePath)
}

// newMonitor wires every dependency of a polling cycle from cfg.
func newMonitor(cfg config.Config, tel telemetry.API) *monitor.Monitor {
	client := newClient(cfg, nil, tel)
	dispatcher := newDispatcher(cfg, tel)

	products := monitor.NewProductMonitor(
		client,
		dispatcher,
		productStore(cfg),
		monitor.ProductOptions{
			TargetURL:      cfg.Products.TargetURL,
			NotifyRemovals: cfg.Products.NotifyRemovals,
		},
		tel,
	)
	configID := monitor.NewConfigMonitor(
		client,
		dispatcher,
		frontier.NewStore(cfg.ConfigID.StoragePath),
		monitor.ConfigOptions{
			Enabled:   !cfg.ConfigID.Disabled,
			StartID:   cfg.ConfigID.StartID,
			ScanLimit: cfg.ConfigID.ScanLimit,
		},
		chrono.NewStandardTime(),
		tel,
	)
	return monitor.New(products, configID, tel)
}
