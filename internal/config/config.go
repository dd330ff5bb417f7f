package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"unicode"

	"hdymonitor/internal/components/telemetry"
	"hdymonitor/lib/configutil"
)

const (
	DefaultTargetURL      = "https://www.szhdy.com/activities/default.html?method=activity&id=11"
	DefaultConfigTemplate = "https://www.szhdy.com/cart?action=configureproduct&pid={id}"
	DefaultStartID        = 2018
	DefaultScanLimit      = 200
	DefaultTimeoutSeconds = 30
	DefaultRatePerSecond  = 2
	DefaultSmtpPort       = 25

	productsFile = "lastServers.json"
	configIDFile = "lastConfigId.json"
	linuxDataDir = "/home/app/HDYMonitor"
)

type ProductsConfig struct {
	TargetURL   string `json:"target_url"`
	StoragePath string `json:"storage_path"`
	// NotifyRemovals also sends a message when a listing disappears.
	NotifyRemovals bool `json:"notify_removals"`
}

type ConfigIDConfig struct {
	URLTemplate string `json:"url_template"`
	StartID     int    `json:"start_id"`
	ScanLimit   int    `json:"backward_scan_limit"`
	StoragePath string `json:"storage_path"`
	Disabled    bool   `json:"disabled"`
}

type FetchConfig struct {
	TimeoutSeconds int     `json:"timeout_seconds"`
	RatePerSecond  float64 `json:"rate_per_second"`
	Referer        string  `json:"referer"`
}

type PushDeerConfig struct {
	// Keys holds one or more keys separated by commas or whitespace.
	Keys     string `json:"keys"`
	Endpoint string `json:"endpoint"`
}

type SmtpConfig struct {
	Server   string   `json:"server"`
	Port     int      `json:"port"`
	Username string   `json:"username"`
	Password string   `json:"password"`
	From     string   `json:"from"`
	To       []string `json:"to"`
}

type Config struct {
	Products           ProductsConfig   `json:"products"`
	ConfigID           ConfigIDConfig   `json:"config_id"`
	Fetch              FetchConfig      `json:"fetch"`
	PushDeer           PushDeerConfig   `json:"pushdeer"`
	Smtp               SmtpConfig       `json:"smtp"`
	Telemetry          telemetry.Config `json:"telemetry"`
	RunIntervalSeconds int              `json:"run_interval_seconds"`
	// Schedule is a five field cron expression in Asia/Shanghai time, it takes precedence over RunIntervalSeconds.
	Schedule string `json:"schedule"`
}

func defaultDataDir() string {
	if runtime.GOOS == "windows" {
		wd, err := os.Getwd()
		if err == nil {
			return wd
		}
		return "."
	}
	return linuxDataDir
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	dir := defaultDataDir()
	return Config{
		Products: ProductsConfig{
			TargetURL:   DefaultTargetURL,
			StoragePath: filepath.Join(dir, productsFile),
		},
		ConfigID: ConfigIDConfig{
			URLTemplate: DefaultConfigTemplate,
			StartID:     DefaultStartID,
			ScanLimit:   DefaultScanLimit,
			StoragePath: filepath.Join(dir, configIDFile),
		},
		Fetch: FetchConfig{
			TimeoutSeconds: DefaultTimeoutSeconds,
			RatePerSecond:  DefaultRatePerSecond,
		},
		Smtp: SmtpConfig{
			Port: DefaultSmtpPort,
		},
	}
}

// Load builds the configuration from, in increasing priority: defaults, the json5 file
// at path (plus its .local sibling) and the environment as read by getenv. A missing
// file is not an error.
func Load(path string, getenv func(string) string) (Config, error) {
	cfg := Default()
	if path != "" {
		_, err := configutil.MergeInto(&cfg, path)
		if err != nil {
			return cfg, err
		}
	}
	applyEnv(&cfg, getenv)
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		v, err := strconv.Atoi(strings.TrimSpace(getenv(key)))
		if err == nil {
			*dst = v
		}
	}

	str("TARGET_URL", &cfg.Products.TargetURL)
	str("STORAGE_PATH", &cfg.Products.StoragePath)
	if v, ok := parseBool(getenv("NOTIFY_REMOVALS")); ok {
		cfg.Products.NotifyRemovals = v
	}

	str("CONFIG_ID_URL_TEMPLATE", &cfg.ConfigID.URLTemplate)
	integer("CONFIG_ID_START", &cfg.ConfigID.StartID)
	integer("CONFIG_ID_BACKWARD_SCAN_LIMIT", &cfg.ConfigID.ScanLimit)
	str("CONFIG_ID_STORAGE_PATH", &cfg.ConfigID.StoragePath)
	if v, ok := parseBool(getenv("CONFIG_ID_MONITOR_ENABLED")); ok {
		cfg.ConfigID.Disabled = !v
	}

	integer("FETCH_TIMEOUT_SECONDS", &cfg.Fetch.TimeoutSeconds)
	if v, err := strconv.ParseFloat(strings.TrimSpace(getenv("FETCH_RATE_PER_SECOND")), 64); err == nil && v > 0 {
		cfg.Fetch.RatePerSecond = v
	}

	str("PUSHDEER_KEY", &cfg.PushDeer.Keys)
	str("PUSHDEER_ENDPOINT", &cfg.PushDeer.Endpoint)

	str("SMTP_SERVER", &cfg.Smtp.Server)
	integer("SMTP_PORT", &cfg.Smtp.Port)
	str("SMTP_USERNAME", &cfg.Smtp.Username)
	str("SMTP_PASSWORD", &cfg.Smtp.Password)
	str("EMAIL_FROM", &cfg.Smtp.From)
	if to := splitList(getenv("EMAIL_TO")); len(to) > 0 {
		cfg.Smtp.To = to
	}

	str("OTEL_TRACES_ENDPOINT", &cfg.Telemetry.Otlp.Traces.HttpEndpoint)
	str("OTEL_METRICS_ENDPOINT", &cfg.Telemetry.Otlp.Metrics.HttpEndpoint)

	integer("RUN_INTERVAL_SECONDS", &cfg.RunIntervalSeconds)
	str("RUN_SCHEDULE", &cfg.Schedule)
}

// parseBool only understands the common spellings, ok is false for anything else
// (including an empty value).
func parseBool(value string) (v bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}

func splitList(value string) []string {
	return strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
}
