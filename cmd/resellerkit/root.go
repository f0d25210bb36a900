package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/benithors/resellerkit/internal/config"
	"github.com/benithors/resellerkit/internal/logging"
	"github.com/benithors/resellerkit/internal/metrics"
	"github.com/benithors/resellerkit/internal/pricing"
	"github.com/benithors/resellerkit/internal/registrar"
	"github.com/benithors/resellerkit/internal/registrar/resellerclub"
	"github.com/benithors/resellerkit/internal/verify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type cliConfig struct {
	Version string

	// Global flags.
	VersionFlag bool
	EnvFile     string
	Format      string
	JSON        bool
	NDJSON      bool
	Plain       bool
	BaseURL     string
	Timeout     time.Duration
	Currency    string
	LogFormat   string
	Quiet       bool
	Verbose     bool

	// Derived runtime state.
	env       *config.Config
	outFormat outputFormat
	log       *zap.Logger

	client   registrar.Client
	registry *prometheus.Registry
	pricing  *pricing.Service
	verifier *verify.Verifier
}

func newRootCmd(ver string) *cobra.Command {
	cfg := &cliConfig{Version: ver}

	root := &cobra.Command{
		Use:           "resellerkit",
		Short:         "Domain reseller pricing and registration verification",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usageErr(cmd, fmt.Errorf("unknown command %q", args[0]))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return &cliError{Code: 2, ShowUsage: true, Cmd: cmd}
		},
	}
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SetFlagErrorFunc(usageErr)

	pf := root.PersistentFlags()
	pf.BoolVar(&cfg.VersionFlag, "version", false, "Print version and exit")
	pf.StringVar(&cfg.EnvFile, "env-file", ".env", "Optional .env file with RESELLERKIT_* settings")
	pf.StringVar(&cfg.Format, "format", "auto", "Output format: auto|table|ndjson|json|plain")
	pf.BoolVar(&cfg.JSON, "json", false, "Alias for --format json (single JSON array)")
	pf.BoolVar(&cfg.NDJSON, "ndjson", false, "Alias for --format ndjson (one JSON object per line)")
	pf.BoolVar(&cfg.Plain, "plain", false, "Alias for --format plain (stable tab-separated)")
	pf.StringVar(&cfg.BaseURL, "base-url", "", "Registrar API base URL (overrides RESELLERKIT_BASE_URL)")
	pf.DurationVar(&cfg.Timeout, "timeout", 30*time.Second, "Per-request registrar timeout")
	pf.StringVar(&cfg.Currency, "currency", "", "Currency label for prices (overrides RESELLERKIT_CURRENCY)")
	pf.StringVar(&cfg.LogFormat, "log-format", "", "Log format: console|json")
	pf.BoolVarP(&cfg.Quiet, "quiet", "q", false, "Only log errors")
	pf.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Debug logging")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cfg.VersionFlag {
			fmt.Fprintf(os.Stdout, "resellerkit %s (%s/%s)\n", cfg.Version, runtime.GOOS, runtime.GOARCH)
			return errExit0
		}
		if cfg.Quiet && cfg.Verbose {
			return usageErr(cmd, fmt.Errorf("flags are mutually exclusive: --quiet, --verbose"))
		}

		formatStr := strings.ToLower(strings.TrimSpace(cfg.Format))
		if formatStr == "" {
			formatStr = "auto"
		}

		aliases := 0
		if cfg.JSON {
			aliases++
		}
		if cfg.NDJSON {
			aliases++
		}
		if cfg.Plain {
			aliases++
		}
		if aliases > 1 {
			return usageErr(cmd, fmt.Errorf("flags are mutually exclusive: --json, --ndjson, --plain"))
		}
		if formatStr != "auto" && aliases == 1 {
			return usageErr(cmd, fmt.Errorf("do not combine --format with --json/--ndjson/--plain"))
		}

		if cfg.JSON {
			formatStr = "json"
		}
		if cfg.NDJSON {
			formatStr = "ndjson"
		}
		if cfg.Plain {
			formatStr = "plain"
		}

		cfg.outFormat = resolveFormat(formatStr, os.Stdout)

		env, err := config.Load(cfg.EnvFile)
		if err != nil {
			return runtimeErr(cmd, fmt.Errorf("failed to load configuration: %w", err))
		}
		flags := cmd.Flags()
		if flags.Changed("base-url") {
			env.BaseURL = cfg.BaseURL
		}
		if flags.Changed("timeout") {
			env.Timeout = cfg.Timeout
		}
		if flags.Changed("currency") {
			env.Currency = cfg.Currency
		}
		if flags.Changed("log-format") {
			env.LogFormat = cfg.LogFormat
		}
		switch {
		case cfg.Verbose:
			env.LogLevel = "debug"
		case cfg.Quiet:
			env.LogLevel = "error"
		}
		cfg.env = env

		logCfg := logging.DefaultConfig()
		logCfg.Level = env.LogLevel
		logCfg.Format = env.LogFormat
		cfg.log, err = logging.New(logCfg)
		if err != nil {
			return runtimeErr(cmd, fmt.Errorf("failed to build logger: %w", err))
		}
		return nil
	}
	root.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if cfg.log != nil {
			_ = cfg.log.Sync()
		}
	}

	root.AddCommand(newPriceCmd(cfg))
	root.AddCommand(newQuoteCmd(cfg))
	root.AddCommand(newVerifyCmd(cfg))
	root.AddCommand(newRegisterCmd(cfg))
	root.AddCommand(newRenewCmd(cfg))
	root.AddCommand(newTransferCmd(cfg))
	root.AddCommand(newServeCmd(cfg))

	return root
}

// services builds the registrar client and everything layered on it. It runs
// per command rather than in the pre-run so --help and usage errors work
// without credentials.
func (cfg *cliConfig) services(cmd *cobra.Command) error {
	if cfg.client != nil {
		return nil
	}

	client, err := resellerclub.NewClient(resellerclub.Options{
		AuthUserID: cfg.env.AuthUserID,
		APIKey:     cfg.env.APIKey,
		BaseURL:    cfg.env.BaseURL,
		Timeout:    cfg.env.Timeout,
		UserAgent:  "resellerkit/" + cfg.Version,
		Logger:     cfg.log,
	})
	if err != nil {
		return usageErr(cmd, err)
	}

	cfg.registry = prometheus.NewRegistry()
	m := metrics.New(cfg.registry)

	cache := pricing.NewCache(pricing.GatewayFetcher(client), pricing.CacheOptions{
		TTL:     cfg.env.CacheTTL,
		Logger:  cfg.log,
		Metrics: m,
	})
	cfg.client = client
	cfg.pricing = pricing.NewService(cache, pricing.Options{
		Currency: cfg.env.Currency,
		Logger:   cfg.log,
		Metrics:  m,
	})
	cfg.verifier = verify.New(verify.Options{
		Client:  client,
		Logger:  cfg.log,
		Metrics: m,
	})
	return nil
}
