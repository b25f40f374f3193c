package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"tokenctl/config"
	"tokenctl/internal/ledger"
	"tokenctl/internal/source"
	"tokenctl/internal/tokenapi"
	"tokenctl/internal/waf"
)

var (
	// Global flags
	flagConfig   string
	flagVerbose  bool
	flagFile     string
	flagAPIToken string
	flagUserID   string
	flagProxy    string
	flagDelay    float64
	flagNoWAF    bool

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "tokenctl",
	Short: "Bulk API token lifecycle management for AnyRouter-style consoles",
	Long: `tokenctl creates, resolves, and deletes console API tokens across many
accounts in one run.

Account sources (one of):
  -f cookies.txt          local file (JSON array/object, JSON lines,
                          cookie|user_id|prefix|count, or bare cookie lines)
  --api-token <bearer>    remote cookie listing service
                          (COOKIE_API_TOKEN env is used as a fallback)

The console sits behind an anti-bot barrier; unless --no-waf is given, a
real browser visits the challenge page once per run and the minted cookies
are merged into every account's session material.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		if !flagVerbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (default: config.yaml next to the binary)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&flagFile, "file", "f", "", "Account list file path")
	rootCmd.PersistentFlags().StringVar(&flagAPIToken, "api-token", "", "Bearer token for the cookie listing service")
	rootCmd.PersistentFlags().StringVarP(&flagUserID, "user-id", "u", "", "Default user ID for records that omit one")
	rootCmd.PersistentFlags().StringVar(&flagProxy, "proxy", "", "Upstream proxy (e.g. http://127.0.0.1:7890)")
	rootCmd.PersistentFlags().Float64VarP(&flagDelay, "delay", "d", 0.5, "Settling delay between calls in seconds")
	rootCmd.PersistentFlags().BoolVar(&flagNoWAF, "no-waf", false, "Skip barrier cookie acquisition (cookies already carry it)")

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(resolveCmd)
}

// runtime is the shared per-invocation state built by setupRun
type runtime struct {
	cfg      *config.Config
	accounts []source.Account
	barrier  waf.CookieSet
	client   *tokenapi.Client
	ledger   *ledger.Ledger
}

func (rt *runtime) close() {
	if rt.ledger != nil {
		_ = rt.ledger.Close()
	}
}

// setupRun loads configuration, resolves the account source, acquires
// barrier cookies, and builds the API client. Errors here are fatal setup
// errors; anything after this degrades per item instead of aborting.
func setupRun(cmd *cobra.Command) (*runtime, error) {
	path := flagConfig
	if path == "" {
		execPath, _ := os.Executable()
		path = filepath.Join(filepath.Dir(execPath), "config.yaml")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if rootCmd.PersistentFlags().Changed("delay") {
		cfg.Batch.DelaySeconds = flagDelay
	}
	if flagProxy != "" {
		cfg.Console.Proxy = flagProxy
	}
	if flagNoWAF {
		cfg.WAF.Skip = true
	}

	accounts, err := loadAccounts(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("no valid account records found")
	}
	logger.Info("accounts loaded", zap.Int("count", len(accounts)))

	barrier := waf.CookieSet{}
	if cfg.WAF.Skip {
		logger.Info("barrier acquisition skipped")
	} else {
		set, err := waf.Acquire(cmd.Context(), waf.AcquireOptions{
			TargetURL: cfg.WAF.TargetURL,
			Proxy:     cfg.Console.Proxy,
			Headless:  cfg.WAF.Headless,
			Settle:    time.Duration(cfg.WAF.SettleSeconds) * time.Second,
		}, logger)
		if err != nil {
			// Degraded mode: per-call failures surface downstream instead.
			logger.Warn("barrier acquisition failed, continuing without barrier cookies", zap.Error(err))
		} else {
			barrier = set
		}
	}

	client, err := tokenapi.NewClient(
		cfg.Console.BaseURL,
		time.Duration(cfg.Console.Timeout)*time.Second,
		cfg.Console.Proxy,
		logger,
	)
	if err != nil {
		return nil, err
	}

	led, err := ledger.Open(cfg.Ledger.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	return &runtime{cfg: cfg, accounts: accounts, barrier: barrier, client: client, ledger: led}, nil
}

// loadAccounts resolves the account source: the local file when given,
// otherwise the remote listing service.
func loadAccounts(ctx context.Context, cfg *config.Config) ([]source.Account, error) {
	bearer := flagAPIToken
	if bearer == "" {
		bearer = os.Getenv("COOKIE_API_TOKEN")
	}

	switch {
	case flagFile != "":
		return source.ParseFile(flagFile)
	case bearer != "":
		return source.FetchRemote(ctx, cfg.Listing, bearer, logger)
	default:
		return nil, fmt.Errorf("no account source: pass --file or --api-token (or set COOKIE_API_TOKEN)")
	}
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
