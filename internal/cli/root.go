package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/factordb/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is overridden at build time with -ldflags "-X ...cli.version=..."
var version = "0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd looks up a single number
var rootCmd = &cobra.Command{
	Use:   "factordb <number>",
	Short: "Look up the factorization of a number in FactorDB",
	Long: `factordb queries FactorDB (http://factordb.com) for the known
factorization of a non-negative integer of any length.

By default every prime factor is printed on its own line, repeated as often
as it divides the number.

Example:
  factordb 42
  factordb 100 --unique
  factordb 340282366920938463463374607431768211457 --summary
  factordb 42 --json`,
	Args:          cobra.ExactArgs(1),
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          runQuery,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "factordb v%s\n", version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: $HOME/.factordb/config.yaml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	pf.String("endpoint", defaults.Endpoint, "FactorDB API endpoint")
	pf.Duration("timeout", defaults.HTTP.Timeout, "per-request timeout (0 disables)")
	pf.String("ua", defaults.HTTP.UserAgent, "HTTP User-Agent")
	pf.Bool("cache", defaults.Cache.Enabled, "cache final results (FF, P) locally")
	pf.String("cache-dir", defaults.Cache.Dir, "cache directory")
	pf.String("http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	pf.String("https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")
	pf.String("no-proxy", "", "hosts to reach directly (overrides NO_PROXY env var)")

	// Bind flags to viper
	_ = viper.BindPFlag("output.verbose", pf.Lookup("verbose"))
	_ = viper.BindPFlag("endpoint", pf.Lookup("endpoint"))
	_ = viper.BindPFlag("http.timeout", pf.Lookup("timeout"))
	_ = viper.BindPFlag("http.user_agent", pf.Lookup("ua"))
	_ = viper.BindPFlag("cache.enabled", pf.Lookup("cache"))
	_ = viper.BindPFlag("cache.dir", pf.Lookup("cache-dir"))
	_ = viper.BindPFlag("http.http_proxy", pf.Lookup("http-proxy"))
	_ = viper.BindPFlag("http.https_proxy", pf.Lookup("https-proxy"))
	_ = viper.BindPFlag("http.no_proxy", pf.Lookup("no-proxy"))

	setDefaults(defaults)

	rootCmd.SetVersionTemplate("factordb v{{.Version}}\n")
	rootCmd.AddCommand(versionCmd)
}

// defaults seeds flag defaults and viper defaults alike
var defaults = model.DefaultConfig()

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(filepath.Join(home, ".factordb"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// FACTORDB_ENDPOINT, FACTORDB_HTTP_TIMEOUT, FACTORDB_CACHE_ENABLED, ...
	viper.SetEnvPrefix("FACTORDB")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig resolves flags, env, config file and defaults into a Config
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func setDefaults(cfg *model.Config) {
	viper.SetDefault("endpoint", cfg.Endpoint)
	viper.SetDefault("http.timeout", cfg.HTTP.Timeout)
	viper.SetDefault("http.user_agent", cfg.HTTP.UserAgent)
	viper.SetDefault("http.max_body_bytes", cfg.HTTP.MaxBodyBytes)
	viper.SetDefault("http.http_proxy", cfg.HTTP.HTTPProxy)
	viper.SetDefault("http.https_proxy", cfg.HTTP.HTTPSProxy)
	viper.SetDefault("http.no_proxy", cfg.HTTP.NoProxy)
	viper.SetDefault("cache.enabled", cfg.Cache.Enabled)
	viper.SetDefault("cache.dir", cfg.Cache.Dir)
	viper.SetDefault("cache.memory_ttl", cfg.Cache.MemoryTTL)
	viper.SetDefault("cache.disk_ttl", cfg.Cache.DiskTTL)
	viper.SetDefault("concurrency.workers", cfg.Concurrency.Workers)
	viper.SetDefault("rate_limiting.requests_per_second", cfg.RateLimiting.RequestsPerSecond)
	viper.SetDefault("rate_limiting.burst_size", cfg.RateLimiting.BurstSize)
	viper.SetDefault("robots.respect", cfg.Robots.Respect)
	viper.SetDefault("robots.timeout", cfg.Robots.Timeout)
	viper.SetDefault("output.verbose", cfg.Output.Verbose)
}

// newLogger writes console-formatted logs to w: debug and up when verbose,
// warnings and errors otherwise
func newLogger(w io.Writer, verbose bool) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout(time.TimeOnly)
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), level)

	return zap.New(core).Named("factordb")
}
