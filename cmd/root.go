package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/authprx/internal/config"
	"github.com/zjrosen/authprx/internal/credentials"
	"github.com/zjrosen/authprx/internal/log"
	"github.com/zjrosen/authprx/internal/paths"
)

var (
	version   = "dev"
	cfgFile   string
	cfg       config.Config
	configErr error
	logClose  = func() {}
)

var rootCmd = &cobra.Command{
	Use:   "authprx",
	Short: "Provides simple auth for all your APIs",
	Long: `authprx keeps a registry of APIs and the paths that need auth.

The superuser is configured with --user and --password or the
AUTHPRX_USER and AUTHPRX_PASSWORD environment variables; the password
is only kept as a bcrypt hash. Registered APIs live in a SQLite
database under auth_proxy/ unless storage.path says otherwise.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	RunE:              runRoot,
}

func init() {
	cobra.OnInitialize(initConfig)
	addRootFlags(rootCmd)
	bindFlags(viper.GetViper(), rootCmd)
}

// addRootFlags registers the persistent and operator flags on cmd.
func addRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .authprx/config.yaml, then ~/.config/authprx/config.yaml)")
	cmd.PersistentFlags().Bool("debug", false,
		"write debug logs to log_file, can also be set via env variable 'AUTHPRX_DEBUG'")
	cmd.PersistentFlags().String("storage", "",
		"registry database file or directory (default: auth_proxy/registry.db)")

	cmd.Flags().String("host", "", "Host to listen on")
	cmd.Flags().StringP("port", "p", "",
		"Port to listen on, can also be set via env variable 'AUTHPRX_PORT'")
	cmd.Flags().StringP("user", "u", "",
		"Superuser name, can also be set via env variable 'AUTHPRX_USER'")
	cmd.Flags().String("password", "",
		"Superuser password, can also be set via env variable 'AUTHPRX_PASSWORD'")
}

// bindFlags maps cmd's flags onto config keys so a set flag beats the
// environment and the config file.
func bindFlags(v *viper.Viper, cmd *cobra.Command) {
	_ = v.BindPFlag("debug", cmd.PersistentFlags().Lookup("debug"))
	_ = v.BindPFlag("storage.path", cmd.PersistentFlags().Lookup("storage"))
	for _, name := range []string{"host", "port", "user", "password"} {
		_ = v.BindPFlag(name, cmd.Flags().Lookup(name))
	}
}

func initConfig() {
	cfg, configErr = loadConfig(viper.GetViper(), cfgFile)
}

// loadConfig layers defaults, the config file, AUTHPRX_* environment
// variables and bound flags into a Config. When no config file exists a
// commented default is written to .authprx/config.yaml.
func loadConfig(v *viper.Viper, explicit string) (config.Config, error) {
	defaults := config.Defaults()
	v.SetDefault("host", defaults.Host)
	v.SetDefault("port", defaults.Port)
	v.SetDefault("user", defaults.User)
	v.SetDefault("password", defaults.Password)
	v.SetDefault("debug", defaults.Debug)
	v.SetDefault("log_file", defaults.LogFile)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("storage.path", defaults.Storage.Path)
	v.SetDefault("cache.ttl", defaults.Cache.TTL)
	v.SetDefault("cache.cleanup_interval", defaults.Cache.CleanupInterval)
	v.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	v.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	v.SetDefault("tracing.file_path", defaults.Tracing.FilePath)
	v.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)

	v.SetEnvPrefix("AUTHPRX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	path, found := paths.FindConfig(explicit)
	if !found {
		path = paths.LocalConfigPath()
		if err := config.WriteDefaultConfig(path); err != nil {
			// Continue on defaults and environment alone.
			path = ""
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return config.Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var c config.Config
	if err := v.Unmarshal(&c); err != nil {
		return config.Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := config.Validate(c); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, nil
}

func setup(cmd *cobra.Command, _ []string) error {
	if configErr != nil {
		return configErr
	}
	closeFn, err := initLogging(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	logClose = closeFn
	return nil
}

// initLogging sends logs at cfg.LogLevel to cfg.LogFile in debug mode, and
// only warnings and errors to stderr otherwise.
func initLogging(c config.Config, stderr io.Writer) (func(), error) {
	if !c.Debug {
		log.InitWriter(stderr)
		log.SetMinLevel(log.LevelWarn)
		return func() {}, nil
	}

	logPath := c.LogFile
	if logPath == "" {
		logPath = "debug.log"
	}
	closeFn, err := log.Init(logPath)
	if err != nil {
		return nil, fmt.Errorf("initializing logging: %w", err)
	}
	log.SetMinLevel(log.ParseLevel(c.LogLevel))
	log.Info(log.CatConfig, "authprx starting", "debug", true, "logPath", logPath, "config", viper.ConfigFileUsed())
	return closeFn, nil
}

// runRoot resolves the operator, opens the registry and reports readiness.
func runRoot(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	op, err := credentials.Resolve(operatorSettings(cfg))
	if err != nil {
		return err
	}

	reg, shutdown, err := openRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdown()

	names, err := reg.List(ctx)
	if err != nil {
		return fmt.Errorf("listing apis: %w", err)
	}

	log.Info(log.CatConfig, "authprx ready", "addr", op.Addr(), "user", op.User, "apis", len(names))
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "authprx ready on %s as %s with %d registered apis\n", op.Addr(), op.User, len(names))
	return err
}

// operatorSettings returns c's operator values. An unparsable --port
// falls back to AUTHPRX_PORT.
func operatorSettings(c config.Config) credentials.Settings {
	s := c.Operator()
	if env, ok := os.LookupEnv("AUTHPRX_PORT"); ok {
		s.PortFallbacks = append(s.PortFallbacks, env)
	}
	return s
}

// Execute runs the root command
func Execute() error {
	defer func() { logClose() }()
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
