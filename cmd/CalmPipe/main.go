package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/BTreeMap/CalmPipe/internal/api"
	"github.com/BTreeMap/CalmPipe/internal/genai"
	"github.com/BTreeMap/CalmPipe/internal/lockfile"
	"github.com/BTreeMap/CalmPipe/internal/remote"
	"github.com/BTreeMap/CalmPipe/internal/scheduler"
	"github.com/BTreeMap/CalmPipe/internal/store"
	"github.com/BTreeMap/CalmPipe/internal/util"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for CalmPipe state data
	DefaultStateDir = "/var/lib/calmpipe"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "calmpipe.db"
)

func main() {
	// Load environment configuration
	config := loadEnvironmentConfig()

	// Initialize structured logger
	initializeLogger(config.Debug)

	// Parse command line flags
	flags, err := parseCommandLineFlags(flag.CommandLine, os.Args[1:], config)
	if err != nil {
		slog.Error("Failed to parse flags", "error", err)
		os.Exit(2)
	}

	if *flags.insightCron != "" {
		if err := scheduler.ValidateExpr(*flags.insightCron); err != nil {
			slog.Error("Invalid insight cron expression", "error", err, "expr", *flags.insightCron)
			os.Exit(2)
		}
	}

	// A file-backed store is single-process; hold the state directory lock.
	release := func() {}
	if usesFileStore(flags) {
		lock, err := lockfile.AcquireLock(*flags.stateDir)
		if err != nil {
			slog.Error("Failed to acquire state directory lock", "error", err, "state_dir", *flags.stateDir)
			os.Exit(1)
		}
		release = func() {
			if err := lock.Release(); err != nil {
				slog.Warn("Failed to release state directory lock", "error", err)
			}
		}
	}

	// Build module options
	storeOpts := buildStoreOptions(flags)
	genaiOpts := buildGenAIOptions(flags)
	apiOpts := buildAPIOptions(flags)

	// Start the service
	slog.Info("Bootstrapping CalmPipe with configured modules")
	slog.Debug("Module options counts", "store", len(storeOpts), "genai", len(genaiOpts), "api", len(apiOpts))
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr)
	err = api.Run(storeOpts, genaiOpts, apiOpts)
	release()
	if err != nil {
		slog.Error("CalmPipe failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("CalmPipe exited successfully")
}

// Config holds environment configuration
type Config struct {
	Debug         bool
	DatabaseURL   string
	StateDir      string
	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string
	ClassifierURL string
	RemoteTimeout time.Duration
	APIAddr       string
	InsightCron   string
}

// Flags holds command line flag values
type Flags struct {
	stateDir      *string
	dbDSN         *string
	openaiKey     *string
	openaiModel   *string
	openaiBaseURL *string
	classifierURL *string
	remoteTimeout *time.Duration
	apiAddr       *string
	insightCron   *string
}

// initializeLogger sets up structured logging
func initializeLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		Debug:         util.ParseBoolEnv("CALMPIPE_DEBUG", false),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		StateDir:      os.Getenv("CALMPIPE_STATE_DIR"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   os.Getenv("OPENAI_MODEL"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		ClassifierURL: os.Getenv("CLASSIFIER_URL"),
		RemoteTimeout: util.ParseDurationEnv("REMOTE_TIMEOUT", remote.DefaultTimeout),
		APIAddr:       os.Getenv("API_ADDR"),
		InsightCron:   os.Getenv("INSIGHT_CRON"),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No CALMPIPE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"CALMPIPE_DEBUG", config.Debug,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"CALMPIPE_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"OPENAI_MODEL", config.OpenAIModel,
		"CLASSIFIER_URL", config.ClassifierURL,
		"REMOTE_TIMEOUT", config.RemoteTimeout,
		"API_ADDR", config.APIAddr,
		"INSIGHT_CRON", config.InsightCron)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(fs *flag.FlagSet, args []string, config Config) (Flags, error) {
	flags := Flags{
		stateDir:      fs.String("state-dir", config.StateDir, "state directory for CalmPipe data (overrides $CALMPIPE_STATE_DIR)"),
		dbDSN:         fs.String("db-dsn", config.DatabaseURL, "database DSN, a Postgres URL or SQLite path (overrides $DATABASE_URL)"),
		openaiKey:     fs.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		openaiModel:   fs.String("openai-model", config.OpenAIModel, "OpenAI chat model (overrides $OPENAI_MODEL)"),
		openaiBaseURL: fs.String("openai-base-url", config.OpenAIBaseURL, "OpenAI-compatible API base URL (overrides $OPENAI_BASE_URL)"),
		classifierURL: fs.String("classifier-url", config.ClassifierURL, "HTTP classifier service base URL (overrides $CLASSIFIER_URL)"),
		remoteTimeout: fs.Duration("remote-timeout", config.RemoteTimeout, "timeout for each remote classifier call (overrides $REMOTE_TIMEOUT)"),
		apiAddr:       fs.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		insightCron:   fs.String("insight-cron", config.InsightCron, "cron schedule for weekly insight refresh (overrides $INSIGHT_CRON)"),
	}

	if err := fs.Parse(args); err != nil {
		return flags, err
	}

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"classifierURL", *flags.classifierURL,
		"remoteTimeout", *flags.remoteTimeout,
		"apiAddr", *flags.apiAddr,
		"insightCron", *flags.insightCron)

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags, nil
}

// usesFileStore reports whether the configured DSN is a SQLite file.
func usesFileStore(flags Flags) bool {
	return *flags.dbDSN != "" && store.DetectDSNType(*flags.dbDSN) != "postgres"
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN == "" {
		slog.Debug("No database DSN provided, will use in-memory store")
		return storeOpts
	}
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql")
		return append(storeOpts, store.WithPostgresDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", *flags.dbDSN)
	return append(storeOpts, store.WithSQLiteDSN(*flags.dbDSN))
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.openaiModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(*flags.openaiModel))
	}
	if *flags.openaiBaseURL != "" {
		genaiOpts = append(genaiOpts, genai.WithBaseURL(*flags.openaiBaseURL))
	}
	return genaiOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.remoteTimeout > 0 {
		apiOpts = append(apiOpts, api.WithRemoteTimeout(*flags.remoteTimeout))
	}
	if *flags.classifierURL != "" {
		apiOpts = append(apiOpts, api.WithClassifierURL(*flags.classifierURL))
	}
	if *flags.insightCron != "" {
		apiOpts = append(apiOpts, api.WithInsightCron(*flags.insightCron))
	}
	return apiOpts
}
