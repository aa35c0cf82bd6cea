package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/kjbranchesi/alfcoach/internal/api"
	"github.com/kjbranchesi/alfcoach/internal/catalog"
	"github.com/kjbranchesi/alfcoach/internal/flow"
	"github.com/kjbranchesi/alfcoach/internal/genai"
	"github.com/kjbranchesi/alfcoach/internal/lockfile"
	"github.com/kjbranchesi/alfcoach/internal/progression"
	"github.com/kjbranchesi/alfcoach/internal/status"
	"github.com/kjbranchesi/alfcoach/internal/store"
	"github.com/kjbranchesi/alfcoach/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for alfcoach state data
	DefaultStateDir = "/var/lib/alfcoach"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "alfcoach.db"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Build the stage catalog, applying file overrides when configured
	cat := catalog.Default()
	if *flags.catalogFile != "" {
		if err := cat.ApplyOverridesFromFile(*flags.catalogFile); err != nil {
			slog.Error("Failed to apply catalog overrides", "error", err, "file", *flags.catalogFile)
			os.Exit(1)
		}
		slog.Info("Applied catalog overrides", "file", *flags.catalogFile)
	}
	if err := cat.Validate(); err != nil {
		slog.Error("Invalid stage catalog", "error", err)
		os.Exit(1)
	}

	// Guard the state directory against concurrent instances
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	st, err := openStore(flags)
	if err != nil {
		slog.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	genaiClient, err := genai.NewClient(buildGenAIOptions(flags)...)
	if err != nil {
		slog.Error("Failed to create generation client", "error", err)
		os.Exit(1)
	}

	stateManager := flow.NewStoreBasedStateManager(st)
	engine := flow.NewEngine(st, stateManager, genaiClient, cat, buildProgressionConfig())
	server := api.NewServer(st, engine, status.New(cat))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping alfcoach", "db_driver", *flags.dbDriver, "api_addr", *flags.apiAddr)
	if err := server.Run(ctx, buildAPIOptions(flags)...); err != nil {
		slog.Error("alfcoach failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("alfcoach exited successfully")
}

// Config holds environment configuration
type Config struct {
	DbDriver    string
	DatabaseURL string
	StateDir    string
	OpenAIKey   string
	Model       string
	APIAddr     string
	CatalogFile string
}

// Flags holds command line flag values
type Flags struct {
	stateDir    *string
	dbDriver    *string
	dbDSN       *string
	openaiKey   *string
	model       *string
	apiAddr     *string
	catalogFile *string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
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
		DbDriver:    os.Getenv("ALFCOACH_DB_DRIVER"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StateDir:    os.Getenv("ALFCOACH_STATE_DIR"),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		Model:       os.Getenv("OPENAI_MODEL"),
		APIAddr:     os.Getenv("API_ADDR"),
		CatalogFile: os.Getenv("ALFCOACH_CATALOG_FILE"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No ALFCOACH_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	return config
}

// parseCommandLineFlags parses flags, using environment values as defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:    flag.String("state-dir", config.StateDir, "state directory for alfcoach data (overrides $ALFCOACH_STATE_DIR)"),
		dbDriver:    flag.String("db-driver", config.DbDriver, "database driver: sqlite3 or postgres (overrides $ALFCOACH_DB_DRIVER)"),
		dbDSN:       flag.String("db-dsn", config.DatabaseURL, "database DSN (overrides $DATABASE_URL)"),
		openaiKey:   flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		model:       flag.String("openai-model", config.Model, "OpenAI chat model (overrides $OPENAI_MODEL)"),
		apiAddr:     flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		catalogFile: flag.String("catalog-file", config.CatalogFile, "YAML file with stage catalog overrides (overrides $ALFCOACH_CATALOG_FILE)"),
	}
	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDriver", *flags.dbDriver,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"catalogFile", *flags.catalogFile)
	return flags
}

// openStore selects the storage backend from the configured driver. An
// explicit postgres driver or a postgres-looking DSN selects PostgreSQL;
// everything else falls back to SQLite under the state directory.
func openStore(flags Flags) (store.Store, error) {
	driver := strings.ToLower(*flags.dbDriver)
	dsn := *flags.dbDSN

	if driver == "postgres" || (driver == "" && strings.HasPrefix(dsn, "postgres")) {
		slog.Info("Using PostgreSQL store", "dsn_set", dsn != "")
		return store.NewPostgresStore(store.WithDSN(dsn))
	}

	if dsn == "" || strings.HasPrefix(dsn, "postgres") {
		dsn = filepath.Join(*flags.stateDir, DefaultDBFileName)
	}
	slog.Info("Using SQLite store", "path", dsn)
	return store.NewSQLiteStore(store.WithDSN(dsn))
}

// buildGenAIOptions builds generation client options from flags
func buildGenAIOptions(flags Flags) []genai.Option {
	var opts []genai.Option
	if *flags.openaiKey != "" {
		opts = append(opts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.model != "" {
		opts = append(opts, genai.WithModel(*flags.model))
	}
	return opts
}

// buildAPIOptions builds API server options from flags
func buildAPIOptions(flags Flags) []api.Option {
	var opts []api.Option
	if *flags.apiAddr != "" {
		opts = append(opts, api.WithAddr(*flags.apiAddr))
	}
	return opts
}

// buildProgressionConfig reads attempt budget overrides from the environment
func buildProgressionConfig() progression.Config {
	cfg := progression.DefaultConfig()
	cfg.MaxCoaching = util.ParseIntEnv("ALFCOACH_MAX_COACHING", cfg.MaxCoaching)
	cfg.MaxRefinement = util.ParseIntEnv("ALFCOACH_MAX_REFINEMENT", cfg.MaxRefinement)
	cfg.MaxTotal = util.ParseIntEnv("ALFCOACH_MAX_TOTAL", cfg.MaxTotal)
	return cfg
}
