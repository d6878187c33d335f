// Package main is the entry point for the flowtree server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dvalderas/flowtree/pkg/api"
	"github.com/dvalderas/flowtree/pkg/config"
	"github.com/dvalderas/flowtree/pkg/logging"
	"github.com/dvalderas/flowtree/pkg/registry"
	"github.com/dvalderas/flowtree/pkg/storage"
)

var (
	// Command-line flags
	configPath = flag.String("config", "", "Path to config file")
	version    = flag.Bool("version", false, "Print version information")
)

// Version information
const (
	AppVersion = "0.1.0"
	AppName    = "flowtree"
)

func main() {
	// Load environment variables from .env file
	_ = godotenv.Load()

	flag.Parse()

	if *version {
		fmt.Printf("%s version %s\n", AppName, AppVersion)
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app, err := NewApp(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Handle graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error)
	go func() {
		errCh <- app.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Application failed: %v", err)
		}
	case <-stop:
		log.Println("Shutting down gracefully...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.Stop(ctx); err != nil {
			log.Fatalf("Error during shutdown: %v", err)
		}
	}
}

// loadConfig loads the configuration from the specified path or creates a
// default one.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config

	if *configPath != "" {
		var err error
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", *configPath, err)
		}
	} else {
		locations := []string{
			"./config.json",
			"./configs/config.json",
			filepath.Join(os.Getenv("HOME"), ".flowtree", "config.json"),
			"/etc/flowtree/config.json",
		}

		for _, path := range locations {
			if loadedCfg, err := config.LoadConfig(path); err == nil {
				cfg = loadedCfg
				break
			}
		}

		if cfg == nil {
			cfg = config.DefaultConfig()

			defaultPath := filepath.Join(os.Getenv("HOME"), ".flowtree", "config.json")
			if err := config.SaveConfig(cfg, defaultPath); err != nil {
				return nil, fmt.Errorf("failed to save default config: %w", err)
			}

			fmt.Printf("Created default configuration at %s\n", defaultPath)
		}
	}

	overrideConfigFromEnv(cfg)
	return cfg, nil
}

// overrideConfigFromEnv overrides configuration values from environment
// variables.
func overrideConfigFromEnv(cfg *config.Config) {
	// Server configuration
	if host := os.Getenv("FLOWTREE_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("FLOWTREE_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}

	// Storage configuration
	if storageType := os.Getenv("FLOWTREE_STORAGE_TYPE"); storageType != "" {
		cfg.Storage.Type = storageType
	}

	// DynamoDB configuration
	if region := os.Getenv("FLOWTREE_DYNAMODB_REGION"); region != "" {
		cfg.Storage.DynamoDB.Region = region
	}
	if endpoint := os.Getenv("FLOWTREE_DYNAMODB_ENDPOINT"); endpoint != "" {
		cfg.Storage.DynamoDB.Endpoint = endpoint
	}
	if tablePrefix := os.Getenv("FLOWTREE_DYNAMODB_TABLE_PREFIX"); tablePrefix != "" {
		cfg.Storage.DynamoDB.TablePrefix = tablePrefix
	}

	// PostgreSQL configuration
	if host := os.Getenv("FLOWTREE_POSTGRES_HOST"); host != "" {
		cfg.Storage.Postgres.Host = host
	}
	if port := os.Getenv("FLOWTREE_POSTGRES_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Storage.Postgres.Port = p
		}
	}
	if database := os.Getenv("FLOWTREE_POSTGRES_DATABASE"); database != "" {
		cfg.Storage.Postgres.Database = database
	}
	if user := os.Getenv("FLOWTREE_POSTGRES_USER"); user != "" {
		cfg.Storage.Postgres.User = user
	}
	if password := os.Getenv("FLOWTREE_POSTGRES_PASSWORD"); password != "" {
		cfg.Storage.Postgres.Password = password
	}
	if sslMode := os.Getenv("FLOWTREE_POSTGRES_SSL_MODE"); sslMode != "" {
		cfg.Storage.Postgres.SSLMode = sslMode
	}

	// Validation limits
	if maxPaths := os.Getenv("FLOWTREE_MAX_PATHS"); maxPaths != "" {
		if value, err := strconv.Atoi(maxPaths); err == nil {
			cfg.Validation.MaxPaths = value
		}
	}
	if maxDepth := os.Getenv("FLOWTREE_MAX_DEPTH"); maxDepth != "" {
		if value, err := strconv.Atoi(maxDepth); err == nil {
			cfg.Validation.MaxDepth = value
		}
	}

	// Logging configuration
	if level := os.Getenv("FLOWTREE_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("FLOWTREE_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}
}

// App represents the flowtree application
type App struct {
	config          *config.Config
	server          *api.Server
	storageProvider storage.StorageProvider
	logger          logging.Logger
}

// NewApp creates a new application instance
func NewApp(cfg *config.Config) (*App, error) {
	logger := logging.NewLogger(logging.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	// Initialize storage provider
	providerConfig := storage.ProviderConfig{
		Type: storage.ProviderType(cfg.Storage.Type),
		DynamoDB: &storage.DynamoDBProviderConfig{
			Region:      cfg.Storage.DynamoDB.Region,
			Endpoint:    cfg.Storage.DynamoDB.Endpoint,
			TablePrefix: cfg.Storage.DynamoDB.TablePrefix,
		},
		PostgreSQL: &storage.PostgreSQLProviderConfig{
			Host:     cfg.Storage.Postgres.Host,
			Port:     cfg.Storage.Postgres.Port,
			User:     cfg.Storage.Postgres.User,
			Password: cfg.Storage.Postgres.Password,
			Database: cfg.Storage.Postgres.Database,
			SSLMode:  cfg.Storage.Postgres.SSLMode,
		},
	}

	storageProvider, err := storage.NewProvider(providerConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage provider: %w", err)
	}

	if err := storageProvider.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage provider: %w", err)
	}

	logger.Info("storage provider ready", logging.F("type", cfg.Storage.Type))

	projects := registry.NewProjectRegistry(storageProvider, logger)
	server := api.NewServer(cfg, projects, logger)

	return &App{
		config:          cfg,
		server:          server,
		storageProvider: storageProvider,
		logger:          logger,
	}, nil
}

// Start starts the application
func (a *App) Start() error {
	return a.server.Start()
}

// Stop stops the application gracefully
func (a *App) Stop(ctx context.Context) error {
	if err := a.server.Stop(ctx); err != nil {
		return err
	}
	return a.storageProvider.Close()
}
