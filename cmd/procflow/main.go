// Package main is the procflow CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/openprocure/procflow/internal/auth"
	"github.com/openprocure/procflow/internal/config"
	"github.com/openprocure/procflow/internal/docproc"
	"github.com/openprocure/procflow/internal/export"
	"github.com/openprocure/procflow/internal/extract"
	"github.com/openprocure/procflow/internal/filestore"
	"github.com/openprocure/procflow/internal/inbox"
	"github.com/openprocure/procflow/internal/models"
	"github.com/openprocure/procflow/internal/search"
	"github.com/openprocure/procflow/internal/server"
	"github.com/openprocure/procflow/internal/storage"
	"github.com/openprocure/procflow/internal/workflow"
	"github.com/openprocure/procflow/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/procflow/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used instead.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// Optional .env for local development (PROCFLOW_JWT_SECRET etc.).
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "analyze":
		runAnalyze()
	case "export":
		runExport()
	case "version", "--version", "-v":
		fmt.Printf("procflow version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Auth.JWTSecret == "" {
		fmt.Println("No JWT secret configured: set auth.jwt_secret or PROCFLOW_JWT_SECRET")
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	// Drop directories feed receipts into the workflow under a system
	// finance identity.
	inboxCtx, inboxCancel := context.WithCancel(context.Background())
	defer inboxCancel()
	var inboxWatcher *inbox.Watcher
	if len(cfg.Inbox.Directories) > 0 {
		systemUser := &models.User{Username: "inbox", Role: models.RoleFinance}
		inboxWatcher = inbox.NewWatcher(cfg.Inbox.Directories, cfg.Inbox.Extensions,
			func(ctx context.Context, requestID int64, name string, content []byte) error {
				_, err := components.Workflow.SubmitReceipt(ctx, systemUser, requestID, name, content)
				return err
			}, logger)
		if err := inboxWatcher.Start(inboxCtx); err != nil {
			logger.Fatal("Failed to start receipt inbox", zap.Error(err))
		}
	}

	srv := server.NewServer(
		components.Workflow,
		components.Storage,
		components.Issuer,
		components.Index,
		components.Export,
		&cfg.Server,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if inboxWatcher != nil {
		inboxWatcher.Stop()
	}
	inboxCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// runAnalyze runs the proforma extraction pipeline on a local document and
// prints the extracted record as JSON.
func runAnalyze() {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: procflow analyze <file>")
		os.Exit(1)
	}
	path := fs.Arg(0)
	content, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read file: %v\n", err)
		os.Exit(1)
	}

	proc := docproc.NewProcessor(extract.NewExtractor())
	data := proc.AnalyzeProforma(content)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runExport() {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	output := fs.String("o", "purchase-orders.xlsx", "output file path")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open storage: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	data, err := export.NewService(store, logger).PurchaseOrdersXLSX(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*output, data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", *output, err)
		os.Exit(1)
	}
	fmt.Printf("Purchase orders written to %s\n", *output)
}

// Components holds initialized services.
type Components struct {
	Storage  storage.Storage
	Files    *filestore.Store
	Index    *search.Index
	Workflow *workflow.Service
	Issuer   *auth.TokenIssuer
	Export   *export.Service
}

func (c *Components) Close() {
	if c.Index != nil {
		_ = c.Index.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	files, err := filestore.NewStore(cfg.Storage.FilesDir)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize file store: %w", err)
	}

	index, err := search.NewIndex(cfg.Storage.SearchIndexPath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize search index: %w", err)
	}

	proc := docproc.NewProcessor(extract.NewExtractor())
	wf := workflow.NewService(store, files, proc, index, logger)
	issuer := auth.NewTokenIssuer(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute)

	return &Components{
		Storage:  store,
		Files:    files,
		Index:    index,
		Workflow: wf,
		Issuer:   issuer,
		Export:   export.NewService(store, logger),
	}, nil
}

func printUsage() {
	fmt.Println(`procflow - Procure-to-pay workflow server

Usage:
  procflow server [flags]         Start the HTTP API server
  procflow analyze <file>         Extract proforma fields from a document
  procflow export [flags]         Write approved purchase orders to XLSX
  procflow version                Show version
  procflow help                   Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/procflow/config.yaml)
  --debug            Enable debug logging

Export Flags:
  --config string    Config file path
  -o string          Output file path (default: purchase-orders.xlsx)

Examples:
  procflow server
  procflow analyze proforma.pdf
  procflow export -o orders.xlsx`)
}
