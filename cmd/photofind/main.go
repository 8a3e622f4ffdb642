// Package main is the Photofind CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cloudzy/photofind/internal/analyzer"
	"github.com/cloudzy/photofind/internal/config"
	"github.com/cloudzy/photofind/internal/embedding"
	"github.com/cloudzy/photofind/internal/ingest"
	"github.com/cloudzy/photofind/internal/keyword"
	"github.com/cloudzy/photofind/internal/metrics"
	"github.com/cloudzy/photofind/internal/models"
	"github.com/cloudzy/photofind/internal/photostore"
	"github.com/cloudzy/photofind/internal/search"
	"github.com/cloudzy/photofind/internal/server"
	"github.com/cloudzy/photofind/internal/snapshot"
	"github.com/cloudzy/photofind/internal/vector"
	"github.com/cloudzy/photofind/internal/watcher"
	"github.com/cloudzy/photofind/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/photofind/config.yaml"

// loadConfig loads config from path. When path is the default, a config.yaml
// in the current directory takes precedence, so running from the project dir
// uses the project's config.
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
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "similar":
		runSimilar()
	case "ingest":
		runIngest()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("photofind version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// Components holds the wired application: storage, embed/analyze providers,
// indexes, snapshot manager, ingestion pipeline, and query engine.
type Components struct {
	Store     photostore.Store
	Embedder  embedding.Embedder
	Analyzer  analyzer.Analyzer
	Index     vector.Index
	Keywords  keyword.KeywordIndex
	Snapshots *snapshot.Manager
	Pipeline  *ingest.Pipeline
	Engine    *search.Engine
}

// Close releases everything in reverse dependency order. The snapshot
// manager goes first so the final flush sees a live index.
func (c *Components) Close(ctx context.Context) {
	if c.Snapshots != nil {
		_ = c.Snapshots.Close(ctx)
	}
	if c.Keywords != nil {
		_ = c.Keywords.Close()
	}
	if c.Index != nil {
		_ = c.Index.Close()
	}
	if c.Analyzer != nil {
		_ = c.Analyzer.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func newEmbedder(cfg *config.Config, logger *zap.Logger) embedding.Embedder {
	var inner embedding.Embedder
	switch cfg.Embedding.Provider {
	case "openai":
		inner = embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			APIKey:     os.Getenv(cfg.Embedding.APIKeyEnv),
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Logger:     logger,
		})
	case "onnx":
		onnxEmbedder, err := embedding.NewONNXEmbedder(
			cfg.Embedding.ModelPath,
			cfg.Embedding.Dimensions,
			cfg.Embedding.MaxTokens,
		)
		if err != nil {
			logger.Warn("ONNX embedder unavailable, falling back to mock", zap.Error(err))
			inner = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
		} else {
			inner = onnxEmbedder
		}
	default:
		inner = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	}
	return embedding.Cached(inner, cfg.Embedding.CacheSize)
}

func newAnalyzer(cfg *config.Config, logger *zap.Logger) analyzer.Analyzer {
	if cfg.Analyzer.Provider == "openai" {
		return analyzer.NewOpenAIAnalyzer(analyzer.OpenAIConfig{
			APIKey:  os.Getenv(cfg.Analyzer.APIKeyEnv),
			BaseURL: cfg.Analyzer.BaseURL,
			Model:   cfg.Analyzer.Model,
			Logger:  logger,
		})
	}
	return analyzer.NewMockAnalyzer()
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	for _, dir := range []string{
		filepath.Dir(cfg.Storage.DatabasePath),
		filepath.Dir(cfg.Storage.SnapshotPath),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data dir %s: %w", dir, err)
		}
	}

	store, err := photostore.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize photo store: %w", err)
	}

	metric, err := vector.ParseMetric(cfg.Index.Metric)
	if err != nil {
		store.Close()
		return nil, err
	}
	index, err := vector.NewIndex(cfg.Index.Type, cfg.Embedding.Dimensions, metric)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}

	keywords, err := keyword.NewBleveIndex(cfg.Storage.KeywordIndexPath)
	if err != nil {
		index.Close()
		store.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	embedder := newEmbedder(cfg, logger)
	an := newAnalyzer(cfg, logger)

	snapshots := snapshot.NewManager(index, cfg.Storage.SnapshotPath, snapshot.Options{
		MaxPending: cfg.Flush.MaxPending,
		Interval:   cfg.Flush.Interval(),
	}, logger)

	pipeline := ingest.NewPipeline(store, an, embedder, index, keywords, snapshots, logger)
	engine := search.NewEngine(store, embedder, index, keywords, snapshots, logger)

	c := &Components{
		Store:     store,
		Embedder:  embedder,
		Analyzer:  an,
		Index:     index,
		Keywords:  keywords,
		Snapshots: snapshots,
		Pipeline:  pipeline,
		Engine:    engine,
	}

	// Restore the index from the last snapshot, then repair any divergence
	// against the photo store. Missing photos are re-embedded from their
	// stored descriptors; orphaned vectors are dropped.
	loaded, err := snapshots.Load(ctx)
	if err != nil {
		c.Close(ctx)
		return nil, fmt.Errorf("failed to restore index: %w", err)
	}
	authoritative, err := store.AllIDs(ctx)
	if err != nil {
		c.Close(ctx)
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	added, removed, recErr := snapshots.Reconcile(ctx, loaded.IDs(), authoritative, pipeline.Reembed)
	if recErr != nil {
		logger.Warn("reconciliation finished with errors", zap.Error(recErr))
	}
	if added > 0 || removed > 0 {
		logger.Info("index reconciled",
			zap.Int("reembedded", added),
			zap.Int("dropped", removed))
	}
	metrics.IndexEntries.Set(float64(index.Count()))

	return c, nil
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
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode))

	metrics.Register()

	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}

	flushCtx, flushCancel := context.WithCancel(ctx)
	components.Snapshots.Start(flushCtx)

	watchCtx, watchCancel := context.WithCancel(ctx)
	var watchSvc *watcher.Watcher
	if cfg.Watch.Enabled {
		pipeline := components.Pipeline
		store := components.Store
		watchSvc = watcher.NewWatcher(cfg.Storage.UploadDir, cfg.Watch.Extensions,
			func(path string) {
				// The upload handler writes into this directory and
				// ingests the file itself; only genuinely new drops
				// get analyzed here.
				if _, _, err := pipeline.IngestFileIfNew(context.Background(), path); err != nil {
					logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
				}
			},
			func(path string) {
				photo, err := store.FindByPath(context.Background(), path)
				if err != nil {
					return
				}
				if err := pipeline.Remove(context.Background(), photo.ID); err != nil {
					logger.Warn("watch remove failed", zap.String("path", path), zap.Error(err))
				}
			},
			logger)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
	}

	srv := server.NewServer(components.Engine, components.Pipeline, components.Store, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if watchSvc != nil {
		watchSvc.Stop()
	}
	watchCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
	flushCancel()
	components.Close(shutdownCtx)
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8700", "server URL")
	limit := fs.Int("limit", 10, "number of results")
	keywordMode := fs.Bool("keyword", false, "keyword search instead of semantic")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: photofind search [flags] <query>")
		os.Exit(1)
	}
	query := strings.TrimSpace(strings.Join(fs.Args(), " "))

	endpoint := "/api/v1/search"
	if *keywordMode {
		endpoint = "/api/v1/search/keyword"
	}
	u := fmt.Sprintf("%s%s?q=%s&k=%d", *serverURL, endpoint, url.QueryEscape(query), *limit)
	var resp models.SearchResponse
	if err := getJSON(u, &resp); err != nil {
		fmt.Printf("Search failed: %v\n", err)
		os.Exit(1)
	}
	printResults(&resp, *outputFormat)
}

func runSimilar() {
	fs := flag.NewFlagSet("similar", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8700", "server URL")
	limit := fs.Int("limit", 10, "number of results")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: photofind similar [flags] <photo-id>")
		os.Exit(1)
	}

	u := fmt.Sprintf("%s/api/v1/photos/%s/similar?k=%d", *serverURL, url.PathEscape(fs.Arg(0)), *limit)
	var resp models.SearchResponse
	if err := getJSON(u, &resp); err != nil {
		fmt.Printf("Similar search failed: %v\n", err)
		os.Exit(1)
	}
	printResults(&resp, *outputFormat)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8700", "server URL")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: photofind ingest [flags] <image-file>...")
		os.Exit(1)
	}
	for _, path := range fs.Args() {
		photo, err := uploadPhoto(*serverURL, path)
		if err != nil {
			fmt.Printf("Failed to ingest %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("Ingested %s (id %d, tags: %s)\n", photo.Filename, photo.ID, strings.Join(photo.Tags, ", "))
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8700", "server URL")
	_ = fs.Parse(os.Args[2:])

	var h models.Health
	if err := getJSON(*serverURL+"/health", &h); err != nil {
		fmt.Printf("Status failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Entries:     %d\n", h.Entries)
	fmt.Printf("Generation:  %d\n", h.Generation)
	fmt.Printf("Dimensions:  %d\n", h.Dimensions)
}

func getJSON(u string, out interface{}) error {
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func uploadPhoto(serverURL, path string) (*models.Photo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: 2 * time.Minute}
	resp, err := client.Post(serverURL+"/api/v1/photos", mw.FormDataContentType(), body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	var photo models.Photo
	if err := json.NewDecoder(resp.Body).Decode(&photo); err != nil {
		return nil, err
	}
	return &photo, nil
}

func printResults(resp *models.SearchResponse, format string) {
	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(resp)
		return
	}
	if resp.Total == 0 {
		fmt.Println("No results.")
		return
	}
	fmt.Printf("%d results (%d ms)\n\n", resp.Total, resp.QueryTimeMs)
	for _, r := range resp.Results {
		fmt.Printf("%2d. [%d] %s", r.Rank, r.PhotoID, r.Filename)
		if r.Score > 0 {
			fmt.Printf("  (score %.3f)", r.Score)
		} else {
			fmt.Printf("  (distance %.4f)", r.Distance)
		}
		fmt.Println()
		if len(r.Tags) > 0 {
			fmt.Printf("    tags: %s\n", strings.Join(r.Tags, ", "))
		}
		if r.Caption != "" {
			fmt.Printf("    %s\n", r.Caption)
		}
	}
}

func printUsage() {
	fmt.Println(`photofind - Semantic photo search engine

Usage:
  photofind server [flags]            Start the HTTP server
  photofind search [flags] <query>    Search photos by text
  photofind similar [flags] <id>      Find photos similar to a photo
  photofind ingest [flags] <file>...  Upload and index photos
  photofind status [flags]            Show index status
  photofind version                   Show version
  photofind help                      Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/photofind/config.yaml)
  --debug            Enable debug logging

Search Flags:
  --server string    Server URL (default: http://localhost:8700)
  --limit int        Number of results (default: 10)
  --keyword          Keyword search over tags and captions instead of semantic search
  --output string    Output format: text or json (default: text)

Examples:
  photofind server
  photofind search sunset over the ocean
  photofind search --keyword beach
  photofind similar 42
  photofind ingest vacation/*.jpg
  photofind status`)
}
