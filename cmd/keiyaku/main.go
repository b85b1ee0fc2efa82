// Package main is the Keiyaku CLI entry point.
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
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/keiyakuhq/keiyaku/internal/answer"
	"github.com/keiyakuhq/keiyaku/internal/chunker"
	"github.com/keiyakuhq/keiyaku/internal/cli"
	"github.com/keiyakuhq/keiyaku/internal/config"
	"github.com/keiyakuhq/keiyaku/internal/embedding"
	"github.com/keiyakuhq/keiyaku/internal/extract"
	"github.com/keiyakuhq/keiyaku/internal/ingest"
	"github.com/keiyakuhq/keiyaku/internal/keyword"
	"github.com/keiyakuhq/keiyaku/internal/llm"
	"github.com/keiyakuhq/keiyaku/internal/models"
	"github.com/keiyakuhq/keiyaku/internal/search"
	"github.com/keiyakuhq/keiyaku/internal/server"
	"github.com/keiyakuhq/keiyaku/internal/storage"
	"github.com/keiyakuhq/keiyaku/internal/vector"
	"github.com/keiyakuhq/keiyaku/internal/watcher"
	"github.com/keiyakuhq/keiyaku/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/keiyaku/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists it
// is used, so that "keiyaku server" from the project dir uses the project's
// config. Returns the config and the path that was actually loaded.
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
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "search":
		runSearch()
	case "ask":
		runAsk()
	case "reprocess":
		runReprocess()
	case "delete":
		runDelete()
	case "progress":
		runProgress()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("keiyaku version %s\n", version)
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
	debug := fs.Bool("debug", false, "enable debug logging (pipeline stages, retrieval fusion, etc.)")
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
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()
	components.Orchestrator.Start()

	var completer llm.Completer
	client, err := llm.NewClient(llm.ClientConfig{
		BaseURL:   cfg.LLM.BaseURL,
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
		Timeout:   cfg.LLM.Timeout(),
	}, cfg.LLM.APIKeyEnv)
	if err != nil {
		logger.Warn("completion model unavailable, /answer will fail until configured", zap.Error(err))
		completer = &unavailableCompleter{err: err}
	} else {
		completer = client
	}
	defer completer.Close()

	answerOpts := []answer.Option{}
	if debugMode {
		answerOpts = append(answerOpts, answer.WithLogger(logger))
	}
	answers := answer.NewService(components.Engine, completer, &cfg.Answer, answerOpts...)

	var inbox *watcher.Inbox
	if len(cfg.Inbox.Directories) > 0 {
		inboxOpts := []watcher.Option{}
		if debugMode {
			inboxOpts = append(inboxOpts, watcher.WithLogger(logger))
		}
		orch := components.Orchestrator
		inbox = watcher.NewInbox(cfg.Inbox.Directories, cfg.Inbox.Extensions, func(filename string, content []byte) {
			if _, err := orch.Ingest(context.Background(), "", filename, content, ""); err != nil {
				logger.Warn("inbox ingest failed", zap.String("filename", filename), zap.Error(err))
			}
		}, inboxOpts...)
		if err := inbox.Start(); err != nil {
			logger.Fatal("Failed to start inbox watcher", zap.Error(err))
		}
	}

	srv := server.NewServer(
		components.Engine,
		answers,
		components.Orchestrator,
		components.Storage,
		components.VectorIndex,
		cfg,
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
	if inbox != nil {
		inbox.Stop()
	}
	components.Orchestrator.Stop()
	if cfg.Storage.VectorIndexPath != "" {
		if err := components.VectorIndex.Save(cfg.Storage.VectorIndexPath); err != nil {
			logger.Warn("vector index save failed", zap.String("path", cfg.Storage.VectorIndexPath), zap.Error(err))
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// unavailableCompleter surfaces the construction error on every call so the
// server can run search and ingestion without a configured completion model.
type unavailableCompleter struct {
	err error
}

func (u *unavailableCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	return "", u.err
}

func (u *unavailableCompleter) Close() error { return nil }

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", `server URL (empty = use direct storage when server is not running)`)
	wait := fs.Bool("wait", false, "poll until processing reaches a terminal state (server mode)")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: keiyaku ingest [flags] <file> [file...]")
		os.Exit(1)
	}

	if *serverURL != "" {
		for _, path := range fs.Args() {
			id, err := ingestViaHTTP(*serverURL, path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Ingest failed for %s: %v\n", path, err)
				os.Exit(1)
			}
			fmt.Printf("Accepted: %s (%s)\n", filepath.Base(path), id)
			if *wait {
				doc, err := waitForDocument(*serverURL, id, 10*time.Minute)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Wait failed: %v\n", err)
					os.Exit(1)
				}
				if doc.Status == models.StatusFailed {
					fmt.Fprintf(os.Stderr, "Processing failed: %s\n", doc.StatusReason)
					os.Exit(1)
				}
				fmt.Printf("Indexed: %s (%d pages)\n", doc.Filename, doc.PageCount)
			}
		}
		return
	}

	// Direct mode: run the full pipeline in-process.
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()
	components.Orchestrator.Start()

	ctx := context.Background()
	ids := make([]string, 0, fs.NArg())
	for _, path := range fs.Args() {
		content, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Read failed: %v\n", err)
			os.Exit(1)
		}
		id, err := components.Orchestrator.Ingest(ctx, "", filepath.Base(path), content, "")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ingest failed for %s: %v\n", path, err)
			os.Exit(1)
		}
		ids = append(ids, id)
	}
	for _, id := range ids {
		doc := pollDirect(ctx, components.Orchestrator, id, 10*time.Minute)
		if doc == nil {
			fmt.Fprintf(os.Stderr, "Timed out waiting for %s\n", id)
			os.Exit(1)
		}
		if doc.Status == models.StatusFailed {
			fmt.Fprintf(os.Stderr, "Processing failed for %s: %s\n", doc.Filename, doc.StatusReason)
			os.Exit(1)
		}
		fmt.Printf("Indexed: %s (%s, %d pages)\n", doc.Filename, doc.ID, doc.PageCount)
	}
	components.Orchestrator.Stop()
	if cfg.Storage.VectorIndexPath != "" {
		if err := components.VectorIndex.Save(cfg.Storage.VectorIndexPath); err != nil {
			logger.Warn("vector index save failed", zap.Error(err))
		}
	}
}

func pollDirect(ctx context.Context, orch *ingest.Orchestrator, id string, timeout time.Duration) *models.Document {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		doc, err := orch.GetStatus(ctx, id)
		if err == nil && doc.Status.Terminal() {
			return doc
		}
		time.Sleep(200 * time.Millisecond)
	}
	return nil
}

func ingestViaHTTP(serverURL, path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(content); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}
	resp, err := http.Post(serverURL+"/api/v1/documents", mw.FormDataContentType(), &body)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return out.ID, nil
}

func waitForDocument(serverURL, id string, timeout time.Duration) (*models.Document, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(serverURL + "/api/v1/documents/" + id)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
		}
		var doc models.Document
		err = json.NewDecoder(resp.Body).Decode(&doc)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		if doc.Status.Terminal() {
			return &doc, nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return nil, fmt.Errorf("timed out after %s", timeout)
}

// buildQueryString joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildQueryString(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// reorderFlagArgs moves any flags (and their values) that appear after the
// query to the front of the slice so that flag.Parse() sees them. Go's flag
// package stops at the first non-flag argument, so `keiyaku search "query"
// -limit 5` would otherwise leave -limit unparsed.
func reorderFlagArgs(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runSearch() {
	searchArgs := reorderFlagArgs(os.Args[2:])
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", `server URL (empty = use direct storage when server is not running)`)
	limit := fs.Int("limit", 0, "number of results (0 = server default)")
	documentID := fs.String("document", "", "restrict retrieval to one document ID")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(searchArgs)

	if fs.NArg() < 1 {
		fmt.Println("Usage: keiyaku search [flags] <query>")
		os.Exit(1)
	}
	queryStr := buildQueryString(fs.Args())
	if queryStr == "" {
		fmt.Println("Usage: keiyaku search [flags] <query>")
		os.Exit(1)
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	query := &models.SearchQuery{Query: queryStr, Limit: *limit, DocumentID: *documentID}

	var candidates []*models.RetrievalCandidate
	if *serverURL != "" {
		// Use the HTTP API when the server is running (avoids a
		// Bleve/SQLite lock conflict with the server process).
		candidates, err = searchViaHTTP(*serverURL, query)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewLogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger, cfg.Debug)
		if err != nil {
			logger.Fatal("Failed to initialize", zap.Error(err))
		}
		defer components.Close()
		candidates, err = components.Engine.Retrieve(context.Background(), query)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
	}
	if err := cli.WriteCandidates(os.Stdout, queryStr, candidates, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func searchViaHTTP(serverURL string, query *models.SearchQuery) ([]*models.RetrievalCandidate, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var out struct {
		Candidates []*models.RetrievalCandidate `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Candidates, nil
}

func runAsk() {
	askArgs := reorderFlagArgs(os.Args[2:])
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	documentID := fs.String("document", "", "restrict retrieval to one document ID")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(askArgs)

	if fs.NArg() < 1 {
		fmt.Println("Usage: keiyaku ask [flags] <question>")
		os.Exit(1)
	}
	question := buildQueryString(fs.Args())
	if question == "" {
		fmt.Println("Usage: keiyaku ask [flags] <question>")
		os.Exit(1)
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	body, _ := json.Marshal(&models.SearchQuery{Query: question, DocumentID: *documentID})
	resp, err := http.Post(*serverURL+"/api/v1/answer", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Answer failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var ans models.Answer
	if err := json.NewDecoder(resp.Body).Decode(&ans); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteAnswer(os.Stdout, &ans, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runReprocess() {
	fs := flag.NewFlagSet("reprocess", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	all := fs.Bool("all", false, "re-run the pipeline for every document")
	_ = fs.Parse(os.Args[2:])

	url := *serverURL + "/api/v1/reindex"
	if !*all {
		if fs.NArg() < 1 {
			fmt.Println("Usage: keiyaku reprocess [flags] <document-id>  (or --all)")
			os.Exit(1)
		}
		url = *serverURL + "/api/v1/documents/" + fs.Arg(0) + "/reprocess"
	}
	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Reprocess failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	fmt.Println("Queued. Track with: keiyaku progress")
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: keiyaku delete [flags] <document-id>")
		os.Exit(1)
	}
	docID := fs.Arg(0)
	req, _ := http.NewRequest(http.MethodDelete, *serverURL+"/api/v1/documents/"+docID, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Delete failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	fmt.Printf("Document deleted: %s\n", docID)
}

func runProgress() {
	fs := flag.NewFlagSet("progress", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	watch := fs.Bool("watch", false, "poll until ingestion is idle")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	for {
		resp, err := http.Get(*serverURL + "/api/v1/progress")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
			os.Exit(1)
		}
		var p models.Progress
		err = json.NewDecoder(resp.Body).Decode(&p)
		resp.Body.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteProgress(os.Stdout, &p, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		if !*watch || !p.IsRunning {
			return
		}
		time.Sleep(time.Second)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(*serverURL + "/api/v1/status")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Status failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var status struct {
		Documents       int64          `json:"documents"`
		Chunks          int64          `json:"chunks"`
		VectorIndexSize int            `json:"vector_index_size"`
		DiskUsageBytes  *int64         `json:"disk_usage_bytes,omitempty"`
		Config          map[string]any `json:"config,omitempty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("documents:          %d\n", status.Documents)
		fmt.Printf("chunks:             %d\n", status.Chunks)
		fmt.Printf("vector_index_size:  %d\n", status.VectorIndexSize)
		if status.DiskUsageBytes != nil {
			fmt.Printf("disk_usage_bytes:   %d\n", *status.DiskUsageBytes)
		}
		if len(status.Config) > 0 {
			fmt.Println()
			fmt.Println("# configuration")
			for _, key := range []string{"embedding_provider", "embedding_dimensions", "chunk_size", "chunk_overlap", "rrf_k", "distance_threshold", "workers"} {
				if v, ok := status.Config[key]; ok {
					fmt.Printf("%-20s %v\n", key+":", v)
				}
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Storage      storage.Storage
	Blobs        *storage.BlobStore
	Embedder     embedding.Embedder
	VectorIndex  vector.Index
	KeywordIndex keyword.Index
	Engine       *search.Engine
	Orchestrator *ingest.Orchestrator
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.VectorIndex != nil {
		_ = c.VectorIndex.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	blobs, err := storage.NewBlobStore(cfg.Storage.BlobPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize blob store: %w", err)
	}

	embedder, err := embedding.NewEmbedder(&cfg.Embedding, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	vectorIndex, err := vector.NewMemoryIndex(cfg.Embedding.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	if cfg.Storage.VectorIndexPath != "" {
		if loadErr := vectorIndex.Load(cfg.Storage.VectorIndexPath); loadErr != nil {
			logger.Warn("vector index load skipped (reprocess to rebuild)",
				zap.String("path", cfg.Storage.VectorIndexPath), zap.Error(loadErr))
		}
	}
	logger.Info("vector index initialized", zap.Int("size", vectorIndex.Size()))

	keywordIndex, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	extractOpts := []extract.Option{}
	if debug {
		extractOpts = append(extractOpts, extract.WithLogger(logger))
	}
	if cfg.Extract.OCRProvider == "vision" {
		ocr, err := extract.NewVisionOCR(context.Background(), cfg.Extract.OCRTimeout(), logger)
		if err != nil {
			logger.Warn("OCR unavailable, image-only pages will yield no text", zap.Error(err))
		} else {
			extractOpts = append(extractOpts, extract.WithOCR(ocr))
		}
	}
	extractor := extract.NewExtractor(cfg.Extract.MinCharDensity, extractOpts...)

	engineOpts := []search.Option{}
	if debug {
		engineOpts = append(engineOpts, search.WithLogger(logger))
	}
	engine := search.NewEngine(store, embedder, vectorIndex, keywordIndex, &cfg.Search, engineOpts...)

	orchOpts := []ingest.Option{}
	if debug {
		orchOpts = append(orchOpts, ingest.WithLogger(logger))
	}
	orch := ingest.NewOrchestrator(
		store, blobs, extractor,
		chunker.NewChunker(cfg.Search.ChunkSize, cfg.Search.ChunkOverlap),
		embedder, vectorIndex, keywordIndex, &cfg.Ingest, orchOpts...,
	)

	return &Components{
		Storage:      store,
		Blobs:        blobs,
		Embedder:     embedder,
		VectorIndex:  vectorIndex,
		KeywordIndex: keywordIndex,
		Engine:       engine,
		Orchestrator: orch,
	}, nil
}

func printUsage() {
	fmt.Println(`keiyaku - Contract document Q&A with grounded citations

Usage:
  keiyaku server [flags]              Start the HTTP server
  keiyaku ingest [flags] <file...>    Upload and process documents
  keiyaku search [flags] <query>      Hybrid retrieval over indexed chunks
  keiyaku ask [flags] <question>      Ask a question, answered with citations
  keiyaku reprocess [flags] <id>      Re-run the pipeline for a document (--all for every document)
  keiyaku delete [flags] <id>         Delete a document and its index entries
  keiyaku progress [flags]            Show ingestion progress
  keiyaku status [flags]              Show corpus and index status
  keiyaku version                     Show version
  keiyaku help                        Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/keiyaku/config.yaml)
  --debug            Enable debug logging (pipeline stages, retrieval fusion, etc.)

Ingest Flags:
  --config string    Config file path (for direct mode)
  --server string    Server URL (default: http://localhost:8080). Use --server "" for direct mode.
  --wait             Poll until processing completes (server mode)

Search / Ask Flags:
  --server string    Server URL (default: http://localhost:8080)
  --document string  Restrict retrieval to one document ID
  --limit int        Number of results (search only)
  --output string    Output format: text or json (default: text)

Examples:
  keiyaku server
  keiyaku ingest nda.pdf msa.docx --wait
  keiyaku search "termination notice period"
  keiyaku ask "What is the payment deadline?"
  keiyaku ask --document 4f2a... "Who owns work product?"
  keiyaku reprocess --all
  keiyaku progress --watch
  keiyaku status --output json`)
}
