package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kalambet/lectern/internal/api"
	"github.com/kalambet/lectern/internal/config"
	"github.com/kalambet/lectern/internal/extract"
	"github.com/kalambet/lectern/internal/ingest"
	"github.com/kalambet/lectern/internal/logging"
	"github.com/kalambet/lectern/internal/pipeline"
	"github.com/kalambet/lectern/internal/proxy"
	"github.com/kalambet/lectern/internal/retrieval"
	"github.com/kalambet/lectern/internal/scheduling"
	"github.com/kalambet/lectern/internal/search"
	"github.com/kalambet/lectern/internal/storage"
)

const (
	extractTimeout = 30 * time.Second
	shutdownGrace  = 5 * time.Second
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the lectern server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(withMCP)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running lectern server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show lectern system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	startCmd.Flags().Bool("mcp", false, "also serve MCP tools over stdio")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "lectern.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer(withMCP bool) error {
	fmt.Fprintf(os.Stderr, "lectern version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	flush := logging.Install(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	defer flush()
	logger := zap.L()

	// Refuse to start twice on the same port.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("lectern is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("lectern is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing storage", zap.Error(err))
		}
	}()

	gateway := proxy.NewGateway(proxy.GatewayConfig{
		APIKey:       cfg.Proxy.APIKey,
		BaseURL:      cfg.Proxy.BaseURL,
		DefaultModel: cfg.Proxy.DefaultModel,
		PremiumModel: cfg.Proxy.PremiumModel,
		LocalURL:     cfg.Local.URL,
		LocalTimeout: cfg.Local.Timeout,
	})

	checkLocalModels(ctx, cfg.Local.URL, cfg.Local.Timeout)

	aggregator := search.NewAggregator(
		search.NewDuckDuckGo(),
		search.NewFetcher(cfg.Search.FetchTimeout),
		search.Options{
			PerVariantLimit: cfg.Search.PerVariantLimit,
			AcademicWeight:  cfg.Search.AcademicWeight,
			Concurrency:     cfg.Search.FetchConcurrency,
			CacheTTL:        cfg.Search.CacheTTL,
		},
	)

	chat := pipeline.New(gateway, aggregator, extract.NewPDFExtractor(extractTimeout), extract.NewYouTube(extractTimeout))
	sched := scheduling.NewService(store)

	deps := api.Deps{
		Chat:        chat,
		Search:      aggregator,
		Scheduling:  sched,
		Documents:   store,
		UploadDir:   cfg.Storage.UploadDir,
		CORSOrigins: cfg.Server.CORSOrigins,
	}

	var retriever *retrieval.Retriever
	if cfg.Vector.Enabled {
		embedClient := proxy.NewHostedClientWithBaseURL(cfg.Vector.APIKey, cfg.Proxy.BaseURL)
		embedder := retrieval.NewEmbedder(embedClient, cfg.Vector.EmbedModel)
		index := retrieval.NewSQLiteIndex(store.DB())
		retriever = retrieval.NewRetriever(embedder, index)
		deps.Jobs = store

		worker := ingest.NewWorker(store, embedder, index, 500*time.Millisecond)
		go worker.Run(ctx)
		logger.Info("document indexing enabled",
			zap.String("index", cfg.Vector.IndexName),
			zap.String("embed_model", cfg.Vector.EmbedModel),
		)
	}

	if withMCP {
		mcpDeps := api.MCPDeps{
			Search:     aggregator,
			Scheduling: sched,
			Version:    version,
		}
		if retriever != nil {
			mcpDeps.Retriever = retriever
		}
		stdioSrv := server.NewStdioServer(api.NewMCPServer(mcpDeps))
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("MCP stdio server error", zap.Error(err))
			}
		}()
		logger.Info("MCP server started (stdio transport)")
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewHandler(deps),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		printStep("lectern listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// checkLocalModels reports whether the local model server is up. Hosted
// chat works without it, so a missing server is only a warning.
func checkLocalModels(ctx context.Context, url string, timeout time.Duration) {
	models, err := proxy.NewLocalClient(url, timeout).Models(ctx)
	switch {
	case err != nil:
		printWarning("local model server not reachable; model_type \"local\" will fail until it is started")
		zap.L().Debug("local model probe failed", zap.Error(err))
	case len(models) == 0:
		printWarning("local model server is running but has no model loaded")
	default:
		printStep("local models: %s", strings.Join(models, ", "))
	}
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("lectern is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop lectern (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to lectern (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	client := &apiClient{
		baseURL:    fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port),
		httpClient: &http.Client{Timeout: 2 * time.Second},
	}

	running := false
	if resp, err := client.get(ctx, "/health"); err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	local := proxy.NewLocalClient(cfg.Local.URL, cfg.Local.Timeout)
	if models, err := local.Models(ctx); err != nil {
		printStatus("Local model", "not reachable at %s", local.ModelsURL())
	} else {
		printStatus("Local model", "%d loaded (%s)", len(models), strings.Join(models, ", "))
	}

	printStatus("Hosted model", "%s (premium %s)", cfg.Proxy.DefaultModel, cfg.Proxy.PremiumModel)
	if cfg.Vector.Enabled {
		printStatus("Vector index", "%s (%s)", cfg.Vector.IndexName, cfg.Vector.EmbedModel)
	} else {
		printStatus("Vector index", "disabled")
	}

	if running {
		if resp, err := client.get(ctx, "/api/documents"); err == nil {
			var docs struct {
				Documents []struct{} `json:"documents"`
			}
			if decodeJSON(resp, &docs) == nil {
				printStatus("Documents", "%d", len(docs.Documents))
			}
		}
		if resp, err := client.get(ctx, "/api/professor/availability"); err == nil {
			var slots struct {
				Availabilities []struct {
					IsBooked bool `json:"is_booked"`
				} `json:"availabilities"`
			}
			if decodeJSON(resp, &slots) == nil {
				booked := 0
				for _, s := range slots.Availabilities {
					if s.IsBooked {
						booked++
					}
				}
				printStatus("Office hours", "%d slots, %d booked", len(slots.Availabilities), booked)
			}
		}
	}

	if counts, err := jobCounts(ctx, cfg.Storage.DataDir); err == nil && len(counts) > 0 {
		printStatus("Index jobs", "%s", formatJobCounts(counts))
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

// jobCounts reads the queue directly so it works with the server stopped.
func jobCounts(ctx context.Context, dataDir string) (map[string]int, error) {
	if _, err := os.Stat(filepath.Join(dataDir, "lectern.db")); err != nil {
		return nil, err
	}
	store, err := storage.Open(dataDir)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.CountJobs(ctx)
}

func formatJobCounts(counts map[string]int) string {
	var parts []string
	for _, status := range []string{storage.JobPending, storage.JobRunning, storage.JobCompleted, storage.JobFailed} {
		if n := counts[status]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, status))
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}
