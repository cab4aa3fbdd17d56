// Package main is the chatdata CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/chatdata/internal/catalog"
	"github.com/hyperjump/chatdata/internal/chat"
	"github.com/hyperjump/chatdata/internal/cli"
	"github.com/hyperjump/chatdata/internal/config"
	"github.com/hyperjump/chatdata/internal/ingest"
	"github.com/hyperjump/chatdata/internal/llm"
	"github.com/hyperjump/chatdata/internal/models"
	"github.com/hyperjump/chatdata/internal/server"
	"github.com/hyperjump/chatdata/internal/storage"
	"github.com/hyperjump/chatdata/internal/vizspec"
	"github.com/hyperjump/chatdata/internal/watcher"
	"github.com/hyperjump/chatdata/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/chatdata/config.yaml"
	defaultServerURL  = "http://localhost:3000"
)

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory wins if it exists. A missing default file yields the built-in
// defaults. Returns the config and the path that was actually used.
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
		cfg, err := config.LoadOrDefault(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func newLogger(cfg *config.Config, debug bool) (*zap.Logger, error) {
	return utils.NewLoggerWithFile(debug, utils.LogFile{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
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
	case "datasources", "ds":
		runDataSources()
	case "preview":
		runPreview()
	case "upload":
		runUpload()
	case "ask":
		runAsk()
	case "extract":
		runExtract()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("chatdata version %s\n", version)
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
	debug := fs.Bool("debug", false, "enable debug logging (requests, upload directory changes, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := newLogger(cfg, debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.String("llm_provider", cfg.LLM.Provider),
	)
	if cfg.LLM.APIKey() == "" {
		logger.Warn("LLM API key is not configured; chat requests will fail until it is set",
			zap.String("env", cfg.LLM.KeyEnvVar()))
	}

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Upload.WatchOrDefault() {
		cat := components.Catalog
		watchSvc := watcher.New(cfg.Upload.Dir, func(path string) {
			if n := cat.InvalidatePath(path); n > 0 {
				logger.Debug("preview cache invalidated", zap.String("path", path), zap.Int("entries", n))
			}
		}, watcher.WithLogger(logger), watcher.WithExtensions(".csv"))
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Warn("upload watcher not started", zap.String("dir", cfg.Upload.Dir), zap.Error(err))
		} else {
			components.Watcher = watchSvc
		}
	}

	srv := server.NewServer(
		components.Catalog,
		components.Chat,
		components.Generator,
		components.Store,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// argsReorder moves any flags (and their values) that appear after the first
// positional argument to the front so that flag.Parse() sees them.
func argsReorder(args []string) []string {
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

// joinArgs joins positional args so multi-word questions work with or without quoting.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func parseOutput(value string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(value)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return format
}

// openDirect loads config and initializes components for commands that work on
// the store without a running server.
func openDirect(configPath string) (*config.Config, *Components, *zap.Logger) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := newLogger(cfg, cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return cfg, components, logger
}

func runDataSources() {
	fs := flag.NewFlagSet("datasources", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct storage mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseOutput(*outputFormat)

	var list []*models.DataSource
	if *serverURL != "" {
		if err := getJSON(*serverURL+"/api/datasources", &list); err != nil {
			fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		_, components, logger := openDirect(*configPath)
		defer logger.Sync()
		defer components.Close()
		var err error
		list, err = components.Catalog.List(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
			os.Exit(1)
		}
	}
	if err := cli.WriteDataSources(os.Stdout, list, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runPreview() {
	fs := flag.NewFlagSet("preview", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct storage mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct storage)")
	limit := fs.Int("limit", 0, "number of rows (0 = configured default)")
	all := fs.Bool("all", false, "print every row")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))
	format := parseOutput(*outputFormat)

	if fs.NArg() < 1 {
		fmt.Println("Usage: chatdata preview [flags] <datasource-id>")
		os.Exit(1)
	}
	id := fs.Arg(0)

	var (
		p   *models.CsvPreview
		err error
	)
	if *serverURL != "" {
		p = &models.CsvPreview{}
		err = getJSON(previewURL(*serverURL, id, *limit, *all), p)
	} else {
		_, components, logger := openDirect(*configPath)
		defer logger.Sync()
		defer components.Close()
		ctx := context.Background()
		if *all {
			p, err = components.Catalog.Data(ctx, id)
		} else {
			p, err = components.Catalog.Preview(ctx, id, *limit)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Preview failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WritePreview(os.Stdout, p, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// previewURL returns the preview or full-data endpoint for a data source.
func previewURL(serverURL, id string, limit int, all bool) string {
	base := strings.TrimSuffix(serverURL, "/") + "/api/csv/" + url.PathEscape(id)
	if all {
		return base + "/data"
	}
	if limit > 0 {
		return base + "/preview?limit=" + strconv.Itoa(limit)
	}
	return base + "/preview"
}

// runUpload sends the file to the running server. Direct mode (--server "")
// writes the store from this process and needs the server stopped, since the
// JSON backend only serializes writers within one process.
func runUpload() {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct storage mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct storage, server must be stopped)")
	name := fs.String("name", "", "data source name (default: file name)")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: chatdata upload [flags] <file.csv>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	var (
		ds  *models.DataSource
		err error
	)
	if *serverURL != "" {
		ds, err = uploadFile(*serverURL, *name, path)
	} else {
		_, components, logger := openDirect(*configPath)
		defer logger.Sync()
		defer components.Close()
		ds, err = uploadDirect(components.Catalog, *name, path)
	}
	if err != nil {
		fmt.Printf("Upload failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Data source created: %s (%s)\n", ds.ID, ds.Name)
}

func uploadDirect(cat *catalog.Service, name, path string) (*models.DataSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()
	return cat.Upload(context.Background(), name, filepath.Base(path), "text/csv", f)
}

// uploadFile posts path to the server's upload endpoint as a multipart form.
func uploadFile(serverURL, name, path string) (*models.DataSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if name != "" {
		if err := mw.WriteField("name", name); err != nil {
			return nil, err
		}
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(path)))
	h.Set("Content-Type", "text/csv")
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	resp, err := http.Post(strings.TrimSuffix(serverURL, "/")+"/api/upload", mw.FormDataContentType(), &body)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	var out struct {
		DataSource *models.DataSource `json:"dataSource"`
	}
	if err := decodeResponse(resp, &out); err != nil {
		return nil, err
	}
	if out.DataSource == nil {
		return nil, errors.New("server response has no data source")
	}
	return out.DataSource, nil
}

// askRequest builds the chat request for a single question.
func askRequest(question, dataSourceID string) chat.Request {
	return chat.Request{
		Messages:     []models.ChatMessage{{Role: models.RoleUser, Content: question}},
		DataSourceID: dataSourceID,
	}
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	dataSourceID := fs.String("datasource", "", "data source id to ground the answer")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))
	format := parseOutput(*outputFormat)

	question := joinArgs(fs.Args())
	if question == "" {
		fmt.Println("Usage: chatdata ask [flags] <question>")
		os.Exit(1)
	}

	var resp chat.Response
	if err := postJSON(*serverURL+"/api/chat", askRequest(question, *dataSourceID), &resp); err != nil {
		fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteAnswer(os.Stdout, &resp, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runExtract() {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	outputFormat := fs.String("output", "json", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseOutput(*outputFormat)

	var in io.Reader = os.Stdin
	if fs.NArg() > 0 {
		f, err := os.Open(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}
	text, err := io.ReadAll(in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Read failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteExtraction(os.Stdout, vizspec.Extract(string(text)), format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// statusResponse is the shape of GET /api/status.
type statusResponse struct {
	DataSources    int    `json:"data_sources"`
	Queries        int    `json:"queries"`
	Backend        string `json:"backend"`
	CachedPreviews int    `json:"cached_previews"`
	DiskUsageBytes *int64 `json:"disk_usage_bytes,omitempty"`
	UploadFiles    int    `json:"upload_files,omitempty"`
	LLM            struct {
		Provider      string `json:"provider"`
		Model         string `json:"model"`
		KeyConfigured bool   `json:"key_configured"`
	} `json:"llm"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseOutput(*outputFormat)

	var status statusResponse
	if *serverURL != "" {
		if err := getJSON(*serverURL+"/api/status", &status); err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, components, logger := openDirect(*configPath)
		defer logger.Sync()
		defer components.Close()
		s, err := directStatus(context.Background(), cfg, components)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = *s
	}

	if format == cli.OutputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}
	writeStatusText(os.Stdout, &status)
}

func directStatus(ctx context.Context, cfg *config.Config, c *Components) (*statusResponse, error) {
	sources, err := c.Store.DataSources.Count(ctx)
	if err != nil {
		return nil, err
	}
	queries, err := c.Store.QueryLogs.Count(ctx)
	if err != nil {
		return nil, err
	}
	s := &statusResponse{
		DataSources: sources,
		Queries:     queries,
		Backend:     string(c.Store.Backend()),
	}
	s.LLM.Provider = c.Generator.Provider()
	s.LLM.Model = c.Generator.Model()
	s.LLM.KeyConfigured = cfg.LLM.APIKey() != ""
	if usage, err := storage.MeasureUsage(c.Store, cfg.Upload.Dir); err == nil {
		total := usage.Total()
		s.DiskUsageBytes = &total
		s.UploadFiles = usage.UploadFiles
	}
	return s, nil
}

func writeStatusText(w io.Writer, s *statusResponse) {
	fmt.Fprintf(w, "data_sources:       %d   # registered data sources\n", s.DataSources)
	fmt.Fprintf(w, "queries:            %d   # logged user questions\n", s.Queries)
	fmt.Fprintf(w, "backend:            %s\n", s.Backend)
	if s.CachedPreviews > 0 {
		fmt.Fprintf(w, "cached_previews:    %d\n", s.CachedPreviews)
	}
	if s.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d   # records + uploaded files\n", *s.DiskUsageBytes)
		fmt.Fprintf(w, "upload_files:       %d\n", s.UploadFiles)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "# llm")
	fmt.Fprintf(w, "provider:           %s\n", s.LLM.Provider)
	fmt.Fprintf(w, "model:              %s\n", s.LLM.Model)
	fmt.Fprintf(w, "key_configured:     %t\n", s.LLM.KeyConfigured)
}

func getJSON(url string, out any) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func postJSON(url string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

// decodeResponse decodes a 2xx body into out. Other statuses surface the
// server's error message when it sent one.
func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(b, &e) == nil && e.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, e.Error)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Components holds initialized services.
type Components struct {
	Store     *storage.Store
	Catalog   *catalog.Service
	Generator llm.Generator
	Chat      *chat.Service
	Watcher   *watcher.Watcher
}

func (c *Components) Close() {
	if c.Watcher != nil {
		c.Watcher.Stop()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.Open(storage.Options{
		Backend:      storage.Backend(cfg.Storage.Backend),
		DataDir:      cfg.Storage.DataDir,
		DatabasePath: cfg.Storage.DatabasePath,
		BoltPath:     cfg.Storage.BoltPath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if cfg.Storage.SeedSamples {
		n, err := storage.Seed(context.Background(), store)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to seed sample data sources: %w", err)
		}
		if n > 0 {
			logger.Info("seeded sample data sources", zap.Int("count", n))
		}
	}

	uploader := ingest.NewUploader(cfg.Upload.Dir, cfg.Upload.MaxBytes, ingest.WithLogger(logger))
	cat := catalog.New(store, uploader, catalog.Options{
		DefaultPreviewRows: cfg.Preview.DefaultRows,
		MaxPreviewRows:     cfg.Preview.MaxRows,
		PreviewCacheTTL:    cfg.Preview.CacheTTL,
	}, logger)

	generator, err := llm.New(llm.Config{
		Provider:    cfg.LLM.Provider,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey(),
		KeyEnvVar:   cfg.LLM.KeyEnvVar(),
		Temperature: cfg.LLM.TemperatureOrDefault(),
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	}, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize llm client: %w", err)
	}
	chatSvc := chat.NewService(cat, store.QueryLogs, generator, cfg.Chat.MaxHistory, logger)

	return &Components{
		Store:     store,
		Catalog:   cat,
		Generator: generator,
		Chat:      chatSvc,
	}, nil
}

func printUsage() {
	fmt.Println(`chatdata - Chat with your data

Usage:
  chatdata server [flags]               Start the HTTP server
  chatdata datasources [flags]          List data sources
  chatdata preview [flags] <id>         Preview a CSV data source
  chatdata upload [flags] <file.csv>    Upload a CSV file as a new data source
  chatdata ask [flags] <question>       Ask a question through the running server
  chatdata extract [file]               Split a generated response into prose and visualization
  chatdata status [flags]               Show store and LLM status
  chatdata version                      Show version
  chatdata help                         Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/chatdata/config.yaml)
  --debug            Enable debug logging

Datasources / Status Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:3000). Use empty (--server "") for direct storage.
  --output string    Output format: text or json (default: text)

Preview Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:3000). Use empty for direct storage.
  --limit int        Number of rows (default from config)
  --all              Print every row
  --output string    Output format: text or json

Upload Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:3000). Use empty for direct
                     storage; the server must be stopped while writing directly.
  --name string      Data source name (default: file name)

Ask Flags:
  --server string      Server URL (default: http://localhost:3000)
  --datasource string  Data source id used to ground the answer
  --output string      Output format: text or json

Examples:
  chatdata server
  chatdata upload --name "Q1 Sales" sales.csv
  chatdata preview --limit 10 3f2a...
  chatdata ask --datasource 3f2a... which region sold the most
  chatdata ask --output json "show monthly revenue as a line chart"
  pbpaste | chatdata extract --output text
  chatdata status --output json`)
}
