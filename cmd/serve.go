package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/giantswarm/mcp-oauth/storage/memory"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/calguard/calguard/internal/google"
	"github.com/calguard/calguard/internal/instrumentation"
	"github.com/calguard/calguard/internal/mcp/oauth"
	"github.com/calguard/calguard/internal/resources"
	"github.com/calguard/calguard/internal/schedule"
	"github.com/calguard/calguard/internal/server"
	"github.com/calguard/calguard/internal/tools/calendar_tools"
	"github.com/calguard/calguard/internal/tools/google_tools"
)

// serveOptions holds the effective serve configuration after flags, config
// file, and environment variables are merged.
type serveOptions struct {
	Debug     bool
	Transport string
	HTTPAddr  string
	BaseURL   string
	Yolo      bool

	GoogleClientID     string
	GoogleClientSecret string

	MetricsEnabled bool
	MetricsAddr    string

	DuplicateThreshold float64
	BlockingThreshold  float64
	FetchPad           time.Duration
	ProximityWindow    time.Duration
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server exposing Google Calendar
tools for AI assistants.

Supports multiple transport types:
  - stdio: Standard input/output (default)
  - streamable-http: Streamable HTTP transport with Google OAuth

Safety Mode:
  By default, the server operates without destructive operations: events can
  be listed, checked, and created (creation is guarded by conflict and
  duplicate detection). Use --yolo to also enable event update and delete.

OAuth Configuration:
  Client credentials come from --google-client-id/--google-client-secret or
  the GOOGLE_OAUTH_CLIENT_ID and GOOGLE_OAUTH_CLIENT_SECRET env vars.

  STDIO transport stores tokens on disk per account; authorize via the
  google_get_auth_url and google_save_auth_code tools.

  Streamable HTTP transport validates Bearer tokens against Google and
  serves RFC 9728 protected-resource metadata. Set --base-url (or
  CALGUARD_BASE_URL) for deployed instances; HTTPS is required except for
  localhost.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := serveOptions{
				Debug:              viper.GetBool("debug"),
				Transport:          viper.GetString("transport"),
				HTTPAddr:           viper.GetString("http-addr"),
				BaseURL:            viper.GetString("base-url"),
				Yolo:               viper.GetBool("yolo"),
				GoogleClientID:     viper.GetString("google-client-id"),
				GoogleClientSecret: viper.GetString("google-client-secret"),
				MetricsEnabled:     viper.GetBool("metrics-enabled"),
				MetricsAddr:        viper.GetString("metrics-addr"),
				DuplicateThreshold: viper.GetFloat64("duplicate-threshold"),
				BlockingThreshold:  viper.GetFloat64("blocking-threshold"),
				FetchPad:           viper.GetDuration("fetch-pad"),
				ProximityWindow:    viper.GetDuration("proximity-window"),
			}
			return runServe(opts)
		},
	}

	cmd.Flags().Bool("debug", false, "Enable debug logging")
	cmd.Flags().String("transport", "stdio", "Transport type: stdio or streamable-http")
	cmd.Flags().String("http-addr", ":8080", "HTTP server address (for streamable-http transport)")
	cmd.Flags().String("base-url", "", "Public base URL for OAuth metadata (streamable-http only). Required for deployed instances. Example: https://mcp.example.com")
	cmd.Flags().Bool("yolo", false, "Enable event update and delete tools. Default is create/read only.")
	cmd.Flags().String("google-client-id", "", "Google OAuth Client ID. Can also use GOOGLE_OAUTH_CLIENT_ID env var.")
	cmd.Flags().String("google-client-secret", "", "Google OAuth Client Secret. Can also use GOOGLE_OAUTH_CLIENT_SECRET env var.")
	cmd.Flags().Bool("metrics-enabled", true, "Enable the metrics server on a dedicated port (streamable-http only)")
	cmd.Flags().String("metrics-addr", ":9090", "Metrics server address")
	cmd.Flags().Float64("duplicate-threshold", schedule.DefaultDuplicateThreshold, "Similarity score above which an existing event is reported as a duplicate (0..1)")
	cmd.Flags().Float64("blocking-threshold", schedule.DefaultBlockingThreshold, "Similarity score above which a duplicate blocks event creation (0..1)")
	cmd.Flags().Duration("fetch-pad", schedule.DefaultFetchPad, "How far beyond the candidate's own time range to fetch events for detection")
	cmd.Flags().Duration("proximity-window", schedule.DefaultProximityWindow, "Start-time distance at which temporal proximity scoring decays to zero")

	// Every flag is also settable from ~/.calguard.yaml and CALGUARD_* env vars
	_ = viper.BindPFlags(cmd.Flags())

	return cmd
}

// newLogger builds the process logger. stdio transport must keep stdout
// clean for the MCP protocol, so logs always go to stderr.
func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// detectionConfigFromOptions translates CLI tuning into a detector config.
// Zero values fall back to the defaults so a partially filled config file
// behaves sensibly.
func detectionConfigFromOptions(opts serveOptions) schedule.Config {
	cfg := schedule.DefaultConfig()
	if opts.DuplicateThreshold > 0 {
		cfg.DuplicateThreshold = opts.DuplicateThreshold
	}
	if opts.BlockingThreshold > 0 {
		cfg.BlockingThreshold = opts.BlockingThreshold
	}
	if opts.FetchPad > 0 {
		cfg.FetchPad = opts.FetchPad
	}
	if opts.ProximityWindow > 0 {
		cfg.ProximityWindow = opts.ProximityWindow
	}
	return cfg
}

// resolveBaseURL picks the public base URL for OAuth metadata. Without an
// explicit URL it assumes local development on the listen address.
func resolveBaseURL(baseURL, addr string) string {
	if baseURL != "" {
		return baseURL
	}
	if len(addr) > 0 && addr[0] == ':' {
		return fmt.Sprintf("http://localhost%s", addr)
	}
	return fmt.Sprintf("http://%s", addr)
}

func runServe(opts serveOptions) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := newLogger(opts.Debug)

	// Make flag/config credentials visible to the OAuth config, which reads
	// the environment. Never the other way around: absent flags leave any
	// pre-set environment untouched.
	if opts.GoogleClientID != "" {
		os.Setenv("GOOGLE_OAUTH_CLIENT_ID", opts.GoogleClientID)
	}
	if opts.GoogleClientSecret != "" {
		os.Setenv("GOOGLE_OAUTH_CLIENT_SECRET", opts.GoogleClientSecret)
	}

	// Move any pre-multi-account token file to its per-account location
	if err := google.MigrateDefaultToken(); err != nil {
		logger.Warn("failed to migrate legacy token file", "error", err)
	}

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Error("instrumentation shutdown failed", "error", err)
		}
	}()

	// Start metrics server if enabled and not in stdio mode
	var metricsServer *server.MetricsServer
	if opts.Transport != "stdio" && opts.MetricsEnabled && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    opts.MetricsAddr,
			Enabled:                 true,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		// Use ready channel to confirm metrics server started successfully
		metricsReady := make(chan struct{})
		metricsErr := make(chan error, 1)
		go func() {
			if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && err != http.ErrServerClosed {
				metricsErr <- err
			}
			close(metricsErr)
		}()

		select {
		case <-metricsReady:
			logger.Info("metrics server started", "addr", metricsServer.Addr())
		case err := <-metricsErr:
			return fmt.Errorf("metrics server failed to start: %w", err)
		case <-time.After(5 * time.Second):
			return fmt.Errorf("metrics server startup timed out")
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			if err := metricsServer.Shutdown(stopCtx); err != nil {
				logger.Error("metrics server shutdown failed", "error", err)
			}
		}()
	}

	detectionConfig := detectionConfigFromOptions(opts)

	// Pick the token source for the transport: HTTP sessions carry OAuth
	// tokens validated by the middleware, stdio reads the per-account files.
	var tokenProvider google.TokenProvider
	var oauthStore *oauth.Store
	if opts.Transport == "streamable-http" {
		oauthStore = oauth.NewStore(memory.New())
		oauthStore.SetLogger(logger)
		defer oauthStore.Close()
		tokenProvider = oauth.NewTokenProvider(oauthStore)
	} else {
		tokenProvider = google.NewFileTokenProvider()
	}

	serverContext, err := server.NewServerContext(shutdownCtx, tokenProvider, detectionConfig, logger)
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			logger.Error("server context shutdown failed", "error", err)
		}
	}()

	serverContext.SetYolo(opts.Yolo)

	// Set metrics and audit logger on server context for tool instrumentation
	if provider.Enabled() {
		serverContext.SetMetrics(provider.Metrics())
		serverContext.SetAuditLogger(instrumentation.NewAuditLoggerWithConfig(nil, instrConfig.AuditLogging))
	}

	// Create MCP server
	mcpSrv := mcpserver.NewMCPServer("calguard", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false),
	)

	if opts.Yolo {
		logger.Info("write mode enabled, event update and delete tools are available")
	} else {
		logger.Info("running without destructive operations (use --yolo to enable update/delete)")
	}
	logger.Info("detection configured",
		"duplicate_threshold", detectionConfig.DuplicateThreshold,
		"blocking_threshold", detectionConfig.BlockingThreshold,
		"fetch_pad", detectionConfig.FetchPad,
		"proximity_window", detectionConfig.ProximityWindow)

	// Register all tools and resources
	if err := registerAllTools(mcpSrv, serverContext); err != nil {
		return err
	}

	switch opts.Transport {
	case "stdio":
		return runStdioServer(mcpSrv)
	case "streamable-http":
		return runStreamableHTTPServer(shutdownCtx, mcpSrv, serverContext, oauthStore, opts, logger)
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, streamable-http)", opts.Transport)
	}
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

// registerAllTools registers all MCP tools and resources
func registerAllTools(mcpSrv *mcpserver.MCPServer, ctx *server.ServerContext) error {
	type toolRegistration struct {
		name     string
		register func() error
	}

	registrations := []toolRegistration{
		{
			name: "Google OAuth",
			register: func() error {
				return google_tools.RegisterGoogleTools(mcpSrv, ctx)
			},
		},
		{
			name: "Calendar",
			register: func() error {
				return calendar_tools.RegisterCalendarTools(mcpSrv, ctx)
			},
		},
		{
			name: "User Resources",
			register: func() error {
				return resources.RegisterUserResources(mcpSrv, ctx)
			},
		},
	}

	for _, reg := range registrations {
		if err := reg.register(); err != nil {
			return fmt.Errorf("failed to register %s: %w", reg.name, err)
		}
	}

	return nil
}

func runStreamableHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, serverContext *server.ServerContext, store *oauth.Store, opts serveOptions, logger *slog.Logger) error {
	baseURL := resolveBaseURL(opts.BaseURL, opts.HTTPAddr)
	if opts.BaseURL == "" {
		logger.Info("no base URL configured, using auto-detected", "base_url", baseURL)
		logger.Info("for deployed instances, set --base-url or CALGUARD_BASE_URL")
	} else {
		logger.Info("using configured base URL", "base_url", baseURL)
	}

	oauthServer, err := server.NewOAuthHTTPServer(mcpSrv, baseURL, store)
	if err != nil {
		return fmt.Errorf("failed to create OAuth HTTP server: %w", err)
	}

	// Liveness and readiness endpoints for orchestrators
	oauthServer.SetHealthChecker(server.NewHealthChecker(serverContext))

	logger.Info("streamable HTTP server starting",
		"addr", opts.HTTPAddr,
		"mcp_endpoint", "/mcp",
		"health_endpoints", "/healthz /readyz",
		"oauth_metadata", "/.well-known/oauth-protected-resource")

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := oauthServer.Start(opts.HTTPAddr); err != nil && err != http.ErrServerClosed {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := oauthServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	logger.Info("HTTP server stopped")
	return nil
}
