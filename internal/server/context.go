package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/calguard/calguard/internal/calendar"
	"github.com/calguard/calguard/internal/google"
	"github.com/calguard/calguard/internal/instrumentation"
	"github.com/calguard/calguard/internal/logging"
	"github.com/calguard/calguard/internal/schedule"
)

// ServerContext holds the shared state for the MCP server: per-account
// calendar clients, the token provider they authenticate with, and the
// detection tuning applied to event creation.
type ServerContext struct {
	ctx             context.Context
	cancel          context.CancelFunc
	calendarClients map[string]*calendar.Client
	tokenProvider   google.TokenProvider
	detectionConfig schedule.Config
	yolo            bool
	logger          *slog.Logger
	metrics         *instrumentation.Metrics
	auditLogger     *instrumentation.AuditLogger
	mu              sync.RWMutex
	shutdown        bool
}

// NewServerContext creates a new server context. The token provider decides
// where calendar credentials come from (disk files for stdio, the OAuth store
// for HTTP). Clients are created lazily on first use per account.
func NewServerContext(ctx context.Context, tokenProvider google.TokenProvider, detectionConfig schedule.Config, logger *slog.Logger) (*ServerContext, error) {
	if err := detectionConfig.Validate(); err != nil {
		return nil, err
	}
	if tokenProvider == nil {
		tokenProvider = google.NewFileTokenProvider()
	}
	if logger == nil {
		logger = slog.Default()
	}

	shutdownCtx, cancel := context.WithCancel(ctx)

	sc := &ServerContext{
		ctx:             shutdownCtx,
		cancel:          cancel,
		calendarClients: make(map[string]*calendar.Client),
		tokenProvider:   tokenProvider,
		detectionConfig: detectionConfig,
		logger:          logger,
	}

	// Eagerly create the default client when a token is already on hand, so
	// the first tool call doesn't pay the setup cost. Failure here is not
	// fatal; creation is retried on first use.
	if tokenProvider.HasTokenForAccount("default") {
		client, err := calendar.NewClientForAccountWithProvider(shutdownCtx, "default", tokenProvider)
		if err != nil {
			logger.Warn("failed to create calendar client for default account", logging.Err(err))
		} else {
			sc.calendarClients["default"] = client
		}
	}

	return sc, nil
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Logger returns the server's logger
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// DetectionConfig returns the conflict and duplicate detection tuning.
func (sc *ServerContext) DetectionConfig() schedule.Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.detectionConfig
}

// TokenProvider returns the token provider used for calendar clients.
func (sc *ServerContext) TokenProvider() google.TokenProvider {
	return sc.tokenProvider
}

// SetYolo toggles write mode. When disabled, tools that mutate calendars
// refuse to run.
func (sc *ServerContext) SetYolo(yolo bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.yolo = yolo
}

// Yolo reports whether calendar mutations are allowed.
func (sc *ServerContext) Yolo() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.yolo
}

// CalendarClientForAccount returns the calendar client for a specific
// account, creating and caching it if needed. Returns nil if the account has
// no token.
func (sc *ServerContext) CalendarClientForAccount(account string) *calendar.Client {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if client, ok := sc.calendarClients[account]; ok {
		return client
	}

	if !sc.tokenProvider.HasTokenForAccount(account) {
		return nil
	}

	client, err := calendar.NewClientForAccountWithProvider(sc.ctx, account, sc.tokenProvider)
	if err != nil {
		sc.logger.Warn("failed to create calendar client",
			logging.Account(account),
			logging.Err(err))
		return nil
	}

	sc.calendarClients[account] = client
	return client
}

// CalendarClient returns the calendar client for the default account
func (sc *ServerContext) CalendarClient() *calendar.Client {
	return sc.CalendarClientForAccount("default")
}

// SetCalendarClientForAccount sets the calendar client for a specific account
func (sc *ServerContext) SetCalendarClientForAccount(account string, client *calendar.Client) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.calendarClients[account] = client
}

// SetCalendarClient sets the calendar client for the default account
func (sc *ServerContext) SetCalendarClient(client *calendar.Client) {
	sc.SetCalendarClientForAccount("default", client)
}

// SetMetrics attaches the metrics recorder used by instrumented tool handlers.
func (sc *ServerContext) SetMetrics(metrics *instrumentation.Metrics) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.metrics = metrics
}

// Metrics returns the metrics recorder, or nil when instrumentation is off.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.metrics
}

// SetAuditLogger attaches the audit logger used by instrumented tool handlers.
func (sc *ServerContext) SetAuditLogger(auditLogger *instrumentation.AuditLogger) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.auditLogger = auditLogger
}

// AuditLogger returns the audit logger, or nil when auditing is off.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.auditLogger
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
