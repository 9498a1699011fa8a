// Package gateway exposes the financial and daily series data over REST and MCP.
package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mark3labs/mcp-go/server"

	"TdxBridge/internal/app"
	"TdxBridge/internal/logging"
)

// Version is reported by the MCP server and the health endpoint.
var Version = "dev"

// Server routes REST and MCP traffic to the App.
type Server struct {
	app    *app.App
	mcp    *server.MCPServer
	logger *logging.Logger
}

// New creates the gateway and registers the MCP tools.
func New(a *app.App) *Server {
	s := &Server{
		app:    a,
		mcp:    server.NewMCPServer("TdxBridge", Version, server.WithToolCapabilities(true)),
		logger: a.Logger.Component("gateway"),
	}
	s.registerTools()
	return s
}

// MCPServer exposes the tool server, e.g. for stdio transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		r.Get("/financial_data", s.handleFinancialData)
		r.Get("/financial_reports", s.handleFinancialReports)
		r.Post("/sync_financial", s.handleSyncFinancial)
		r.Get("/sync_runs", s.handleSyncRuns)
		r.Get("/daily_kline", s.handleDailyKline)
	})

	streamable := server.NewStreamableHTTPServer(s.mcp, server.WithStateLess(true))
	r.Handle("/mcp", streamable)
	r.Handle("/mcp/", streamable)

	sse := server.NewSSEServer(s.mcp)
	r.Handle("/sse", sse.SSEHandler())
	r.Handle("/message", sse.MessageHandler())

	// Trailing-slash layout: stream at /sse/, client posts under /sse/messages/.
	// Sessions live in the SSE server, so each layout keeps its own.
	nested := server.NewSSEServer(s.mcp,
		server.WithStaticBasePath("/sse"),
		server.WithMessageEndpoint("/messages/"),
	)
	r.Handle("/sse/", nested.SSEHandler())
	r.Handle("/sse/messages/", nested.MessageHandler())

	return r
}
