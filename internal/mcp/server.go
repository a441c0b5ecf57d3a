// Package mcp exposes the biomarker advisor as Model Context Protocol tools.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/biomarker-advisor/internal/domain"
	"github.com/biomarker-advisor/internal/middleware"
)

// Transport types
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Server represents the biomarker advisor MCP server
type Server struct {
	config       domain.MCPConfig
	service      domain.EvaluationService
	mcpServer    *mcp.Server
	logger       *logrus.Logger
	newRequestID func() string
}

// NewServer creates a new MCP server instance with all tools registered
func NewServer(service domain.EvaluationService, cfg domain.MCPConfig, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = "biomarker-advisor"
	}
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "1.0.0"
	}

	serverInfo := &mcp.Implementation{
		Name:    cfg.ServerName,
		Version: cfg.ServerVersion,
	}

	s := &Server{
		config:       cfg,
		service:      service,
		mcpServer:    mcp.NewServer(serverInfo, nil),
		logger:       logger,
		newRequestID: uuid.NewString,
	}
	s.registerTools()

	return s
}

func (s *Server) registerTools() {
	addTool(s, evaluateBiomarkersTool(), s.evaluateBiomarkers)
	addTool(s, classifyMeasurementsTool(), s.classifyMeasurements)
	addTool(s, listRulesTool(), s.listRules)
	addTool(s, listBiomarkersTool(), s.listBiomarkers)
	addTool(s, getEvaluationTool(), s.getEvaluation)
	addTool(s, listEvaluationsTool(), s.listEvaluations)

	s.logger.WithField("tool_count", 6).Debug("Registered MCP tools")
}

// addTool registers handler with call logging.
func addTool[In, Out any](s *Server, tool *mcp.Tool, handler mcp.ToolHandlerFor[In, Out]) {
	name := tool.Name
	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, req *mcp.CallToolRequest, in In) (*mcp.CallToolResult, Out, error) {
		start := time.Now()
		result, out, err := handler(ctx, req, in)

		entry := s.logger.WithFields(logrus.Fields{
			"tool":     name,
			"duration": time.Since(start).String(),
		})
		if err != nil {
			entry.WithError(err).Warn("Tool call failed")
		} else {
			entry.Debug("Tool call completed")
		}
		return result, out, err
	})
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcpServer
}

// HTTPHandler serves the streamable HTTP transport.
func (s *Server) HTTPHandler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcpServer
	}, nil)
}

// Run serves on the configured transport until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.WithFields(logrus.Fields{
		"server":    s.config.ServerName,
		"version":   s.config.ServerVersion,
		"transport": s.config.TransportType,
	}).Info("Starting biomarker advisor MCP server")

	switch s.config.TransportType {
	case "", TransportStdio:
		return s.Serve(ctx, &mcp.StdioTransport{})
	case TransportHTTP:
		return s.serveHTTP(ctx)
	default:
		return fmt.Errorf("transport %q is not supported", s.config.TransportType)
	}
}

// Serve runs the server over transport until the client disconnects or ctx ends.
func (s *Server) Serve(ctx context.Context, transport mcp.Transport) error {
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}

// Router serves the streamable HTTP transport at /mcp next to a health check.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AccessLog(s.logger))

	router.Any("/mcp", gin.WrapH(s.HTTPHandler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"server":  s.config.ServerName,
			"version": s.config.ServerVersion,
		})
	})

	return router
}

func (s *Server) serveHTTP(ctx context.Context) error {
	host := s.config.HTTPHost
	if host == "" {
		host = "127.0.0.1"
	}
	addr := fmt.Sprintf("%s:%d", host, s.config.HTTPPort)

	server := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("MCP HTTP transport listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("MCP HTTP transport: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
