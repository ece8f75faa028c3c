// Package mcpserver exposes Bastion flows as Model Context Protocol tools.
//
// Two tools are registered: run_pipeline scans a prompt with a flow and
// returns the TaskResult as JSON text, and list_flows returns the configured
// flows. The server speaks stdio or streamable HTTP.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"aidr-hq/bastion/pkg/config"
	"aidr-hq/bastion/pkg/orchestrator"
	"aidr-hq/bastion/pkg/verdict"
)

// HTTPPath is where the streamable HTTP transport is mounted.
const HTTPPath = "/mcp"

// Runner executes flows.
type Runner interface {
	Execute(ctx context.Context, req orchestrator.Request) verdict.TaskResult
	ListFlows() []verdict.FlowInfo
}

// RunPipelineInput is the run_pipeline tool input.
type RunPipelineInput struct {
	Prompt       string `json:"prompt" jsonschema:"the text to scan"`
	TaskID       string `json:"task_id,omitempty" jsonschema:"caller supplied task identifier"`
	PipelineFlow string `json:"pipeline_flow,omitempty" jsonschema:"flow name, default is used when empty"`
	Language     string `json:"language,omitempty" jsonschema:"source language when the prompt is code"`
}

// ListFlowsInput is the list_flows tool input.
type ListFlowsInput struct{}

// Server wraps an MCP server bound to a Runner.
type Server struct {
	Server *mcp.Server
	runner Runner
	cfg    config.MCPConfig
	logger *slog.Logger
}

// New creates the MCP server and registers its tools.
func New(cfg config.MCPConfig, runner Runner, name, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		Server: mcp.NewServer(
			&mcp.Implementation{Name: name, Version: version},
			&mcp.ServerOptions{Logger: logger},
		),
		runner: runner,
		cfg:    cfg,
		logger: logger.With("component", "mcp"),
	}

	mcp.AddTool(s.Server, &mcp.Tool{
		Name:        "run_pipeline",
		Description: "Scan a prompt with a detection flow and return the verdict (allow, notify or block) with the triggering rules.",
	}, s.runPipeline)
	mcp.AddTool(s.Server, &mcp.Tool{
		Name:        "list_flows",
		Description: "List the configured detection flows and their detectors.",
	}, s.listFlows)

	return s
}

func (s *Server) runPipeline(ctx context.Context, _ *mcp.CallToolRequest, in RunPipelineInput) (*mcp.CallToolResult, any, error) {
	flow := in.PipelineFlow
	if flow == "" {
		flow = "default"
	}
	res := s.runner.Execute(ctx, orchestrator.Request{
		Prompt:   in.Prompt,
		Flow:     flow,
		TaskID:   in.TaskID,
		Language: in.Language,
	})
	return jsonResult(res)
}

func (s *Server) listFlows(_ context.Context, _ *mcp.CallToolRequest, _ ListFlowsInput) (*mcp.CallToolResult, any, error) {
	return jsonResult(map[string]any{"flows": s.runner.ListFlows()})
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}

// Run serves on the configured transport until ctx is cancelled or the
// transport closes.
func (s *Server) Run(ctx context.Context) error {
	switch s.cfg.Transport {
	case "stdio":
		s.logger.Info("starting stdio transport")
		return s.Server.Run(ctx, &mcp.StdioTransport{})
	case "http":
		return s.runHTTP(ctx)
	default:
		return fmt.Errorf("unsupported MCP transport: %s", s.cfg.Transport)
	}
}

// Handler returns the streamable HTTP handler.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(
		func(*http.Request) *mcp.Server { return s.Server },
		&mcp.StreamableHTTPOptions{Logger: s.logger},
	)
}

func (s *Server) runHTTP(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle(HTTPPath, s.Handler())

	ln, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.ListenAddress, err)
	}
	s.logger.Info("starting HTTP transport", "addr", ln.Addr().String(), "path", HTTPPath)

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP transport")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
