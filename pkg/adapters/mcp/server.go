// Package mcp exposes workflow runs as Model Context Protocol tools, so an
// assistant can walk an incident through its playbook.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/playbook"
	"github.com/aretw0/playbook/pkg/domain"
	"github.com/aretw0/playbook/pkg/runner"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const workflowURIPrefix = "playbook://workflows/"

// RunArgs identifies a run.
type RunArgs struct {
	Workflow       string `json:"workflow"`
	IncidentNumber string `json:"incident_number"`
}

// AnswerArgs carries an answer typed the same way as at the terminal prompt:
// an option number or text, a comma separated list for checkboxes, or free text.
type AnswerArgs struct {
	RunArgs
	Answer         string `json:"answer"`
	NextQuestionID *int   `json:"next_question_id,omitempty"`
}

// RunResponse is the structured result of every run tool.
type RunResponse struct {
	View *runner.View `json:"view" jsonschema_description:"The run and the question awaiting input"`
}

// StatusResponse is the result of run_status.
type StatusResponse struct {
	Complete   bool `json:"complete" jsonschema_description:"True when the last question of the workflow is answered"`
	TerminalID int  `json:"terminal_question_id" jsonschema_description:"Id of the last question of the workflow"`
}

// Server wraps the engine and exposes it as an MCP Server.
type Server struct {
	engine    *playbook.Engine
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(engine *playbook.Engine) *Server {
	s := &Server{
		engine:    engine,
		mcpServer: server.NewMCPServer("playbook-mcp", strings.TrimSpace(playbook.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves on the given port until ctx ends.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func runParams() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("workflow", mcp.Required(), mcp.Description("Workflow name")),
		mcp.WithString("incident_number", mcp.Required(), mcp.Description("Incident number")),
	}
}

func (s *Server) registerTools() {
	startTool := mcp.NewTool("start_run", append(runParams(),
		mcp.WithDescription("Open or resume the run of an incident and return the question awaiting input."),
		mcp.WithOutputSchema[RunResponse](),
	)...)
	s.mcpServer.AddTool(startTool, mcp.NewStructuredToolHandler(s.handleStart))

	currentTool := mcp.NewTool("current_question", append(runParams(),
		mcp.WithDescription("Show the question awaiting input and the run progress."),
		mcp.WithOutputSchema[RunResponse](),
	)...)
	s.mcpServer.AddTool(currentTool, mcp.NewStructuredToolHandler(s.handleCurrent))

	answerTool := mcp.NewTool("answer_question", append(runParams(),
		mcp.WithDescription("Answer the current question. Options may be given by number or text; checkbox answers are comma separated. Instructions are acknowledged with an empty answer."),
		mcp.WithString("answer", mcp.Description("The answer")),
		mcp.WithNumber("next_question_id", mcp.Description("Explicit branch target (optional)")),
		mcp.WithOutputSchema[RunResponse](),
	)...)
	s.mcpServer.AddTool(answerTool, mcp.NewStructuredToolHandler(s.handleAnswer))

	skipTool := mcp.NewTool("skip_question", append(runParams(),
		mcp.WithDescription("Skip the current question. Only optional questions can be skipped."),
		mcp.WithOutputSchema[RunResponse](),
	)...)
	s.mcpServer.AddTool(skipTool, mcp.NewStructuredToolHandler(s.handleSkip))

	statusTool := mcp.NewTool("run_status", append(runParams(),
		mcp.WithDescription("Report whether the incident has reached the end of its workflow, without opening a run."),
		mcp.WithOutputSchema[StatusResponse](),
	)...)
	s.mcpServer.AddTool(statusTool, mcp.NewStructuredToolHandler(s.handleStatus))

	s.mcpServer.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("List the stored run keys (workflow:incident)."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		keys, err := s.engine.Sessions().List(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
		}
		return mcp.NewToolResultText(strings.Join(keys, "\n")), nil
	})
}

func (s *Server) handleStart(ctx context.Context, _ mcp.CallToolRequest, args RunArgs) (RunResponse, error) {
	sess, err := s.engine.Start(ctx, args.Workflow, args.IncidentNumber)
	if err != nil {
		return RunResponse{}, toolError("start", err)
	}
	return s.describe(ctx, sess)
}

func (s *Server) handleCurrent(ctx context.Context, _ mcp.CallToolRequest, args RunArgs) (RunResponse, error) {
	sess, ok := s.engine.Sessions().Get(args.Workflow, args.IncidentNumber)
	if !ok {
		var err error
		if sess, err = s.engine.Start(ctx, args.Workflow, args.IncidentNumber); err != nil {
			return RunResponse{}, toolError("start", err)
		}
	}
	return s.describe(ctx, sess)
}

func (s *Server) handleAnswer(ctx context.Context, _ mcp.CallToolRequest, args AnswerArgs) (RunResponse, error) {
	clean, err := runner.SanitizeInput(args.Answer)
	if err != nil {
		slog.Warn("MCP Answer: Input rejected", "error", err, "size", len(args.Answer))
		return RunResponse{}, fmt.Errorf("input rejected: %w", err)
	}

	_, node, err := s.engine.Current(ctx, args.Workflow, args.IncidentNumber)
	if err != nil {
		return RunResponse{}, toolError("answer", err)
	}
	reply, err := runner.ParseReply(node, clean)
	if err != nil {
		return RunResponse{}, fmt.Errorf("answer rejected: %w", err)
	}
	if reply.Quit {
		return RunResponse{}, fmt.Errorf("answer rejected: %q is a terminal command", clean)
	}
	if reply.Skip {
		return s.handleSkip(ctx, mcp.CallToolRequest{}, args.RunArgs)
	}
	reply.NextQuestionID = args.NextQuestionID

	sess, err := s.engine.Answer(ctx, args.Workflow, args.IncidentNumber, reply.Answer())
	if err != nil {
		return RunResponse{}, toolError("answer", err)
	}
	return s.describe(ctx, sess)
}

func (s *Server) handleSkip(ctx context.Context, _ mcp.CallToolRequest, args RunArgs) (RunResponse, error) {
	sess, err := s.engine.Skip(ctx, args.Workflow, args.IncidentNumber)
	if err != nil {
		return RunResponse{}, toolError("skip", err)
	}
	return s.describe(ctx, sess)
}

func (s *Server) handleStatus(ctx context.Context, _ mcp.CallToolRequest, args RunArgs) (StatusResponse, error) {
	done, g, err := s.engine.Status(ctx, args.Workflow, args.IncidentNumber)
	if err != nil {
		return StatusResponse{}, toolError("status", err)
	}
	return StatusResponse{Complete: done, TerminalID: g.Terminal().ID}, nil
}

func (s *Server) describe(ctx context.Context, sess *domain.Session) (RunResponse, error) {
	view, err := runner.Describe(ctx, s.engine, sess)
	if err != nil {
		return RunResponse{}, fmt.Errorf("describe failed: %w", err)
	}
	return RunResponse{View: view}, nil
}

func (s *Server) registerResources() {
	tmpl := mcp.NewResourceTemplate(workflowURIPrefix+"{workflow}", "Workflow question graph",
		mcp.WithTemplateMIMEType("application/json"),
	)
	s.mcpServer.AddResourceTemplate(tmpl, s.readWorkflow)
}

func (s *Server) readWorkflow(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := request.Params.URI
	name := strings.TrimPrefix(uri, workflowURIPrefix)
	g, err := s.engine.Inspect(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect workflow: %w", err)
	}
	jsonBytes, err := json.Marshal(g.Nodes())
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}

// toolError keeps the operator-facing message in front of the wrapped cause.
func toolError(op string, err error) error {
	return fmt.Errorf("%s failed: %s: %w", op, domain.DisplayMessage(err), err)
}
