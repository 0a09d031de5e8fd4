package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/umlsync"
	"github.com/aretw0/umlsync/internal/presentation/graph"
	"github.com/aretw0/umlsync/internal/presentation/plantuml"
	"github.com/aretw0/umlsync/internal/runtime"
	"github.com/aretw0/umlsync/pkg/dispatch"
	"github.com/aretw0/umlsync/pkg/domain"
	"github.com/aretw0/umlsync/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"
)

// Dispatcher is the line-level parse surface used by the tools.
type Dispatcher interface {
	Parse(ctx context.Context, text string) (domain.ParseResult, error)
	Stats() dispatch.Stats
}

// StateResponse is returned by the editing tools.
type StateResponse struct {
	State      *domain.EditorState `json:"state" jsonschema_description:"The editor state after the call"`
	Validation *domain.Validation  `json:"validation,omitempty" jsonschema_description:"Structural report of the description text"`
	Fallback   bool                `json:"fallback,omitempty" jsonschema_description:"Set when the parse was degraded and the model was kept"`
	Applied    *bool               `json:"applied,omitempty" jsonschema_description:"For undo and redo, whether the history moved"`
}

// GenerateResponse carries rendered diagram text.
type GenerateResponse struct {
	Code    string `json:"code" jsonschema_description:"PlantUML description text"`
	Mermaid string `json:"mermaid,omitempty" jsonschema_description:"Mermaid rendering, when requested"`
}

// Server exposes one editor over the Model Context Protocol.
type Server struct {
	dispatcher Dispatcher
	parser     ports.Parser
	engine     *runtime.Engine
	logger     *slog.Logger
	mcpServer  *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(d Dispatcher, parser ports.Parser, engine *runtime.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	s := &Server{
		dispatcher: d,
		parser:     parser,
		engine:     engine,
		logger:     logger.With("component", "mcp"),
		mcpServer:  server.NewMCPServer("umlsync-mcp", strings.TrimSpace(umlsync.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("parse_diagram",
		mcp.WithDescription("Extract actors, messages, notes and group markers from PlantUML sequence text."),
		mcp.WithString("code", mcp.Required(), mcp.Description("Description text")),
	), s.handleParse)

	s.mcpServer.AddTool(mcp.NewTool("validate_diagram",
		mcp.WithDescription("Report structural errors and warnings in description text."),
		mcp.WithString("code", mcp.Required(), mcp.Description("Description text")),
	), s.handleValidate)

	s.mcpServer.AddTool(mcp.NewTool("generate_diagram",
		mcp.WithDescription("Render description text from actors and actions without touching the editor."),
		mcp.WithString("title", mcp.Description("Diagram title (optional)")),
		mcp.WithString("actors", mcp.Required(), mcp.Description("JSON array of actor names")),
		mcp.WithString("actions", mcp.Description("JSON array of actions")),
		mcp.WithBoolean("mermaid", mcp.Description("Also render Mermaid")),
		mcp.WithOutputSchema[GenerateResponse](),
	), mcp.NewStructuredToolHandler(s.handleGenerate))

	s.mcpServer.AddTool(mcp.NewTool("update_code",
		mcp.WithDescription("Replace the editor's description text and re-parse the model."),
		mcp.WithString("code", mcp.Required(), mcp.Description("Description text")),
		mcp.WithBoolean("preserve_complex", mcp.Description("Keep loops, conditions and groups from the previous model")),
		mcp.WithOutputSchema[StateResponse](),
	), mcp.NewStructuredToolHandler(s.handleUpdateCode))

	s.mcpServer.AddTool(mcp.NewTool("update_model",
		mcp.WithDescription("Apply structured changes (actors, selectedActors, actions, title) and regenerate the text."),
		mcp.WithString("changes", mcp.Required(), mcp.Description("JSON object with any of actors, selectedActors, actions, title")),
		mcp.WithOutputSchema[StateResponse](),
	), mcp.NewStructuredToolHandler(s.handleUpdateModel))

	s.mcpServer.AddTool(mcp.NewTool("undo",
		mcp.WithDescription("Step back in the editor history."),
		mcp.WithOutputSchema[StateResponse](),
	), mcp.NewStructuredToolHandler(s.handleUndo))

	s.mcpServer.AddTool(mcp.NewTool("redo",
		mcp.WithDescription("Step forward in the editor history."),
		mcp.WithOutputSchema[StateResponse](),
	), mcp.NewStructuredToolHandler(s.handleRedo))
}

func (s *Server) handleParse(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.dispatcher.Parse(ctx, code)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("parse failed: %v", err)), nil
	}
	jsonBytes, _ := json.Marshal(res)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleValidate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	jsonBytes, _ := json.Marshal(s.parser.Validate(code))
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleGenerate(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (GenerateResponse, error) {
	title, _ := args["title"].(string)

	var actors []string
	if raw, ok := args["actors"].(string); ok {
		if err := json.Unmarshal([]byte(raw), &actors); err != nil {
			return GenerateResponse{}, fmt.Errorf("actors must be a JSON array of strings: %w", err)
		}
	}
	var actions []domain.Action
	if raw, ok := args["actions"].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &actions); err != nil {
			return GenerateResponse{}, fmt.Errorf("actions must be a JSON array: %w", err)
		}
	}
	for i, a := range actions {
		if err := a.Validate(); err != nil {
			return GenerateResponse{}, fmt.Errorf("action %d: %w", i, err)
		}
	}

	actors = domain.UniqueStrings(actors)
	out := GenerateResponse{Code: plantuml.Generate(title, actors, actions)}
	if m, _ := args["mermaid"].(bool); m {
		out.Mermaid = graph.GenerateMermaid(title, actors, actions, nil)
	}
	return out, nil
}

func (s *Server) handleUpdateCode(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (StateResponse, error) {
	code, _ := args["code"].(string)
	preserve, _ := args["preserve_complex"].(bool)

	res, err := s.engine.UpdateFromCode(ctx, code, runtime.UpdateOptions{PreserveComplex: preserve})
	if err != nil {
		s.logger.Warn("MCP update_code rejected", "error", err)
		return StateResponse{}, fmt.Errorf("update failed: %w", err)
	}
	return StateResponse{State: res.State, Validation: &res.Validation, Fallback: res.Fallback}, nil
}

func (s *Server) handleUpdateModel(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (StateResponse, error) {
	raw, _ := args["changes"].(string)
	var input map[string]any
	if err := json.Unmarshal([]byte(raw), &input); err != nil {
		return StateResponse{}, fmt.Errorf("changes must be a JSON object: %w", err)
	}
	changes, err := runtime.DecodeChanges(input)
	if err != nil {
		return StateResponse{}, err
	}
	res, err := s.engine.UpdateFromUI(ctx, changes)
	if err != nil {
		return StateResponse{}, fmt.Errorf("update failed: %w", err)
	}
	return StateResponse{State: res.State}, nil
}

func (s *Server) handleUndo(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (StateResponse, error) {
	applied := s.engine.Undo()
	return StateResponse{State: s.engine.State(), Applied: &applied}, nil
}

func (s *Server) handleRedo(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (StateResponse, error) {
	applied := s.engine.Redo()
	return StateResponse{State: s.engine.State(), Applied: &applied}, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("umlsync://diagram", "Current Diagram",
		mcp.WithMIMEType("text/plain"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "umlsync://diagram",
				MIMEType: "text/plain",
				Text:     s.engine.GeneratePlantUMLCode(),
			},
		}, nil
	})

	s.mcpServer.AddResource(mcp.NewResource("umlsync://state", "Editor State",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return jsonResource("umlsync://state", s.engine.State())
	})

	s.mcpServer.AddResource(mcp.NewResource("umlsync://stats", "Dispatcher Statistics",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return jsonResource("umlsync://stats", s.dispatcher.Stats())
	})
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}
