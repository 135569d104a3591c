package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/pichlex/debitor"
	"github.com/pichlex/debitor/internal/logging"
	"github.com/pichlex/debitor/internal/presentation/graph"
	"github.com/pichlex/debitor/pkg/domain"
	dgraph "github.com/pichlex/debitor/pkg/graph"
	"github.com/pichlex/debitor/pkg/runner"
	"golang.org/x/sync/errgroup"
)

const graphURI = "debitor://graph"

// Service is the part of *debitor.Service the MCP tools need.
type Service interface {
	Invoke(ctx context.Context, conversationID, text string, meta map[string]any) (*debitor.Reply, error)
	Graph() *dgraph.Graph
	Session(ctx context.Context, conversationID string) (*domain.ConversationState, error)
}

// SendMessageResponse is the structured result of send_message.
type SendMessageResponse struct {
	ThreadID string         `json:"thread_id" jsonschema_description:"Conversation the message was sent to"`
	Output   string         `json:"output" jsonschema_description:"Reply to show to the debtor"`
	Outputs  []string       `json:"outputs" jsonschema_description:"Every message produced by the turn"`
	Route    string         `json:"route,omitempty" jsonschema_description:"Last routing label"`
	Stage    string         `json:"stage,omitempty" jsonschema_description:"Business stage of the conversation"`
	Turn     int            `json:"turn" jsonschema_description:"Number of user messages so far"`
	Path     []string       `json:"path" jsonschema_description:"Nodes visited during the turn"`
	Shard    int            `json:"shard" jsonschema_description:"Shard that owns the conversation"`
	Scratch  map[string]any `json:"scratch,omitempty" jsonschema_description:"Business fields recorded so far"`
}

// Server exposes the service as an MCP server.
type Server struct {
	svc       Service
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(svc Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		svc:       svc,
		logger:    logger,
		mcpServer: server.NewMCPServer("debitor-mcp", strings.TrimSpace(debitor.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on addr until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))
	httpServer := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	sendTool := mcp.NewTool("send_message",
		mcp.WithDescription("Send the debtor's message to a conversation and get the collector's reply."),
		mcp.WithString("thread_id", mcp.Required(), mcp.Description("Conversation id")),
		mcp.WithString("message", mcp.Required(), mcp.Description("The debtor's message")),
		mcp.WithString("meta", mcp.Description("JSON object with caller details (agent_name, company, act_date, act_amount, debt_sum)")),
		mcp.WithOutputSchema[SendMessageResponse](),
	)
	s.mcpServer.AddTool(sendTool, mcp.NewStructuredToolHandler(s.handleSendMessage))

	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get the dialogue graph for introspection."),
		mcp.WithString("format", mcp.Description("json (default) or mermaid")),
	), s.handleGetGraph)

	s.mcpServer.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Get the stored state of a conversation."),
		mcp.WithString("thread_id", mcp.Required(), mcp.Description("Conversation id")),
	), s.handleGetSession)
}

func (s *Server) handleSendMessage(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (SendMessageResponse, error) {
	threadID, _ := args["thread_id"].(string)
	message, _ := args["message"].(string)
	if strings.TrimSpace(threadID) == "" {
		return SendMessageResponse{}, errors.New("thread_id is required")
	}

	var meta map[string]any
	if raw, ok := args["meta"].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			return SendMessageResponse{}, fmt.Errorf("meta must be a JSON object: %w", err)
		}
	}

	clean, err := runner.CleanMessage(message)
	if err != nil {
		s.logger.Warn("MCP send_message: input rejected", "err", err, "size", len(message))
		return SendMessageResponse{}, fmt.Errorf("input rejected: %w", err)
	}

	reply, err := s.svc.Invoke(ctx, threadID, clean, meta)
	if err != nil {
		return SendMessageResponse{}, fmt.Errorf("turn failed: %w", err)
	}
	return SendMessageResponse{
		ThreadID: reply.ConversationID,
		Output:   reply.Output(),
		Outputs:  reply.Outputs,
		Route:    reply.Route,
		Stage:    reply.Stage,
		Turn:     reply.Turn,
		Path:     reply.Path,
		Shard:    reply.Shard,
		Scratch:  reply.Scratch,
	}, nil
}

func (s *Server) handleGetGraph(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nodes := s.svc.Graph().Describe()
	if request.GetString("format", "json") == "mermaid" {
		return mcp.NewToolResultText(graph.GenerateMermaid(nodes, nil)), nil
	}
	data, err := json.Marshal(nodes)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode graph: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("thread_id", "")
	state, err := s.svc.Session(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("session %q: %v", id, err)), nil
	}
	data, err := json.Marshal(state)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode session: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(graphURI, "Dialogue Graph",
		mcp.WithMIMEType("application/json"),
	), func(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := json.Marshal(s.svc.Graph().Describe())
		if err != nil {
			return nil, fmt.Errorf("failed to describe graph: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      graphURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
