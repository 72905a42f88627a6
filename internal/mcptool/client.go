// Package mcptool provides the client for the remote Salesforce tool server,
// speaking MCP (JSON-RPC 2.0 over streamable HTTP).
package mcptool

import (
	"context"
	"strings"
	"sync"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/sfbridge-dev/sfbridge/internal/apperrors"
	"github.com/sfbridge-dev/sfbridge/internal/models"
)

const (
	clientName    = "sfbridge"
	clientVersion = "1.0.0"

	listTimeout = 30 * time.Second
	callTimeout = 60 * time.Second
)

// rpcClient is the slice of the MCP client the bridge depends on.
type rpcClient interface {
	Start(ctx context.Context) error
	Initialize(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// Client maintains the logical connection to the tool server and caches its
// tool catalog until the next reconnect.
type Client struct {
	url string
	log zerolog.Logger

	mu        sync.Mutex
	rpc       rpcClient
	catalog   []models.ToolDescriptor
	connected bool

	newRPC func(url string) (rpcClient, error)
}

// NewClient creates a Client for the given streamable-HTTP MCP endpoint.
func NewClient(url string, log zerolog.Logger) *Client {
	return &Client{
		url: url,
		log: log,
		newRPC: func(url string) (rpcClient, error) {
			return mcpclient.NewStreamableHttpClient(url)
		},
	}
}

// Connect initializes the MCP session and eagerly fetches the tool catalog.
// A catalog fetch failure does not fail the connection; the catalog is
// retried lazily on first use so a briefly unreachable tool server cannot
// prevent the bridge from starting.
func (c *Client) Connect(ctx context.Context) error {
	rpc, err := c.newRPC(c.url)
	if err != nil {
		return apperrors.New(apperrors.ErrCodeToolProtocol, "failed to create MCP client", err)
	}

	if err := rpc.Start(ctx); err != nil {
		return apperrors.New(apperrors.ErrCodeToolProtocol, "failed to start MCP transport", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    clientName,
		Version: clientVersion,
	}

	if _, err := rpc.Initialize(ctx, initReq); err != nil {
		rpc.Close()
		return apperrors.New(apperrors.ErrCodeToolProtocol, "MCP initialize failed", err)
	}

	c.mu.Lock()
	c.rpc = rpc
	c.connected = true
	c.catalog = nil
	c.mu.Unlock()

	if _, err := c.ListTools(ctx); err != nil {
		c.log.Warn().Err(err).Msg("eager tool catalog fetch failed, will retry on first use")
	}

	return nil
}

// Disconnect closes the MCP session and invalidates the catalog.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	rpc := c.rpc
	c.rpc = nil
	c.connected = false
	c.catalog = nil
	c.mu.Unlock()

	if rpc == nil {
		return nil
	}
	return rpc.Close()
}

// Connected reports whether a logical session is established.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// ListTools returns the cached tool catalog, fetching it from the server if
// it has not been loaded yet.
func (c *Client) ListTools(ctx context.Context) ([]models.ToolDescriptor, error) {
	c.mu.Lock()
	rpc := c.rpc
	if c.catalog != nil {
		catalog := make([]models.ToolDescriptor, len(c.catalog))
		copy(catalog, c.catalog)
		c.mu.Unlock()
		return catalog, nil
	}
	c.mu.Unlock()

	if rpc == nil {
		return nil, apperrors.New(apperrors.ErrCodeToolProtocol, "tool server not connected", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	res, err := rpc.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeToolProtocol, "tools/list failed", err)
	}

	catalog := make([]models.ToolDescriptor, 0, len(res.Tools))
	for _, t := range res.Tools {
		catalog = append(catalog, models.ToolDescriptor{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: models.InputSchema{
				Type:       t.InputSchema.Type,
				Properties: t.InputSchema.Properties,
				Required:   t.InputSchema.Required,
			},
		})
	}

	c.mu.Lock()
	c.catalog = catalog
	c.mu.Unlock()

	c.log.Info().Int("tools", len(catalog)).Msg("loaded tool catalog")

	out := make([]models.ToolDescriptor, len(catalog))
	copy(out, catalog)
	return out, nil
}

// CallTool executes one tool call. When an AuthContext is present it is
// forwarded in the request _meta so the tool server acts with the caller's
// authority instead of a shared service identity. Calls are independent,
// stateless exchanges; there is no call-level locking.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]interface{}, authCtx *models.AuthContext) (*models.ToolOutcome, error) {
	c.mu.Lock()
	rpc := c.rpc
	c.mu.Unlock()

	if rpc == nil {
		return nil, apperrors.New(apperrors.ErrCodeToolProtocol, "tool server not connected", nil)
	}

	if args == nil {
		args = map[string]interface{}{}
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	if authCtx != nil {
		req.Params.Meta = &mcp.Meta{
			AdditionalFields: map[string]any{
				"salesforceAuth": map[string]any{
					"accessToken": authCtx.AccessToken,
					"instanceUrl": authCtx.InstanceURL,
					"userId":      authCtx.Identity.UserID,
					"username":    authCtx.Identity.Username,
				},
			},
		}
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	res, err := rpc.CallTool(ctx, req)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeToolProtocol, "tools/call failed for "+name, err)
	}

	var parts []string
	for _, item := range res.Content {
		if tc, ok := mcp.AsTextContent(item); ok {
			parts = append(parts, tc.Text)
		}
	}

	return &models.ToolOutcome{
		Content: strings.Join(parts, "\n"),
		IsError: res.IsError,
	}, nil
}
