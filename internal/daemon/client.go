package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"
	"time"
)

// Client talks to a running daemon.
type Client struct {
	socketPath string
	timeout    time.Duration
	requestID  atomic.Uint64
}

// NewClient creates a new daemon client.
func NewClient(cfg Config) *Client {
	return &Client{
		socketPath: cfg.SocketPath,
		timeout:    cfg.Timeout,
	}
}

// Connect establishes a connection to the daemon.
func (c *Client) Connect() (net.Conn, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w", err)
	}
	return conn, nil
}

// IsRunning checks if the daemon is accepting connections.
func (c *Client) IsRunning() bool {
	conn, err := c.Connect()
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Ping checks if the daemon is responsive.
func (c *Client) Ping(ctx context.Context) error {
	var result PingResult
	if err := c.call(ctx, MethodPing, nil, &result); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	if !result.Pong {
		return fmt.Errorf("ping failed: unexpected reply")
	}
	return nil
}

// Status retrieves daemon status.
func (c *Client) Status(ctx context.Context) (*StatusResult, error) {
	var status StatusResult
	if err := c.call(ctx, MethodStatus, nil, &status); err != nil {
		return nil, fmt.Errorf("status failed: %w", err)
	}
	return &status, nil
}

// CoursePublished queues a full reindex of course and returns at once.
func (c *Client) CoursePublished(ctx context.Context, course string) (*EnqueueResult, error) {
	var result EnqueueResult
	if err := c.call(ctx, MethodCoursePublished, ScopeParams{Scope: course}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// LibraryUpdated reindexes library and waits for the result.
func (c *Client) LibraryUpdated(ctx context.Context, library string) (*ReindexResult, error) {
	var result ReindexResult
	if err := c.call(ctx, MethodLibraryUpdated, ScopeParams{Scope: library}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Reindex runs a pass in the daemon and waits for it.
func (c *Client) Reindex(ctx context.Context, params ReindexParams) (*ReindexResult, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	var result ReindexResult
	if err := c.call(ctx, MethodReindex, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ReindexAbout rewrites the discovery document of course.
func (c *Client) ReindexAbout(ctx context.Context, course string) (*ReindexResult, error) {
	var result ReindexResult
	if err := c.call(ctx, MethodReindexAbout, ScopeParams{Scope: course}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Search queries an index through the daemon.
func (c *Client) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	var result SearchResult
	if err := c.call(ctx, MethodSearch, params, &result); err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return &result, nil
}

// Check compares a course's content with its index.
func (c *Client) Check(ctx context.Context, scope string) (*CheckResult, error) {
	var result CheckResult
	if err := c.call(ctx, MethodCheck, ScopeParams{Scope: scope}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// call sends one request on a fresh connection and decodes the result. A
// JSON-RPC error is returned as *Error.
func (c *Client) call(ctx context.Context, method string, params, result any) error {
	conn, err := c.Connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set deadline: %w", err)
	}

	req := Request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID(),
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	var resp struct {
		Result json.RawMessage `json:"result"`
		Error  *Error          `json:"error"`
		ID     string          `json:"id"`
	}
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return fmt.Errorf("failed to receive response: %w", err)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if result == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return fmt.Errorf("failed to decode result: %w", err)
	}
	return nil
}

// nextID generates a unique request ID.
func (c *Client) nextID() string {
	id := c.requestID.Add(1)
	return fmt.Sprintf("req-%d", id)
}
