package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"
)

// RequestHandler executes the methods the server exposes.
type RequestHandler interface {
	CoursePublished(ctx context.Context, scope string) (*EnqueueResult, error)
	LibraryUpdated(ctx context.Context, scope string) (*ReindexResult, error)
	Reindex(ctx context.Context, params ReindexParams) (*ReindexResult, error)
	ReindexAbout(ctx context.Context, scope string) (*ReindexResult, error)
	Search(ctx context.Context, params SearchParams) (*SearchResult, error)
	Check(ctx context.Context, scope string) (*CheckResult, error)
	Status() StatusResult
}

// Server listens on a Unix socket and handles one request per connection.
type Server struct {
	socketPath string
	timeout    time.Duration
	listener   net.Listener
	handler    RequestHandler
	started    time.Time

	mu       sync.Mutex
	shutdown bool
	wg       sync.WaitGroup
}

// NewServer creates a server for socketPath. timeout bounds each
// connection; zero means 30s.
func NewServer(socketPath string, timeout time.Duration) (*Server, error) {
	if socketPath == "" {
		return nil, fmt.Errorf("socket path cannot be empty")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Server{
		socketPath: socketPath,
		timeout:    timeout,
	}, nil
}

// SetHandler sets the request handler.
func (s *Server) SetHandler(h RequestHandler) {
	s.handler = h
}

// ListenAndServe starts the server and blocks until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	// Clean up any stale socket
	_ = os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.socketPath, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.started = time.Now()
	s.mu.Unlock()

	defer func() {
		_ = listener.Close()
		_ = os.Remove(s.socketPath)
	}()

	slog.Info("server_listening", slog.String("socket", s.socketPath))

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			shutdown := s.shutdown
			s.mu.Unlock()
			if shutdown {
				break
			}
			slog.Error("accept_failed", slog.String("error", err.Error()))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.wg.Wait()
	return ctx.Err()
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(s.timeout)); err != nil {
		slog.Warn("connection_deadline_failed", slog.String("error", err.Error()))
	}

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	var req Request
	if err := decoder.Decode(&req); err != nil {
		_ = encoder.Encode(NewErrorResponse("", ErrCodeParseError, "failed to parse request"))
		return
	}

	start := time.Now()
	resp := s.handleRequest(ctx, req)
	slog.Debug("request_handled",
		slog.String("method", req.Method),
		slog.String("id", req.ID),
		slog.Bool("error", resp.Error != nil),
		slog.Duration("duration", time.Since(start)))
	_ = encoder.Encode(resp)
}

// handleRequest dispatches a request to the handler.
func (s *Server) handleRequest(ctx context.Context, req Request) Response {
	if req.JSONRPC != "" && req.JSONRPC != "2.0" {
		return NewErrorResponse(req.ID, ErrCodeInvalidRequest, "unsupported jsonrpc version: "+req.JSONRPC)
	}

	switch req.Method {
	case MethodPing:
		return NewSuccessResponse(req.ID, PingResult{Pong: true})
	case MethodStatus:
		return NewSuccessResponse(req.ID, s.getStatus())
	}

	if s.handler == nil {
		if isKnownMethod(req.Method) {
			return NewErrorResponse(req.ID, ErrCodeInternalError, "no handler configured")
		}
		return NewErrorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}

	switch req.Method {
	case MethodCoursePublished:
		return withScope(req, func(scope string) (any, error) { return s.handler.CoursePublished(ctx, scope) })
	case MethodLibraryUpdated:
		return withScope(req, func(scope string) (any, error) { return s.handler.LibraryUpdated(ctx, scope) })
	case MethodReindexAbout:
		return withScope(req, func(scope string) (any, error) { return s.handler.ReindexAbout(ctx, scope) })
	case MethodCheck:
		return withScope(req, func(scope string) (any, error) { return s.handler.Check(ctx, scope) })

	case MethodReindex:
		var params ReindexParams
		if err := decodeParams(req, &params); err != nil {
			return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
		}
		if err := params.Validate(); err != nil {
			return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
		}
		result, err := s.handler.Reindex(ctx, params)
		if err != nil {
			return errorResponse(req.ID, err, ErrCodeIndexingFailed)
		}
		return NewSuccessResponse(req.ID, result)

	case MethodSearch:
		var params SearchParams
		if err := decodeParams(req, &params); err != nil {
			return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
		}
		if err := params.Validate(); err != nil {
			return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
		}
		result, err := s.handler.Search(ctx, params)
		if err != nil {
			return errorResponse(req.ID, err, ErrCodeSearchFailed)
		}
		return NewSuccessResponse(req.ID, result)

	default:
		return NewErrorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

func withScope(req Request, call func(scope string) (any, error)) Response {
	var params ScopeParams
	if err := decodeParams(req, &params); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
	}
	if err := params.Validate(); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
	}
	result, err := call(params.Scope)
	if err != nil {
		return errorResponse(req.ID, err, ErrCodeIndexingFailed)
	}
	return NewSuccessResponse(req.ID, result)
}

// decodeParams re-decodes the generic params into a typed struct.
func decodeParams(req Request, into any) error {
	data, err := json.Marshal(req.Params)
	if err != nil {
		return fmt.Errorf("failed to encode params")
	}
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("failed to decode params: %w", err)
	}
	return nil
}

func isKnownMethod(m string) bool {
	switch m {
	case MethodCoursePublished, MethodLibraryUpdated, MethodReindex,
		MethodReindexAbout, MethodSearch, MethodCheck:
		return true
	}
	return false
}

func (s *Server) getStatus() StatusResult {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	status := StatusResult{}
	if s.handler != nil {
		status = s.handler.Status()
	}
	status.Running = true
	status.PID = os.Getpid()
	status.Uptime = time.Since(started).Round(time.Second).String()
	return status
}

// Close stops accepting connections.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown = true

	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
