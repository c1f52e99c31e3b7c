package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"

	"github.com/sailhdl/sail-ls/jsonrpc2"
	"github.com/sailhdl/sail-ls/protocol"
)

// lifecycle follows LSP's initialize handshake: requests other than
// initialize are rejected until the client has sent initialize and the
// initialized notification, and everything but exit is rejected after
// shutdown.
type lifecycle int32

const (
	stateUninitialized lifecycle = iota
	stateInitializing
	stateRunning
	stateShutdown
)

// Server owns one LSP connection: it frames messages off the stream,
// dispatches them to registered handlers one at a time, and tracks the
// initialize/shutdown lifecycle. Message processing is strictly
// sequential; a message's response is written before the next message
// is read, which is what gives per-URI edits-before-queries ordering.
type Server struct {
	conn  *jsonrpc2.Conn
	state atomic.Int32

	mu       sync.RWMutex
	handlers map[string]*typedHandler

	logger *log.Logger

	initParams    *protocol.InitializeParams
	onInitialized func(ctx context.Context, params *protocol.InitializeParams)

	// reqID numbers server-initiated requests to the client.
	reqID atomic.Int64
}

// NewServer builds a server speaking LSP over the configured stream
// (stdin/stdout unless WithStream overrides it) and registers the
// lifecycle handlers every server needs.
func NewServer(opts ...Option) *Server {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	s := &Server{
		handlers: make(map[string]*typedHandler),
		logger:   o.logger,
		conn:     jsonrpc2.NewConn(jsonrpc2.NewStream(o.stream)),
	}
	s.state.Store(int32(stateUninitialized))

	s.Register(protocol.MethodInitialize, s.handleInitialize)
	s.Register(protocol.MethodInitialized, s.handleInitialized)
	s.Register(protocol.MethodShutdown, s.handleShutdown)
	s.Register(protocol.MethodExit, s.handleExit)
	s.Register(protocol.MethodCancelRequest, s.handleCancel)
	s.Register(protocol.MethodProgress, s.handleProgress)

	return s
}

// Register binds a handler function to a method name. The function must
// match one of the shapes validateHandlerFunc accepts; registering the
// same method twice is an error.
func (s *Server) Register(method string, handlerFunc any) error {
	paramType, takesConn, takesParams, err := validateHandlerFunc(handlerFunc)
	if err != nil {
		return fmt.Errorf("invalid handler for %s: %w", method, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.handlers[method]; dup {
		return fmt.Errorf("duplicate handler for %s", method)
	}
	s.handlers[method] = &typedHandler{
		fn:          handlerFunc,
		paramType:   paramType,
		takesConn:   takesConn,
		takesParams: takesParams,
	}
	return nil
}

// OnInitialized registers a callback invoked once, when the client's
// initialized notification moves the server into the running state. The
// callback receives the InitializeParams from the handshake; the initial
// workspace scan and watched-files registration hang off it.
func (s *Server) OnInitialized(fn func(ctx context.Context, params *protocol.InitializeParams)) {
	s.onInitialized = fn
}

func (s *Server) currentState() lifecycle {
	return lifecycle(s.state.Load())
}

func (s *Server) lookup(method string) (*typedHandler, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handlers[method]
	return h, ok
}

// Run reads and processes messages until the stream closes or ctx is
// cancelled. A malformed message body gets an error response with a null id
// (ParseError for bad JSON, InvalidRequest for JSON that is not a message)
// and the loop continues; a header-level framing error is fatal since the byte
// stream can no longer be split into messages.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Println("server loop started")
	defer s.logger.Println("server loop stopped")

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.conn.Close() //nolint:errcheck
		case <-done:
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := s.conn.Read(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
				if s.currentState() == stateShutdown {
					return nil
				}
				s.logger.Printf("connection closed before shutdown: %v", err)
				if errors.Is(err, io.EOF) {
					return io.ErrUnexpectedEOF
				}
				return err
			default:
				// An ErrorObject means the frame was consumed whole but the
				// body was not a valid message; reply with id null and keep
				// serving. Anything else has desynced the framing.
				if jsonErr, ok := err.(*jsonrpc2.ErrorObject); ok {
					s.logger.Printf("malformed message body: %v", jsonErr)
					resp := jsonrpc2.NewResponse(json.RawMessage("null"), nil, jsonErr)
					if werr := s.conn.Write(ctx, resp); werr != nil {
						s.logger.Printf("writing parse-error response: %v", werr)
					}
					continue
				}
				return fmt.Errorf("reading message: %w", err)
			}
		}

		switch m := msg.(type) {
		case *jsonrpc2.RequestMessage:
			s.dispatchRequest(ctx, m)
		case *jsonrpc2.NotificationMessage:
			s.dispatchNotification(ctx, m)
		case *jsonrpc2.ResponseMessage:
			// Reply to a server-initiated request (registerCapability).
			// Nothing correlates these; log and move on.
			s.logger.Printf("client response id=%s", string(m.ID))
		}
	}
}

// gateRequest applies the lifecycle rules to an incoming request and
// returns the rejection to send, or nil if the request may proceed.
func (s *Server) gateRequest(method string) *jsonrpc2.ErrorObject {
	switch s.currentState() {
	case stateShutdown:
		return jsonrpc2.NewError(jsonrpc2.InvalidRequest, "server is shutting down")
	case stateUninitialized, stateInitializing:
		if method != protocol.MethodInitialize {
			return jsonrpc2.NewError(jsonrpc2.ServerNotInitialized, "server not initialized")
		}
	}
	return nil
}

func (s *Server) dispatchRequest(ctx context.Context, req *jsonrpc2.RequestMessage) {
	s.logger.Printf("--> %s id=%s", req.Method, string(req.ID))

	if reject := s.gateRequest(req.Method); reject != nil {
		s.respond(ctx, req.ID, nil, reject)
		return
	}

	handler, ok := s.lookup(req.Method)
	if !ok {
		s.respond(ctx, req.ID, nil, jsonrpc2.Errorf(jsonrpc2.MethodNotFound, "method not found: %s", req.Method))
		return
	}

	result, err := handler.invoke(ctx, s.conn, req.Params)
	var respErr *jsonrpc2.ErrorObject
	if err != nil {
		if jsonErr, ok := err.(*jsonrpc2.ErrorObject); ok {
			respErr = jsonErr
		} else {
			s.logger.Printf("handler error for %s id=%s: %v", req.Method, string(req.ID), err)
			respErr = jsonrpc2.NewError(jsonrpc2.InternalError, err.Error())
		}
	}
	s.respond(ctx, req.ID, result, respErr)
}

func (s *Server) dispatchNotification(ctx context.Context, n *jsonrpc2.NotificationMessage) {
	s.logger.Printf("--> %s", n.Method)

	state := s.currentState()
	if state == stateShutdown && n.Method != protocol.MethodExit {
		return
	}
	if state == stateUninitialized &&
		n.Method != protocol.MethodCancelRequest && n.Method != protocol.MethodProgress && n.Method != protocol.MethodExit {
		s.logger.Printf("dropping %s before initialization", n.Method)
		return
	}

	handler, ok := s.lookup(n.Method)
	if !ok {
		// Unknown notifications are ignored per the LSP spec.
		return
	}
	if _, err := handler.invoke(ctx, s.conn, n.Params); err != nil {
		// Notifications have no response channel; the error is only logged.
		s.logger.Printf("notification %s: %v", n.Method, err)
	}
}

// respond sends a response for id, encoding a nil result as JSON null.
func (s *Server) respond(ctx context.Context, id json.RawMessage, result any, respErr *jsonrpc2.ErrorObject) {
	if len(id) == 0 || string(id) == "null" {
		return
	}

	raw := json.RawMessage("null")
	if respErr == nil && result != nil {
		marshalled, err := json.Marshal(result)
		if err != nil {
			respErr = jsonrpc2.Errorf(jsonrpc2.InternalError, "failed to marshal result: %v", err)
		} else {
			raw = marshalled
		}
	}

	if respErr != nil {
		s.logger.Printf("<-- id=%s error=%s", string(id), respErr.Code)
	} else {
		s.logger.Printf("<-- id=%s ok", string(id))
	}
	if err := s.conn.Write(ctx, jsonrpc2.NewResponse(id, raw, respErr)); err != nil {
		s.logger.Printf("writing response id=%s: %v", string(id), err)
	}
}

func (s *Server) handleInitialize(ctx context.Context, params *protocol.InitializeParams) (*protocol.InitializeResult, error) {
	if !s.state.CompareAndSwap(int32(stateUninitialized), int32(stateInitializing)) {
		return nil, jsonrpc2.NewError(jsonrpc2.InvalidRequest, "server already initialized")
	}
	s.initParams = params
	if params.ClientInfo != nil {
		s.logger.Printf("client: %s %s", params.ClientInfo.Name, params.ClientInfo.Version)
	}

	return &protocol.InitializeResult{
		Capabilities: s.capabilities(),
		ServerInfo: &protocol.ServerInfo{
			Name:    "sail-ls",
			Version: "0.1.0",
		},
	}, nil
}

// capabilities derives what the server advertises from which handlers are
// registered, so a capability is only claimed when something will answer
// for it: incremental sync, go-to-definition, hover, completion triggered
// on space, signature help triggered on space and comma, and
// workspace-folders change notifications.
func (s *Server) capabilities() protocol.ServerCapabilities {
	s.mu.RLock()
	defer s.mu.RUnlock()

	has := func(method string) bool {
		_, ok := s.handlers[method]
		return ok
	}

	caps := protocol.ServerCapabilities{}

	openClose := has(protocol.MethodTextDocumentDidOpen) || has(protocol.MethodTextDocumentDidClose)
	if openClose || has(protocol.MethodTextDocumentDidChange) || has(protocol.MethodTextDocumentDidSave) {
		caps.TextDocumentSync = &protocol.TextDocumentSyncOptions{
			OpenClose: openClose,
			Change:    protocol.SyncIncremental,
		}
		if has(protocol.MethodTextDocumentDidSave) {
			caps.TextDocumentSync.Save = &protocol.SaveOptions{IncludeText: false}
		}
	}
	if has(protocol.MethodTextDocumentHover) {
		caps.HoverProvider = &protocol.HoverOptions{}
	}
	if has(protocol.MethodTextDocumentCompletion) {
		caps.CompletionProvider = &protocol.CompletionOptions{TriggerCharacters: []string{" "}}
	}
	if has(protocol.MethodTextDocumentDefinition) {
		caps.DefinitionProvider = &protocol.DefinitionOptions{}
	}
	if has(protocol.MethodTextDocumentSignatureHelp) {
		caps.SignatureHelpProvider = &protocol.SignatureHelpOptions{TriggerCharacters: []string{" ", ","}}
	}
	if has(protocol.MethodWorkspaceDidChangeWorkspaceFolders) {
		caps.Workspace = &protocol.ServerCapabilitiesWorkspace{
			WorkspaceFolders: &protocol.WorkspaceFoldersServerCapabilities{
				Supported:           true,
				ChangeNotifications: true,
			},
		}
	}
	return caps
}

func (s *Server) handleInitialized(ctx context.Context, params *protocol.InitializedParams) error {
	if !s.state.CompareAndSwap(int32(stateInitializing), int32(stateRunning)) {
		s.logger.Printf("initialized notification in state %d", s.currentState())
		return nil
	}
	if s.onInitialized != nil && s.initParams != nil {
		s.onInitialized(ctx, s.initParams)
	}
	return nil
}

func (s *Server) handleShutdown(ctx context.Context) error {
	// Any pre-shutdown state may transition; the response goes out
	// immediately and the actual teardown waits for exit.
	for _, from := range []lifecycle{stateRunning, stateInitializing, stateUninitialized} {
		if s.state.CompareAndSwap(int32(from), int32(stateShutdown)) {
			break
		}
	}
	return nil
}

func (s *Server) handleExit(ctx context.Context) {
	// Dispatch is synchronous, so no other message can be in flight here;
	// the exit code only reflects whether shutdown was requested first.
	code := 1
	if s.currentState() == stateShutdown {
		code = 0
	}
	if err := s.conn.Close(); err != nil {
		s.logger.Printf("closing connection on exit: %v", err)
	}
	os.Exit(code)
}

// handleCancel accepts $/cancelRequest and drops it: there are no
// long-running analyses to cancel.
func (s *Server) handleCancel(ctx context.Context, params *json.RawMessage) {
	var p struct {
		ID json.RawMessage `json:"id"`
	}
	if params != nil && json.Unmarshal(*params, &p) == nil {
		s.logger.Printf("cancel requested for id=%s (ignored)", string(p.ID))
	}
}

// handleProgress accepts $/progress; the server never initiates progress
// reporting, so client progress values carry nothing to act on.
func (s *Server) handleProgress(ctx context.Context, params *json.RawMessage) {
	if params == nil {
		return
	}
	var p struct {
		Token json.RawMessage `json:"token"`
	}
	if err := json.Unmarshal(*params, &p); err != nil {
		s.logger.Printf("malformed progress notification: %v", err)
		return
	}
	s.logger.Printf("progress token=%s (ignored)", string(p.Token))
}

// Notify sends a notification to the client. Only valid while running.
// Diagnostics are not published through it; they go out via
// protocol.SendDiagnostics on the handler's connection.
func (s *Server) Notify(ctx context.Context, method string, params any) error {
	if state := s.currentState(); state != stateRunning {
		return fmt.Errorf("cannot notify %s in state %d", method, state)
	}
	ntf, err := jsonrpc2.NewNotification(method, params)
	if err != nil {
		return fmt.Errorf("marshalling %s params: %w", method, err)
	}
	s.logger.Printf("<-- %s", method)
	if err := s.conn.Write(ctx, ntf); err != nil {
		return fmt.Errorf("writing notification %s: %w", method, err)
	}
	return nil
}

// RequestToClient sends a server-initiated request such as
// client/registerCapability. It is fire-and-forget: the reply is read by
// the main loop like any other message and logged rather than correlated,
// which is enough for the one caller (the watched-files registration) as
// its result carries nothing to act on.
func (s *Server) RequestToClient(ctx context.Context, method string, params any) error {
	id := s.reqID.Add(1)
	req, err := jsonrpc2.NewRequest(json.RawMessage(fmt.Sprintf("%d", id)), method, params)
	if err != nil {
		return fmt.Errorf("marshalling %s params: %w", method, err)
	}
	s.logger.Printf("<-- %s id=%d", method, id)
	if err := s.conn.Write(ctx, req); err != nil {
		return fmt.Errorf("writing request %s: %w", method, err)
	}
	return nil
}
