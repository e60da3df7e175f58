// Package lsp implements the ormtypes JSON-RPC 2.0 server. It speaks the
// Language Server Protocol lifecycle and exposes the type engine through
// custom "ormtypes/" methods for editors and type checker plugins.
package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"sync"

	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/zap"

	"github.com/conduit-lang/ormtypes/internal/orm/conf"
	"github.com/conduit-lang/ormtypes/internal/tooling"
	"github.com/conduit-lang/ormtypes/internal/watch"
)

// Custom methods
const (
	MethodExpectedTypes = "ormtypes/expectedTypes"
	MethodLookupType    = "ormtypes/lookupType"
	MethodResolveLookup = "ormtypes/resolveLookup"
)

// Server implements the JSON-RPC server
type Server struct {
	// api is the tooling API that owns the booted registry
	api *tooling.API

	// conn is the JSON-RPC connection
	conn jsonrpc2.Conn

	// client is the LSP client interface
	client protocol.Client

	logger *zap.Logger

	// settingsModule is booted on initialize unless the client names one
	settingsModule string

	// workspaceRoot is the root directory of the workspace
	workspaceRoot string

	// Server capabilities
	capabilities protocol.ServerCapabilities

	// cancel is used to signal server shutdown
	cancel context.CancelFunc

	// watchFiles re-boots the settings module when declarations change
	watchFiles bool
	watchMu    sync.Mutex
	watcher    *watch.FileWatcher
}

// Option configures a Server
type Option func(*Server)

// WithSettingsModule sets the settings module booted when the client sends none
func WithSettingsModule(module string) Option {
	return func(s *Server) {
		s.settingsModule = module
	}
}

// WithWatch re-boots the settings module when a YAML file on the search path changes
func WithWatch(enabled bool) Option {
	return func(s *Server) {
		s.watchFiles = enabled
	}
}

// WithAPI serves an existing API instead of a fresh one
func WithAPI(api *tooling.API) Option {
	return func(s *Server) {
		s.api = api
	}
}

// NewServer creates a new server instance
func NewServer(logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		logger: logger,
		capabilities: protocol.ServerCapabilities{
			TextDocumentSync: protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    protocol.TextDocumentSyncKindNone,
			},
			Experimental: map[string]interface{}{
				"ormtypes": []string{MethodExpectedTypes, MethodLookupType, MethodResolveLookup},
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.api == nil {
		s.api = tooling.NewAPI(logger)
	}
	return s
}

// Run serves on stdin/stdout until the client exits or ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, stdrwc{})
}

// Serve serves one connection until the client exits or ctx is cancelled
func (s *Server) Serve(ctx context.Context, rwc io.ReadWriteCloser) error {
	s.logger.Info("starting ormtypes server")

	// Create context with cancellation for shutdown
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	defer cancel()

	conn := jsonrpc2.NewConn(jsonrpc2.NewStream(rwc))
	s.conn = conn
	s.client = protocol.ClientDispatcher(conn, s.logger.Named("client"))

	// Register handlers
	conn.Go(ctx, s.handler())

	select {
	case <-ctx.Done():
	case <-conn.Done():
	}

	s.logger.Info("shutting down ormtypes server")
	s.watchMu.Lock()
	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			s.logger.Warn("failed to stop watcher", zap.Error(err))
		}
	}
	s.watchMu.Unlock()
	return conn.Close()
}

// handler returns the JSON-RPC handler function
func (s *Server) handler() jsonrpc2.Handler {
	return func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		s.logger.Debug("received", zap.String("method", req.Method()))

		switch req.Method() {
		case protocol.MethodInitialize:
			return s.handleInitialize(ctx, reply, req)
		case protocol.MethodInitialized:
			return reply(ctx, nil, nil)
		case protocol.MethodShutdown:
			return s.handleShutdown(ctx, reply, req)
		case protocol.MethodExit:
			return s.handleExit(ctx, reply, req)
		case protocol.MethodTextDocumentDidOpen, protocol.MethodTextDocumentDidSave:
			return s.handleTextDocumentRefresh(ctx, reply, req)
		case protocol.MethodTextDocumentDidClose:
			return s.handleTextDocumentDidClose(ctx, reply, req)
		case MethodExpectedTypes:
			return s.handleExpectedTypes(ctx, reply, req)
		case MethodLookupType:
			return s.handleLookupType(ctx, reply, req)
		case MethodResolveLookup:
			return s.handleResolveLookup(ctx, reply, req)
		default:
			return reply(ctx, nil, jsonrpc2.ErrMethodNotFound)
		}
	}
}

// InitializationOptions are the ormtypes settings a client may send on initialize
type InitializationOptions struct {
	SettingsModule string   `json:"settingsModule,omitempty"`
	SearchPath     []string `json:"searchPath,omitempty"`
}

// handleInitialize extends the search path with the workspace and boots the settings module
func (s *Server) handleInitialize(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.InitializeParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse initialize params")
	}
	var extra struct {
		InitializationOptions *InitializationOptions `json:"initializationOptions"`
	}
	if err := json.Unmarshal(req.Params(), &extra); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse initializationOptions")
	}

	// Extract workspace root from params
	if len(params.WorkspaceFolders) > 0 {
		s.workspaceRoot = uri.URI(params.WorkspaceFolders[0].URI).Filename()
	} else if params.RootURI != "" {
		s.workspaceRoot = params.RootURI.Filename()
	} else if params.RootPath != "" {
		s.workspaceRoot = params.RootPath
	}
	if s.workspaceRoot != "" {
		s.logger.Info("workspace root", zap.String("root", s.workspaceRoot))
		conf.AppendSearchPath(s.workspaceRoot)
	}

	module := s.settingsModule
	if opts := extra.InitializationOptions; opts != nil {
		for _, dir := range opts.SearchPath {
			conf.AppendSearchPath(dir)
		}
		if opts.SettingsModule != "" {
			module = opts.SettingsModule
		}
	}
	if module == "" && !s.api.Ready() {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams,
			"No settings module: send initializationOptions.settingsModule or set settings_module in ormtypes.yml")
	}
	if module != "" {
		if err := s.api.Boot(module); err != nil {
			s.logger.Error("failed to boot settings module", zap.String("settings", module), zap.Error(err))
			return s.replyWithError(ctx, reply, jsonrpc2.InternalError, err.Error())
		}
	}

	if s.watchFiles {
		if err := s.startWatcher(); err != nil {
			s.logger.Warn("file watching disabled", zap.Error(err))
		}
	}

	result := protocol.InitializeResult{
		Capabilities: s.capabilities,
		ServerInfo: &protocol.ServerInfo{
			Name:    "ormtypes",
			Version: "0.1.0",
		},
	}
	return reply(ctx, result, nil)
}

// startWatcher watches the existing search path directories
func (s *Server) startWatcher() error {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.watcher != nil {
		return nil
	}

	var roots []string
	for _, dir := range conf.SearchPath() {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			roots = append(roots, dir)
		}
	}
	if len(roots) == 0 {
		return errors.New("no search path directory to watch")
	}

	watcher, err := watch.NewFileWatcher(roots, watch.DefaultPatterns, s.logger.Named("watch"), s.reload)
	if err != nil {
		return err
	}
	if err := watcher.Start(); err != nil {
		watcher.Stop()
		return err
	}
	s.watcher = watcher
	return nil
}

// reload re-boots the current settings module after declaration changes
func (s *Server) reload(files []string) error {
	module := s.api.SettingsModule()
	if module == "" {
		return nil
	}
	s.logger.Info("declarations changed, rebooting", zap.Strings("files", files))
	return s.api.Boot(module)
}

// handleShutdown handles the shutdown request
func (s *Server) handleShutdown(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	s.logger.Info("shutdown requested")
	return reply(ctx, nil, nil)
}

// handleExit handles the exit notification
func (s *Server) handleExit(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	s.logger.Info("exit requested")
	// Reply first, then trigger shutdown
	if err := reply(ctx, nil, nil); err != nil {
		s.logger.Warn("error replying to exit", zap.Error(err))
	}
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

// publishDiagnostics pushes the diagnostics recorded for a document
func (s *Server) publishDiagnostics(ctx context.Context, documentURI string) {
	if s.client == nil || documentURI == "" {
		return
	}
	if err := s.client.PublishDiagnostics(ctx, s.api.PublishParams(documentURI)); err != nil {
		s.logger.Warn("error publishing diagnostics", zap.String("uri", documentURI), zap.Error(err))
	}
}

// replyWithError sends an LSP-compliant error response
func (s *Server) replyWithError(ctx context.Context, reply jsonrpc2.Replier, code jsonrpc2.Code, message string) error {
	return reply(ctx, nil, &jsonrpc2.Error{
		Code:    code,
		Message: message,
	})
}

// replyWithQueryError maps engine errors onto JSON-RPC error codes
func (s *Server) replyWithQueryError(ctx context.Context, reply jsonrpc2.Replier, err error) error {
	switch {
	case errors.Is(err, tooling.ErrNotBooted):
		return s.replyWithError(ctx, reply, jsonrpc2.ServerNotInitialized, err.Error())
	case errors.Is(err, tooling.ErrModelNotFound):
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, err.Error())
	}
	return s.replyWithError(ctx, reply, jsonrpc2.InternalError, err.Error())
}

// stdrwc implements io.ReadWriteCloser for stdin/stdout
type stdrwc struct{}

func (stdrwc) Read(p []byte) (int, error) {
	return os.Stdin.Read(p)
}

func (stdrwc) Write(p []byte) (int, error) {
	return os.Stdout.Write(p)
}

func (stdrwc) Close() error {
	if err := os.Stdin.Close(); err != nil {
		return err
	}
	return os.Stdout.Close()
}
