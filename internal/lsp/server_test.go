package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"

	"github.com/conduit-lang/ormtypes/internal/orm/conf"
	"github.com/conduit-lang/ormtypes/internal/ormctx"
	"github.com/conduit-lang/ormtypes/internal/testing/ormtest"
	"github.com/conduit-lang/ormtypes/internal/tooling"
)

// testClient is the client end of an in-memory connection to a Server
type testClient struct {
	conn jsonrpc2.Conn
	done chan error

	mu          sync.Mutex
	diagnostics []protocol.PublishDiagnosticsParams
}

func startServer(t *testing.T, server *Server) *testClient {
	t.Helper()

	serverSide, clientSide := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())

	c := &testClient{done: make(chan error, 1)}
	go func() { c.done <- server.Serve(ctx, serverSide) }()

	c.conn = jsonrpc2.NewConn(jsonrpc2.NewStream(clientSide))
	c.conn.Go(ctx, func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		if req.Method() == protocol.MethodTextDocumentPublishDiagnostics {
			var params protocol.PublishDiagnosticsParams
			if err := json.Unmarshal(req.Params(), &params); err == nil {
				c.mu.Lock()
				c.diagnostics = append(c.diagnostics, params)
				c.mu.Unlock()
			}
		}
		return reply(ctx, nil, nil)
	})

	t.Cleanup(func() {
		cancel()
		c.conn.Close()
		select {
		case <-c.done:
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})
	return c
}

func (c *testClient) call(t *testing.T, method string, params, result interface{}) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := c.conn.Call(ctx, method, params, result)
	return err
}

func (c *testClient) published() []protocol.PublishDiagnosticsParams {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.PublishDiagnosticsParams(nil), c.diagnostics...)
}

func errorCode(t *testing.T, err error) jsonrpc2.Code {
	t.Helper()
	var rpcErr *jsonrpc2.Error
	require.True(t, errors.As(err, &rpcErr), "expected a JSON-RPC error, got %v", err)
	return rpcErr.Code
}

func initialize(t *testing.T, c *testClient, settings string) protocol.InitializeResult {
	t.Helper()
	var result protocol.InitializeResult
	err := c.call(t, protocol.MethodInitialize, map[string]interface{}{
		"processId":             1,
		"rootUri":               "file:///tmp/workspace",
		"initializationOptions": InitializationOptions{SettingsModule: settings},
	}, &result)
	require.NoError(t, err)
	t.Cleanup(func() { conf.RemoveSearchPath("/tmp/workspace") })
	return result
}

func TestServerInitialization(t *testing.T) {
	server := NewServer(nil)
	if server == nil {
		t.Fatal("NewServer() returned nil")
	}
	if server.api == nil {
		t.Error("Server API is nil")
	}
	if server.logger == nil {
		t.Error("Server logger is nil")
	}
	if server.capabilities.Experimental == nil {
		t.Error("expected custom methods to be advertised")
	}

	api := tooling.NewAPI(nil)
	server = NewServer(nil, WithAPI(api), WithSettingsModule("mysite.settings"))
	if server.api != api {
		t.Error("WithAPI was not applied")
	}
	if server.settingsModule != "mysite.settings" {
		t.Errorf("expected settings module 'mysite.settings', got %q", server.settingsModule)
	}
}

func TestInitialize(t *testing.T) {
	project := ormtest.New(t, ormtest.Library())
	c := startServer(t, NewServer(nil))

	result := initialize(t, c, project.SettingsFile())
	require.NotNil(t, result.ServerInfo)
	assert.Equal(t, "ormtypes", result.ServerInfo.Name)

	var shutdown interface{}
	assert.NoError(t, c.call(t, protocol.MethodShutdown, nil, &shutdown))
}

func TestInitializeErrors(t *testing.T) {
	c := startServer(t, NewServer(nil))

	var result protocol.InitializeResult
	err := c.call(t, protocol.MethodInitialize, map[string]interface{}{"processId": 1}, &result)
	assert.Equal(t, jsonrpc2.InvalidParams, errorCode(t, err))

	err = c.call(t, protocol.MethodInitialize, map[string]interface{}{
		"initializationOptions": InitializationOptions{SettingsModule: "missing.settings"},
	}, &result)
	assert.Equal(t, jsonrpc2.InternalError, errorCode(t, err))

	var types ExpectedTypesResult
	err = c.call(t, MethodExpectedTypes, ExpectedTypesParams{Model: "library.Book"}, &types)
	assert.Equal(t, jsonrpc2.ServerNotInitialized, errorCode(t, err))

	err = c.call(t, "textDocument/hover", map[string]interface{}{}, &types)
	assert.Equal(t, jsonrpc2.MethodNotFound, errorCode(t, err))
}

func TestSettingsModuleFallback(t *testing.T) {
	project := ormtest.New(t, ormtest.Library())
	server := NewServer(nil, WithSettingsModule(project.SettingsFile()))
	c := startServer(t, server)

	var result protocol.InitializeResult
	require.NoError(t, c.call(t, protocol.MethodInitialize, map[string]interface{}{"processId": 1}, &result))
	assert.True(t, server.api.Ready())
}

func TestExpectedTypes(t *testing.T) {
	project := ormtest.New(t, ormtest.Library())
	c := startServer(t, NewServer(nil))
	initialize(t, c, project.SettingsFile())

	var result ExpectedTypesResult
	require.NoError(t, c.call(t, MethodExpectedTypes, ExpectedTypesParams{Model: "library.Book", Method: ormctx.MethodCreate}, &result))
	assert.Equal(t, ormctx.MethodCreate, result.Method)

	names := make([]string, 0, len(result.Types))
	for _, typed := range result.Types {
		names = append(names, typed.Name)
	}
	assert.Equal(t, []string{"id", "pages", "pk", "publisher", "publisher_id", "title"}, names)

	err := c.call(t, MethodExpectedTypes, ExpectedTypesParams{Model: "library.Nope"}, &result)
	assert.Equal(t, jsonrpc2.InvalidParams, errorCode(t, err))

	err = c.call(t, MethodExpectedTypes, map[string]interface{}{}, &result)
	assert.Equal(t, jsonrpc2.InvalidParams, errorCode(t, err))
}

func TestLookupType(t *testing.T) {
	project := ormtest.New(t, ormtest.Library())
	c := startServer(t, NewServer(nil))
	initialize(t, c, project.SettingsFile())

	var result tooling.FieldLookup
	require.NoError(t, c.call(t, MethodLookupType, LookupTypeParams{Model: "library.Book", Lookup: "publisher__name"}, &result))
	assert.Equal(t, "name", result.Field)
	assert.Equal(t, "library.Publisher", result.Owner)
	assert.Equal(t, "builtins.str", result.GetType)

	err := c.call(t, MethodLookupType, LookupTypeParams{Model: "library.Book", Lookup: "title__icontains"}, &result)
	assert.Equal(t, jsonrpc2.InternalError, errorCode(t, err))
}

func TestResolveLookup(t *testing.T) {
	project := ormtest.New(t, ormtest.Library())
	c := startServer(t, NewServer(nil))
	initialize(t, c, project.SettingsFile())

	const doc = "file:///workspace/library/views.py"

	var result tooling.ResolvedLookup
	require.NoError(t, c.call(t, MethodResolveLookup, tooling.LookupRequest{
		Model:  "library.Book",
		Lookup: "pages__gte",
		URI:    doc,
	}, &result))
	assert.Equal(t, []string{"pages"}, result.FieldParts)
	assert.Equal(t, []string{"gte"}, result.LookupParts)
	assert.Equal(t, "builtins.int | None", result.ExpectedType)
	assert.Empty(t, c.published())

	require.NoError(t, c.call(t, MethodResolveLookup, tooling.LookupRequest{
		Model:  "library.Book",
		Lookup: "nope",
		URI:    doc,
		Line:   7,
		Column: 12,
	}, &result))
	require.Len(t, result.Diagnostics, 1)

	published := c.published()
	require.Len(t, published, 1)
	assert.Equal(t, protocol.DocumentURI(doc), published[0].URI)
	require.Len(t, published[0].Diagnostics, 1)
	assert.Equal(t, uint32(7), published[0].Diagnostics[0].Range.Start.Line)
	assert.Equal(t, "ormtypes", published[0].Diagnostics[0].Source)

	var empty interface{}
	require.NoError(t, c.call(t, protocol.MethodTextDocumentDidClose, protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentURI(doc)},
	}, &empty))
	published = c.published()
	require.Len(t, published, 2)
	assert.Empty(t, published[1].Diagnostics)
}

func TestWatchReload(t *testing.T) {
	project := ormtest.New(t, ormtest.Library())
	server := NewServer(nil, WithWatch(true))
	c := startServer(t, server)
	initialize(t, c, project.SettingsFile())
	server.watchMu.Lock()
	watcher := server.watcher
	server.watchMu.Unlock()
	require.NotNil(t, watcher)

	first, err := server.api.Context()
	require.NoError(t, err)

	models := ormtest.LibraryModels + `
  - name: Shelf
    fields:
      - name: label
        class: CharField
`
	require.NoError(t, os.WriteFile(filepath.Join(project.Root, "library", "models.yaml"), []byte(models), 0644))

	assert.Eventually(t, func() bool {
		current, err := server.api.Context()
		return err == nil && current.ID != first.ID
	}, 5*time.Second, 50*time.Millisecond)

	_, err = server.api.FindModel("library.Shelf")
	assert.NoError(t, err)
}

func TestExit(t *testing.T) {
	c := startServer(t, NewServer(nil))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.conn.Notify(ctx, protocol.MethodExit, nil))

	select {
	case err := <-c.done:
		assert.NoError(t, err)
		c.done <- err
	case <-time.After(5 * time.Second):
		t.Fatal("server did not exit")
	}
}

func TestStdRWC(t *testing.T) {
	var rwc interface {
		Read([]byte) (int, error)
		Write([]byte) (int, error)
		Close() error
	} = stdrwc{}
	if rwc == nil {
		t.Fatal("stdrwc does not implement io.ReadWriteCloser")
	}
}
