// Package checker is the bridge to the host type checker: class lookups and
// the diagnostic sink the type engine reports through.
package checker

import (
	"math"
	"sort"
	"sync"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/conduit-lang/ormtypes/internal/stubs"
	"github.com/conduit-lang/ormtypes/internal/types"
)

// DiagnosticSource is the source recorded on every diagnostic
const DiagnosticSource = "ormtypes"

// DiagnosticCode is the error code recorded on every diagnostic
const DiagnosticCode = "misc"

// Location is a 0-based position in a checked document
type Location struct {
	URI    string
	Line   int
	Column int
}

// API is the subset of the host checker the type engine uses
type API interface {
	// LookupTypeInfo finds a class declaration by fully-qualified name
	LookupTypeInfo(fullname string) (*types.TypeInfo, bool)
	// Fail reports a diagnostic at loc
	Fail(message string, loc Location)
}

// MethodContext is the call site a type is computed for
type MethodContext struct {
	API     API
	Context Location
}

// Session resolves classes from a stub database and collects diagnostics per document
type Session struct {
	db     *stubs.Database
	logger *zap.Logger

	mu          sync.Mutex
	diagnostics map[string][]protocol.Diagnostic
}

// NewSession creates a session over db
func NewSession(db *stubs.Database, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		db:          db,
		logger:      logger,
		diagnostics: make(map[string][]protocol.Diagnostic),
	}
}

// LookupTypeInfo implements API
func (s *Session) LookupTypeInfo(fullname string) (*types.TypeInfo, bool) {
	return s.db.Lookup(fullname)
}

// Fail implements API
func (s *Session) Fail(message string, loc Location) {
	s.logger.Debug("diagnostic", zap.String("uri", loc.URI), zap.Int("line", loc.Line), zap.String("message", message))

	position := protocol.Position{Line: clampPosition(loc.Line), Character: clampPosition(loc.Column)}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.diagnostics[loc.URI] = append(s.diagnostics[loc.URI], protocol.Diagnostic{
		Range:    protocol.Range{Start: position, End: position},
		Severity: protocol.DiagnosticSeverityError,
		Code:     DiagnosticCode,
		Source:   DiagnosticSource,
		Message:  message,
	})
}

// clampPosition maps a request coordinate onto an LSP position. Negative values become 0.
func clampPosition(n int) uint32 {
	if n < 0 {
		return 0
	}
	if uint64(n) > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(n)
}

// Diagnostics returns the diagnostics recorded for a document
func (s *Session) Diagnostics(uri string) []protocol.Diagnostic {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.Diagnostic(nil), s.diagnostics[uri]...)
}

// URIs returns the documents with recorded diagnostics, sorted
func (s *Session) URIs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	uris := make([]string, 0, len(s.diagnostics))
	for uri := range s.diagnostics {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	return uris
}

// Clear drops the diagnostics of a document
func (s *Session) Clear(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.diagnostics, uri)
}

// PublishParams returns the notification payload for a document
func (s *Session) PublishParams(uri string) *protocol.PublishDiagnosticsParams {
	diagnostics := s.Diagnostics(uri)
	if diagnostics == nil {
		diagnostics = []protocol.Diagnostic{}
	}
	return &protocol.PublishDiagnosticsParams{
		URI:         protocol.DocumentURI(uri),
		Diagnostics: diagnostics,
	}
}
