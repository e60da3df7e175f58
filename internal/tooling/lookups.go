package tooling

import (
	"fmt"
	"sort"

	"go.lsp.dev/protocol"

	"github.com/conduit-lang/ormtypes/internal/checker"
	"github.com/conduit-lang/ormtypes/internal/ormctx"
	"github.com/conduit-lang/ormtypes/internal/stubs"
	"github.com/conduit-lang/ormtypes/internal/types"
)

// FieldLookup is the field a pure field path resolves to
type FieldLookup struct {
	Model   string `json:"model" yaml:"model"`
	Lookup  string `json:"lookup" yaml:"lookup"`
	Field   string `json:"field,omitempty" yaml:"field,omitempty"`
	Class   string `json:"class,omitempty" yaml:"class,omitempty"`
	Owner   string `json:"owner" yaml:"owner"`
	GetType string `json:"get_type" yaml:"get_type"`
}

// LookupType resolves a field path such as "author__name" and returns the
// type read from the terminal field. Paths with operator segments fail with
// ormctx.ErrLookupsAreUnsupported.
func (a *API) LookupType(modelName, lookup string, method ormctx.Method) (*FieldLookup, error) {
	ctx, _, session, err := a.state()
	if err != nil {
		return nil, err
	}
	model, err := findModel(ctx, modelName)
	if err != nil {
		return nil, err
	}

	member, terminal, err := ctx.ResolveLookupIntoField(model, lookup)
	if err != nil {
		return nil, err
	}

	result := &FieldLookup{Model: model.Label(), Lookup: lookup, Owner: terminal.Label()}
	if member == nil {
		result.GetType = types.NewAny(types.ImplementationArtifact).String()
		return result, nil
	}

	info, _ := session.LookupTypeInfo(terminal.Fullname())
	typ, err := ctx.GetType(session, info, member, method)
	if err != nil {
		return nil, err
	}
	result.Field = member.FieldName()
	result.Class = member.TypeClass().Fullname
	result.GetType = typ.String()
	return result, nil
}

// LookupRequest asks for the operand type of one filter keyword
type LookupRequest struct {
	Model  string `json:"model"`
	Lookup string `json:"lookup"`
	// Extra maps annotation names carried by the queried instance to their types
	Extra map[string]string `json:"extra,omitempty"`
	// URI, Line and Column locate the keyword for diagnostics
	URI    string `json:"uri,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

// ResolvedLookup is the operand type accepted by a filter keyword
type ResolvedLookup struct {
	Model        string   `json:"model" yaml:"model"`
	Lookup       string   `json:"lookup" yaml:"lookup"`
	FieldParts   []string `json:"field_parts" yaml:"field_parts"`
	LookupParts  []string `json:"lookup_parts" yaml:"lookup_parts"`
	ExpectedType string   `json:"expected_type" yaml:"expected_type"`
	// Diagnostics are the messages reported while resolving
	Diagnostics []string `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// ResolveLookup computes the type a filter keyword accepts. Rejected lookups
// are recorded as diagnostics against req.URI rather than returned as errors.
func (a *API) ResolveLookup(req LookupRequest) (*ResolvedLookup, error) {
	ctx, db, session, err := a.state()
	if err != nil {
		return nil, err
	}
	model, err := findModel(ctx, req.Model)
	if err != nil {
		return nil, err
	}

	instance, err := queriedInstance(db, model.Fullname(), req.Extra)
	if err != nil {
		return nil, err
	}

	result := &ResolvedLookup{
		Model:       model.Label(),
		Lookup:      req.Lookup,
		FieldParts:  []string{},
		LookupParts: []string{},
	}
	if solved, err := ctx.SolveLookupType(model, req.Lookup); err == nil && solved != nil {
		result.FieldParts = solved.FieldParts
		result.LookupParts = solved.LookupParts
	}

	loc := checker.Location{URI: req.URI, Line: req.Line, Column: req.Column}
	before := len(session.Diagnostics(req.URI))
	typ := ctx.ResolveLookupExpectedType(checker.MethodContext{API: session, Context: loc}, model, req.Lookup, instance)
	result.ExpectedType = typ.String()

	after := session.Diagnostics(req.URI)
	if before > len(after) {
		before = 0
	}
	for _, diagnostic := range after[before:] {
		result.Diagnostics = append(result.Diagnostics, diagnostic.Message)
	}
	return result, nil
}

// queriedInstance builds the instance a filter runs against. Extra
// annotations produce an annotated model instance.
func queriedInstance(db *stubs.Database, fullname string, extra map[string]string) (*types.Instance, error) {
	if len(extra) == 0 {
		info, ok := db.Lookup(fullname)
		if !ok {
			return nil, nil
		}
		return types.NewInstance(info), nil
	}

	names := make([]string, 0, len(extra))
	for name := range extra {
		names = append(names, name)
	}
	sort.Strings(names)

	attrs := types.NewExtraAttrs()
	for _, name := range names {
		typ, err := db.ParseType(extra[name])
		if err != nil {
			return nil, fmt.Errorf("invalid type for annotation %q: %w", name, err)
		}
		attrs.Set(name, typ)
	}
	return db.AnnotatedInstance(fullname, attrs)
}

// Diagnostics returns the diagnostics recorded for a document
func (a *API) Diagnostics(uri string) []protocol.Diagnostic {
	_, _, session, err := a.state()
	if err != nil {
		return nil
	}
	return session.Diagnostics(uri)
}

// PublishParams returns the publishDiagnostics payload for a document
func (a *API) PublishParams(uri string) *protocol.PublishDiagnosticsParams {
	_, _, session, err := a.state()
	if err != nil {
		return &protocol.PublishDiagnosticsParams{
			URI:         protocol.DocumentURI(uri),
			Diagnostics: []protocol.Diagnostic{},
		}
	}
	return session.PublishParams(uri)
}

// ClearDiagnostics drops the diagnostics recorded for a document
func (a *API) ClearDiagnostics(uri string) {
	_, _, session, err := a.state()
	if err != nil {
		return
	}
	session.Clear(uri)
}
