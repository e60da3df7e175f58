package lsp

import (
	"context"
	"encoding/json"

	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/conduit-lang/ormtypes/internal/ormctx"
	"github.com/conduit-lang/ormtypes/internal/tooling"
)

// ExpectedTypesParams are the params of ormtypes/expectedTypes
type ExpectedTypesParams struct {
	Model  string        `json:"model"`
	Method ormctx.Method `json:"method"`
}

// ExpectedTypesResult is the result of ormtypes/expectedTypes
type ExpectedTypesResult struct {
	Model  string              `json:"model"`
	Method ormctx.Method       `json:"method"`
	Types  []tooling.TypedName `json:"types"`
}

// LookupTypeParams are the params of ormtypes/lookupType
type LookupTypeParams struct {
	Model  string        `json:"model"`
	Lookup string        `json:"lookup"`
	Method ormctx.Method `json:"method,omitempty"`
}

// handleTextDocumentRefresh re-publishes the diagnostics recorded for a document
func (s *Server) handleTextDocumentRefresh(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params struct {
		TextDocument protocol.TextDocumentIdentifier `json:"textDocument"`
	}
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse document params")
	}

	s.publishDiagnostics(ctx, string(params.TextDocument.URI))
	return reply(ctx, nil, nil)
}

// handleTextDocumentDidClose drops the diagnostics of a closed document
func (s *Server) handleTextDocumentDidClose(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidCloseTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse didClose params")
	}

	documentURI := string(params.TextDocument.URI)
	s.logger.Debug("document closed", zap.String("uri", documentURI))

	s.api.ClearDiagnostics(documentURI)
	s.publishDiagnostics(ctx, documentURI)
	return reply(ctx, nil, nil)
}

func (s *Server) handleExpectedTypes(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params ExpectedTypesParams
	if err := json.Unmarshal(req.Params(), &params); err != nil || params.Model == "" {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse expectedTypes params")
	}

	typed, err := s.api.ExpectedTypes(params.Model, params.Method)
	if err != nil {
		return s.replyWithQueryError(ctx, reply, err)
	}
	return reply(ctx, ExpectedTypesResult{Model: params.Model, Method: params.Method, Types: typed}, nil)
}

func (s *Server) handleLookupType(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params LookupTypeParams
	if err := json.Unmarshal(req.Params(), &params); err != nil || params.Model == "" {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse lookupType params")
	}

	result, err := s.api.LookupType(params.Model, params.Lookup, params.Method)
	if err != nil {
		return s.replyWithQueryError(ctx, reply, err)
	}
	return reply(ctx, result, nil)
}

// handleResolveLookup answers with the operand type of a filter keyword and
// pushes any diagnostics reported against the request's document
func (s *Server) handleResolveLookup(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params tooling.LookupRequest
	if err := json.Unmarshal(req.Params(), &params); err != nil || params.Model == "" {
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse resolveLookup params")
	}

	result, err := s.api.ResolveLookup(params)
	if err != nil {
		return s.replyWithQueryError(ctx, reply, err)
	}
	if len(result.Diagnostics) > 0 {
		s.publishDiagnostics(ctx, params.URI)
	}
	return reply(ctx, result, nil)
}
