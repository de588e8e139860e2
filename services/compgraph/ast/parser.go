// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/AleutianAI/compgraph/services/compgraph/heuristics"
	"github.com/AleutianAI/compgraph/services/compgraph/model"
)

// ComponentParserOption configures a ComponentParser instance.
type ComponentParserOption func(*ComponentParser)

// WithMaxFileSize sets the maximum file size the parser will accept.
//
// Parameters:
//   - bytes: Maximum file size in bytes. Non-positive values are ignored.
//
// Example:
//
//	parser := NewComponentParser(matcher, WithMaxFileSize(5 * 1024 * 1024))
func WithMaxFileSize(bytes int64) ComponentParserOption {
	return func(p *ComponentParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// WithWarnFileSize sets the size above which a warning is logged.
func WithWarnFileSize(bytes int64) ComponentParserOption {
	return func(p *ComponentParser) {
		if bytes > 0 {
			p.warnFileSize = bytes
		}
	}
}

// WithMaxWalkDepth caps recursive tree scans.
func WithMaxWalkDepth(depth int) ComponentParserOption {
	return func(p *ComponentParser) {
		if depth > 0 {
			p.maxWalkDepth = depth
		}
	}
}

// ComponentParser extracts components from TSX/JSX/TS/JS syntax trees.
//
// Description:
//
//	ComponentParser walks the top level of one file, recognizes function,
//	closure and class components, and extracts their declared props,
//	hook calls and rendered elements. Recognition order is fixed, so the
//	same tree always yields the same components in the same order.
//
// Thread Safety:
//
//	ComponentParser instances are safe for concurrent use. Each Parse call
//	creates its own tree-sitter parser and walker state.
//
// Example:
//
//	parser := NewComponentParser(matcher)
//	result, err := parser.Parse(ctx, ast.SourceFile{ID: "src/App.tsx", Content: src})
//	if err != nil {
//	    return err
//	}
//	for _, c := range result.Components {
//	    fmt.Println(c.ID, c.Kind)
//	}
type ComponentParser struct {
	matcher      heuristics.Matcher
	maxFileSize  int64
	warnFileSize int64
	maxWalkDepth int
}

// NewComponentParser creates a ComponentParser.
//
// Inputs:
//   - matcher: Name heuristics for hooks, bases and wrappers. Must not be nil.
//   - opts: Optional configuration functions.
//
// Outputs:
//   - *ComponentParser: Configured parser instance, never nil.
func NewComponentParser(matcher heuristics.Matcher, opts ...ComponentParserOption) *ComponentParser {
	p := &ComponentParser{
		matcher:      matcher,
		maxFileSize:  DefaultMaxFileSize,
		warnFileSize: WarnFileSize,
		maxWalkDepth: DefaultMaxWalkDepth,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseTree builds a tree-sitter tree for content with the given grammar.
//
// Description:
//
//	Callers that already hold trees can skip this and set SourceFile.Tree.
//	The caller owns the returned tree and must Close it.
//
// Outputs:
//   - *sitter.Tree: The parsed tree. Never nil on success.
//   - error: ErrUnsupportedLanguage, a tree-sitter error, or a context error.
func ParseTree(ctx context.Context, lang Language, content []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()

	switch lang {
	case LanguageTSX:
		parser.SetLanguage(tsx.GetLanguage())
	case LanguageTypeScript:
		parser.SetLanguage(typescript.GetLanguage())
	case LanguageJavaScript:
		parser.SetLanguage(javascript.GetLanguage())
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	if tree == nil {
		return nil, ErrNilTree
	}
	return tree, nil
}

// Parse extracts components from one source file.
//
// Description:
//
//	Uses file.Tree when set, otherwise parses file.Content with the grammar
//	selected by extension. Syntax errors inside an otherwise usable tree
//	are reported as a warning diagnostic and extraction continues.
//
// Inputs:
//   - ctx: Context for cancellation and tracing.
//   - file: The file to parse. ID and Content are required.
//
// Outputs:
//   - *ParseResult: Extracted components, imports and diagnostics.
//   - error: Non-nil when the file cannot be walked at all. Always wraps
//     ErrParseFailure, plus one of ErrFileTooLarge, ErrInvalidContent,
//     ErrUnsupportedLanguage, ErrNilTree or a context error.
//
// Thread Safety:
//
//	This method is safe for concurrent use.
func (p *ComponentParser) Parse(ctx context.Context, file SourceFile) (result *ParseResult, err error) {
	ctx, span := startParseSpan(ctx, file.ID, len(file.Content))
	defer span.End()

	start := time.Now()
	lang, _ := file.ResolveLanguage()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic while walking syntax tree",
				slog.String("file", file.ID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			result = nil
			err = fmt.Errorf("%w: panic while walking %s: %v", ErrParseFailure, file.ID, r)
		}
		if err != nil {
			setParseSpanError(span, err)
			recordParseMetrics(string(lang), time.Since(start), 0, false)
		}
	}()

	result, err = p.parse(ctx, file)
	if err != nil {
		return nil, err
	}

	setParseSpanResult(span, len(result.Components), len(result.Diagnostics))
	recordParseMetrics(string(lang), time.Since(start), len(result.Components), true)
	return result, nil
}

func (p *ComponentParser) parse(ctx context.Context, file SourceFile) (*ParseResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: canceled before start: %w", ErrParseFailure, err)
	}

	if int64(len(file.Content)) > p.maxFileSize {
		return nil, fmt.Errorf("%w: %w: size %d exceeds limit %d", ErrParseFailure, ErrFileTooLarge, len(file.Content), p.maxFileSize)
	}
	if int64(len(file.Content)) > p.warnFileSize {
		slog.Warn("parsing large file",
			slog.String("file", file.ID),
			slog.Int("size_bytes", len(file.Content)))
	}
	if !utf8.Valid(file.Content) {
		return nil, fmt.Errorf("%w: %w: content is not valid UTF-8", ErrParseFailure, ErrInvalidContent)
	}

	lang, ok := file.ResolveLanguage()
	if !ok {
		return nil, fmt.Errorf("%w: %w: %s", ErrParseFailure, ErrUnsupportedLanguage, file.ID)
	}

	tree := file.Tree
	if tree == nil {
		built, err := ParseTree(ctx, lang, file.Content)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrParseFailure, err)
		}
		defer built.Close()
		tree = built
	}

	root := tree.RootNode()
	if root == nil {
		return nil, fmt.Errorf("%w: %w: tree-sitter returned nil root node", ErrParseFailure, ErrNilTree)
	}

	hash := sha256.Sum256(file.Content)
	result := &ParseResult{
		FileID:      file.ID,
		Language:    lang,
		Hash:        hex.EncodeToString(hash[:]),
		Components:  make([]model.Component, 0),
		Imports:     make([]model.ImportBinding, 0),
		Diagnostics: make([]model.Diagnostic, 0),
	}

	if root.HasError() {
		result.Diagnostics = append(result.Diagnostics, model.Diagnostic{
			File:     file.ID,
			Severity: model.SeverityWarning,
			Code:     model.CodeSyntaxError,
			Message:  "source contains syntax errors; extraction may be incomplete",
		})
	}

	w := &fileWalker{
		p:         p,
		fileID:    file.ID,
		content:   file.Content,
		maxDepth:  p.maxWalkDepth,
		typeDecls: make(map[string]*sitter.Node),
	}

	w.collectTypeDeclarations(root)
	result.Imports = append(result.Imports, w.extractImports(root)...)
	result.Components = append(result.Components, w.extractComponents(ctx, root)...)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: canceled after extraction: %w", ErrParseFailure, err)
	}

	return result, nil
}
