// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast recognizes UI components in TSX/JSX/TS/JS syntax trees.
//
// The parser walks one tree-sitter tree per file and emits Components with
// their declared props, hook calls and rendered elements. It never looks
// across files; cross-component resolution belongs to the graph package.
package ast

import (
	"errors"
	"path"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/compgraph/services/compgraph/model"
)

// Sentinel errors. Every error returned by Parse wraps ErrParseFailure.
var (
	// ErrParseFailure marks a file that could not be walked at all.
	ErrParseFailure = errors.New("parse failure")

	// ErrFileTooLarge is returned when content exceeds the size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrInvalidContent is returned for content that is not valid UTF-8.
	ErrInvalidContent = errors.New("invalid content")

	// ErrUnsupportedLanguage is returned for unknown file extensions.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrNilTree is returned when tree-sitter yields no tree or no root.
	ErrNilTree = errors.New("nil syntax tree")
)

// Size thresholds.
const (
	// DefaultMaxFileSize is the default maximum file size (10MB).
	DefaultMaxFileSize int64 = 10 * 1024 * 1024

	// WarnFileSize logs a warning above this size (1MB).
	WarnFileSize = 1024 * 1024

	// DefaultMaxWalkDepth caps recursive scans of a syntax tree.
	DefaultMaxWalkDepth = 512
)

// Language selects the tree-sitter grammar for a file.
type Language string

const (
	LanguageTSX        Language = "tsx"
	LanguageTypeScript Language = "typescript"
	LanguageJavaScript Language = "javascript"
)

// LanguageForPath picks a grammar from the file extension.
//
// Outputs:
//
//	Language - The grammar to use.
//	bool - False when the extension is not supported.
func LanguageForPath(p string) (Language, bool) {
	switch strings.ToLower(path.Ext(p)) {
	case ".tsx":
		return LanguageTSX, true
	case ".ts", ".mts", ".cts":
		return LanguageTypeScript, true
	case ".js", ".jsx", ".mjs", ".cjs":
		return LanguageJavaScript, true
	default:
		return "", false
	}
}

// SupportedExtensions lists the extensions LanguageForPath accepts.
func SupportedExtensions() []string {
	return []string{".tsx", ".ts", ".mts", ".cts", ".js", ".jsx", ".mjs", ".cjs"}
}

// SourceFile is one input file of an analysis run.
type SourceFile struct {
	// ID is the caller-supplied opaque file identifier. Component IDs are
	// built from it.
	ID string

	// Path selects the grammar when Language is empty. Defaults to ID.
	Path string

	// Language overrides extension-based grammar selection.
	Language Language

	// Content is the raw source. Required even when Tree is set, because
	// node text is sliced from it.
	Content []byte

	// Tree is an optional pre-parsed syntax tree for Content. When nil the
	// parser builds one.
	Tree *sitter.Tree
}

// ResolveLanguage returns the grammar for f.
func (f SourceFile) ResolveLanguage() (Language, bool) {
	if f.Language != "" {
		return f.Language, true
	}
	p := f.Path
	if p == "" {
		p = f.ID
	}
	return LanguageForPath(p)
}

// ParseResult holds everything extracted from one file.
type ParseResult struct {
	// FileID echoes SourceFile.ID.
	FileID string `json:"file_id"`

	// Language is the grammar used.
	Language Language `json:"language"`

	// Hash is the hex SHA256 of the content.
	Hash string `json:"hash"`

	// Components in document order.
	Components []model.Component `json:"components"`

	// Imports in document order.
	Imports []model.ImportBinding `json:"imports"`

	// Diagnostics holds non-fatal findings such as syntax errors.
	Diagnostics []model.Diagnostic `json:"diagnostics"`
}

// tree-sitter node types used by the walkers.
const (
	nodeProgram             = "program"
	nodeExportStatement     = "export_statement"
	nodeExportClause        = "export_clause"
	nodeExportSpecifier     = "export_specifier"
	nodeFunctionDeclaration = "function_declaration"
	nodeGeneratorFunction   = "generator_function_declaration"
	nodeLexicalDeclaration  = "lexical_declaration"
	nodeVariableDeclaration = "variable_declaration"
	nodeVariableDeclarator  = "variable_declarator"
	nodeArrowFunction       = "arrow_function"
	nodeFunctionExpression  = "function_expression"
	nodeFunction            = "function"
	nodeClassDeclaration    = "class_declaration"
	nodeAbstractClass       = "abstract_class_declaration"
	nodeClass               = "class"
	nodeClassHeritage       = "class_heritage"
	nodeExtendsClause       = "extends_clause"
	nodeTypeArguments       = "type_arguments"
	nodeCallExpression      = "call_expression"
	nodeArguments           = "arguments"
	nodeIdentifier          = "identifier"
	nodeMemberExpression    = "member_expression"
	nodeParenthesized       = "parenthesized_expression"
	nodeArray               = "array"
	nodeArrayPattern        = "array_pattern"
	nodeObjectPattern       = "object_pattern"
	nodeFormalParameters    = "formal_parameters"
	nodeRequiredParameter   = "required_parameter"
	nodeOptionalParameter   = "optional_parameter"
	nodeAssignmentPattern   = "assignment_pattern"
	nodeTypeAnnotation      = "type_annotation"
	nodeObjectType          = "object_type"
	nodePropertySignature   = "property_signature"
	nodeTypeIdentifier      = "type_identifier"
	nodeGenericType         = "generic_type"
	nodeInterfaceDecl       = "interface_declaration"
	nodeTypeAliasDecl       = "type_alias_declaration"
	nodeInterfaceBody       = "interface_body"
	nodeExtendsTypeClause   = "extends_type_clause"
	nodeMethodSignature     = "method_signature"
	nodeIntersectionType    = "intersection_type"
	nodeParenthesizedType   = "parenthesized_type"
	nodeNestedIdentifier    = "nested_identifier"
	nodeJSXNamespaceName    = "jsx_namespace_name"
	nodeComment             = "comment"

	nodeShorthandPropertyPattern = "shorthand_property_identifier_pattern"
	nodeObjectAssignmentPattern  = "object_assignment_pattern"
	nodePairPattern              = "pair_pattern"

	nodeImportStatement = "import_statement"
	nodeImportClause    = "import_clause"
	nodeNamedImports    = "named_imports"
	nodeImportSpecifier = "import_specifier"
	nodeNamespaceImport = "namespace_import"
	nodeString          = "string"

	nodeJSXElement            = "jsx_element"
	nodeJSXSelfClosingElement = "jsx_self_closing_element"
	nodeJSXOpeningElement     = "jsx_opening_element"
	nodeJSXFragment           = "jsx_fragment"
	nodeJSXAttribute          = "jsx_attribute"
	nodeJSXExpression         = "jsx_expression"
)
