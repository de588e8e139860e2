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
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/compgraph/services/compgraph/model"
)

// Imported names for bindings that do not name an export.
const (
	importedDefault   = "default"
	importedNamespace = "*"
)

// extractImports collects top-level import bindings in document order.
// Type-only imports never bind components and are skipped.
func (w *fileWalker) extractImports(root *sitter.Node) []model.ImportBinding {
	var bindings []model.ImportBinding
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case nodeImportStatement:
			bindings = append(bindings, w.processImportStatement(child)...)
		case nodeLexicalDeclaration, nodeVariableDeclaration:
			bindings = append(bindings, w.processRequire(child)...)
		}
	}
	return bindings
}

// processImportStatement handles ES module import statements.
func (w *fileWalker) processImportStatement(node *sitter.Node) []model.ImportBinding {
	var module string
	var clause *sitter.Node

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "type":
			// import type { ... }
			return nil
		case nodeImportClause:
			clause = child
		case nodeString:
			module = unquote(w.text(child))
		}
	}

	if module == "" || clause == nil {
		return nil
	}
	return w.processImportClause(clause, module)
}

// processImportClause expands one clause into bindings.
func (w *fileWalker) processImportClause(node *sitter.Node, module string) []model.ImportBinding {
	var out []model.ImportBinding
	bind := func(local, imported string) {
		out = append(out, model.ImportBinding{
			File:         w.fileID,
			LocalName:    local,
			ImportedName: imported,
			Module:       module,
		})
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case nodeIdentifier:
			// import Foo from './Foo'
			bind(w.text(child), importedDefault)
		case nodeNamespaceImport:
			// import * as ui from './ui'
			if id := firstChildOfType(child, nodeIdentifier); id != nil {
				bind(w.text(id), importedNamespace)
			}
		case nodeNamedImports:
			// import { A, B as C } from './ui'
			for _, spec := range namedChildren(child) {
				if spec.Type() != nodeImportSpecifier {
					continue
				}
				if hasAnonymousChild(spec, "type") {
					continue
				}
				local, imported := w.importSpecifier(spec)
				if local != "" {
					bind(local, imported)
				}
			}
		}
	}
	return out
}

// importSpecifier returns the local and imported names of `A` or `A as B`.
func (w *fileWalker) importSpecifier(spec *sitter.Node) (local, imported string) {
	name := spec.ChildByFieldName("name")
	alias := spec.ChildByFieldName("alias")
	if name == nil {
		ids := namedChildren(spec)
		if len(ids) == 0 {
			return "", ""
		}
		name = ids[0]
		if len(ids) > 1 {
			alias = ids[1]
		}
	}

	imported = w.text(name)
	local = imported
	if alias != nil {
		local = w.text(alias)
	}
	return local, imported
}

// processRequire handles `const Foo = require('./Foo')`.
func (w *fileWalker) processRequire(decl *sitter.Node) []model.ImportBinding {
	var out []model.ImportBinding
	for _, d := range namedChildren(decl) {
		if d.Type() != nodeVariableDeclarator {
			continue
		}
		name := d.ChildByFieldName("name")
		value := d.ChildByFieldName("value")
		if name == nil || value == nil || name.Type() != nodeIdentifier || value.Type() != nodeCallExpression {
			continue
		}
		callee := value.ChildByFieldName("function")
		if callee == nil || w.text(callee) != "require" {
			continue
		}
		args := nonCommentChildren(value.ChildByFieldName("arguments"))
		if len(args) != 1 || args[0].Type() != nodeString {
			continue
		}
		out = append(out, model.ImportBinding{
			File:         w.fileID,
			LocalName:    w.text(name),
			ImportedName: importedDefault,
			Module:       unquote(w.text(args[0])),
		})
	}
	return out
}

func unquote(s string) string {
	return strings.Trim(s, "\"'`")
}
