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
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/compgraph/services/compgraph/model"
)

// providerSuffix marks an element that provides a context object.
const providerSuffix = ".Provider"

// containsMarkup reports whether n contains any JSX element or fragment.
func (w *fileWalker) containsMarkup(n *sitter.Node) bool {
	found := false
	w.walk(n, func(c *sitter.Node) bool {
		if found {
			return false
		}
		switch c.Type() {
		case nodeJSXElement, nodeJSXSelfClosingElement, nodeJSXFragment:
			found = true
			return false
		}
		return true
	})
	return found
}

// extractElements collects every opening and self-closing JSX element in
// document order.
func (w *fileWalker) extractElements(body *sitter.Node) []model.ElementRef {
	var elements []model.ElementRef

	w.walk(body, func(n *sitter.Node) bool {
		switch n.Type() {
		case nodeJSXOpeningElement, nodeJSXSelfClosingElement:
		default:
			return true
		}

		nameNode := n.ChildByFieldName("name")
		if nameNode == nil {
			nameNode = n.NamedChild(0)
		}
		if nameNode == nil {
			return true
		}

		name := w.text(nameNode)
		elements = append(elements, model.ElementRef{
			Name:       name,
			Intrinsic:  isIntrinsicElement(name),
			Attributes: w.elementAttributes(n),
			Span:       w.span(n),
		})
		return true
	})

	return elements
}

// elementAttributes reads jsx_attribute children. Spread attributes carry
// no name and are skipped.
func (w *fileWalker) elementAttributes(el *sitter.Node) []model.Attribute {
	var attrs []model.Attribute
	for _, child := range namedChildren(el) {
		if child.Type() != nodeJSXAttribute {
			continue
		}
		parts := namedChildren(child)
		if len(parts) == 0 {
			continue
		}

		attr := model.Attribute{Name: w.text(parts[0])}
		if len(parts) > 1 {
			value := parts[1]
			switch value.Type() {
			case nodeString:
				attr.Value = strings.Trim(w.text(value), `"'`)
			case nodeJSXExpression:
				inner := nonCommentChildren(value)
				if len(inner) > 0 {
					attr.Value = w.text(inner[0])
					attr.Identifier = inner[0].Type() == nodeIdentifier
				}
			default:
				attr.Value = w.text(value)
			}
		}
		attrs = append(attrs, attr)
	}
	return attrs
}

// isIntrinsicElement reports host elements: namespaced names such as
// svg:rect, or a lower-case first letter without member access.
func isIntrinsicElement(name string) bool {
	if strings.Contains(name, ":") {
		return true
	}
	if name == "" || strings.Contains(name, ".") {
		return false
	}
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsLower(r)
}

// providedContexts returns the sorted distinct X for every X.Provider element.
func providedContexts(elements []model.ElementRef) []string {
	seen := make(map[string]bool)
	var out []string
	for _, el := range elements {
		if !strings.HasSuffix(el.Name, providerSuffix) {
			continue
		}
		ctx := strings.TrimSuffix(el.Name, providerSuffix)
		if ctx == "" || seen[ctx] {
			continue
		}
		seen[ctx] = true
		out = append(out, ctx)
	}
	sort.Strings(out)
	return out
}
