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
	"log/slog"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/compgraph/services/compgraph/model"
)

// fileWalker carries per-file state through the extraction helpers.
// A fileWalker is created per Parse call and never shared.
type fileWalker struct {
	p        *ComponentParser
	fileID   string
	content  []byte
	maxDepth int

	// typeDecls maps interface names declared in this file to their
	// declaration node and type alias names to their value node, for
	// resolving `props: Props` annotations.
	typeDecls map[string]*sitter.Node

	depthWarned bool
}

// text returns the source text of n.
func (w *fileWalker) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return string(w.content[n.StartByte():n.EndByte()])
}

// span converts a node range into a SourceSpan.
func (w *fileWalker) span(n *sitter.Node) model.SourceSpan {
	return model.SourceSpan{
		File:      w.fileID,
		StartLine: int(n.StartPoint().Row) + 1,
		StartCol:  int(n.StartPoint().Column),
		EndLine:   int(n.EndPoint().Row) + 1,
		EndCol:    int(n.EndPoint().Column),
	}
}

// visitFunc is called for every node in pre-order. Returning false skips
// the node's children.
type visitFunc func(n *sitter.Node) bool

// walk visits root and its descendants in document order without
// recursion. Subtrees deeper than maxDepth are skipped.
func (w *fileWalker) walk(root *sitter.Node, visit visitFunc) {
	if root == nil {
		return
	}

	type stackEntry struct {
		node  *sitter.Node
		depth int
	}

	stack := make([]stackEntry, 0, 64)
	stack = append(stack, stackEntry{node: root})

	for len(stack) > 0 {
		entry := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if entry.depth > w.maxDepth {
			if !w.depthWarned {
				w.depthWarned = true
				slog.Debug("max walk depth reached",
					slog.String("file", w.fileID),
					slog.Int("depth", entry.depth),
				)
			}
			continue
		}

		if !visit(entry.node) {
			continue
		}

		for i := int(entry.node.ChildCount()) - 1; i >= 0; i-- {
			if child := entry.node.Child(i); child != nil {
				stack = append(stack, stackEntry{node: child, depth: entry.depth + 1})
			}
		}
	}
}

// namedChildren returns the named children of n.
func namedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	count := int(n.NamedChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		if c := n.NamedChild(i); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// firstChildOfType returns the first direct child of n with the given type.
func firstChildOfType(n *sitter.Node, types ...string) *sitter.Node {
	if n == nil {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil {
			continue
		}
		for _, t := range types {
			if c.Type() == t {
				return c
			}
		}
	}
	return nil
}

// hasAnonymousChild reports whether n has an unnamed child token tok.
func hasAnonymousChild(n *sitter.Node, tok string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c != nil && !c.IsNamed() && c.Type() == tok {
			return true
		}
	}
	return false
}

// unwrapParens strips parenthesized_expression wrappers.
func unwrapParens(n *sitter.Node) *sitter.Node {
	for n != nil && n.Type() == nodeParenthesized {
		inner := n.NamedChild(0)
		if inner == nil {
			return n
		}
		n = inner
	}
	return n
}

func isFunctionLiteral(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	switch n.Type() {
	case nodeArrowFunction, nodeFunctionExpression, nodeFunction:
		return true
	}
	return false
}

// annotationType returns the type text of a type_annotation node without
// the leading colon.
func (w *fileWalker) annotationType(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	if n.Type() == nodeTypeAnnotation {
		if inner := n.NamedChild(0); inner != nil {
			return strings.TrimSpace(w.text(inner))
		}
		return strings.TrimSpace(strings.TrimPrefix(w.text(n), ":"))
	}
	return strings.TrimSpace(w.text(n))
}
