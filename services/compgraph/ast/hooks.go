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
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/compgraph/services/compgraph/model"
)

// extractHooks finds hook calls inside a component body in document order.
//
// Only bare identifier callees are considered; `React.useState(...)` is a
// member call and is not recorded. Hook kind comes from the callee name
// alone.
func (w *fileWalker) extractHooks(body *sitter.Node) []model.StateHook {
	var hooks []model.StateHook

	w.walk(body, func(n *sitter.Node) bool {
		if n.Type() != nodeCallExpression {
			return true
		}
		callee := n.ChildByFieldName("function")
		if callee == nil || callee.Type() != nodeIdentifier {
			return true
		}

		name := w.text(callee)
		kind, ok := w.p.matcher.HookKind(name)
		if !ok {
			return true
		}

		hook := model.StateHook{
			Name: name,
			Kind: kind,
			Span: w.span(n),
		}
		hook.Binding, hook.Setter = w.hookBindings(n)
		hook.Argument, hook.Dependencies = w.hookArguments(n.ChildByFieldName("arguments"))

		hooks = append(hooks, hook)
		return true
	})

	return hooks
}

// hookBindings reads the names the call result is bound to.
//
//	const count = useX()               -> "count", ""
//	const [count, setCount] = useX()   -> "count", "setCount"
//	const { user } = useX()            -> "user", ""
func (w *fileWalker) hookBindings(call *sitter.Node) (binding, setter string) {
	parent := call.Parent()
	if parent == nil || parent.Type() != nodeVariableDeclarator {
		return "", ""
	}
	value := parent.ChildByFieldName("value")
	if value == nil || !sameNode(value, call) {
		return "", ""
	}

	target := parent.ChildByFieldName("name")
	if target == nil {
		return "", ""
	}

	switch target.Type() {
	case nodeIdentifier:
		return w.text(target), ""

	case nodeArrayPattern:
		var names []string
		for _, el := range nonCommentChildren(target) {
			if el.Type() == nodeIdentifier {
				names = append(names, w.text(el))
			} else {
				names = append(names, "")
			}
			if len(names) == 2 {
				break
			}
		}
		if len(names) > 0 {
			binding = names[0]
		}
		if len(names) > 1 {
			setter = names[1]
		}
		return binding, setter

	case nodeObjectPattern:
		for _, el := range nonCommentChildren(target) {
			switch el.Type() {
			case nodeShorthandPropertyPattern:
				return w.text(el), ""
			case nodePairPattern:
				if v := el.ChildByFieldName("value"); v != nil && v.Type() == nodeIdentifier {
					return w.text(v), ""
				}
			case nodeObjectAssignmentPattern:
				if l := el.ChildByFieldName("left"); l != nil {
					return w.text(l), ""
				}
			}
		}
	}
	return "", ""
}

// hookArguments returns the first identifier-like argument and the
// dependency array. A dependency array is only recognized as a trailing
// array literal after at least one other argument, so `useState([])` has
// no dependencies.
func (w *fileWalker) hookArguments(args *sitter.Node) (string, []string) {
	list := nonCommentChildren(args)
	if len(list) == 0 {
		return "", nil
	}

	var argument string
	switch list[0].Type() {
	case nodeIdentifier, nodeMemberExpression:
		argument = w.text(list[0])
	}

	var deps []string
	if last := list[len(list)-1]; len(list) >= 2 && last.Type() == nodeArray {
		deps = make([]string, 0)
		for _, el := range nonCommentChildren(last) {
			deps = append(deps, w.text(el))
		}
	}

	return argument, deps
}

// sameNode compares two node handles by position and type.
func sameNode(a, b *sitter.Node) bool {
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}
