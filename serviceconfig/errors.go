/*
 *
 * Copyright 2024 Relay authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

package serviceconfig

import (
	"errors"
	"fmt"
	"strings"
)

// Error is one node of the structured report produced when a service config
// fails validation. A node is either a leaf message or a named group of
// child errors, so that every defect found in one parsing pass can be
// reported at once with its position in the document made apparent by the
// nesting.
type Error struct {
	// Desc is a field-level message for leaves, or the name of the
	// enclosing scope for nodes with children.
	Desc string
	// Children holds the errors grouped under this node, in the order they
	// were found. Children are never merged or deduplicated.
	Children []*Error
}

// NewError returns a leaf error with the given description.
func NewError(desc string) *Error {
	return &Error{Desc: desc}
}

// NewErrorf returns a leaf error. Arguments are handled in the manner of
// fmt.Sprintf.
func NewErrorf(format string, args ...any) *Error {
	return &Error{Desc: fmt.Sprintf(format, args...)}
}

// GroupError returns an error node named desc wrapping children, or nil if
// there are no children to wrap. Nil children are dropped, so callers can
// group the results of several optional validations unconditionally.
func GroupError(desc string, children ...*Error) *Error {
	var kept []*Error
	for _, c := range children {
		if c != nil {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return &Error{Desc: desc, Children: kept}
}

// Error renders the node and everything below it on a single line, with
// children bracketed after their parent's description:
//
//	parent: [first child; second child: [leaf]]
func (e *Error) Error() string {
	var sb strings.Builder
	e.render(&sb)
	return sb.String()
}

func (e *Error) render(sb *strings.Builder) {
	sb.WriteString(e.Desc)
	if len(e.Children) == 0 {
		return
	}
	sb.WriteString(": [")
	for i, c := range e.Children {
		if i > 0 {
			sb.WriteString("; ")
		}
		c.render(sb)
	}
	sb.WriteString("]")
}

// asTreeError converts an error returned by a parser into a tree node. An
// *Error is grafted in unchanged so the parser's own grouping survives;
// anything else becomes a leaf.
func asTreeError(err error) *Error {
	var sce *Error
	if errors.As(err, &sce) {
		return sce
	}
	return &Error{Desc: err.Error()}
}
