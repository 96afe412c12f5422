// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast provides the declaration tree consumed by the extractor and a
// tree-sitter backed Swift parser that produces it.
//
// The tree is deliberately small. It keeps only what the extractor needs:
// type declarations with their member blocks, identifier-class tokens, and
// grouping nodes for everything else so that nested declarations inside
// function bodies remain reachable.
package ast

import (
	"errors"
	"fmt"
)

// DefaultMaxFileSize is the largest source file the parsers accept (10MB).
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

// WarnFileSize is the size above which a parse logs a warning (1MB).
const WarnFileSize = 1024 * 1024

var (
	// ErrFileTooLarge is returned when content exceeds the parser's size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrInvalidContent is returned when content is not valid UTF-8.
	ErrInvalidContent = errors.New("invalid content")
)

// DeclKind classifies a type declaration.
type DeclKind int

const (
	DeclKindUnknown DeclKind = iota
	DeclKindStruct
	DeclKindClass
	DeclKindEnum
	DeclKindExtension
)

// String returns the Swift keyword for the kind.
func (k DeclKind) String() string {
	switch k {
	case DeclKindStruct:
		return "struct"
	case DeclKindClass:
		return "class"
	case DeclKindEnum:
		return "enum"
	case DeclKindExtension:
		return "extension"
	default:
		return "unknown"
	}
}

// TokenKind classifies a leaf token.
type TokenKind int

const (
	// TokenKindIdentifier is a plain or type identifier.
	TokenKindIdentifier TokenKind = iota + 1

	// TokenKindKeyword is an identifier-shaped keyword such as Self.
	TokenKindKeyword
)

// Token is a leaf of the declaration tree.
type Token struct {
	Kind TokenKind
	Text string
}

// Decl is a struct, class, enum or extension declaration.
type Decl struct {
	Kind DeclKind

	// Name is the declared simple name. For extensions it is the simple
	// name of the extended type.
	Name string

	// Member is true when the declaration is a direct member of a type's
	// member block, and false for file-scope and statement-level
	// declarations.
	Member bool

	// Body holds the contents of the member block.
	Body []*Node
}

// Node is one element of the declaration tree. Exactly one of Decl, Token
// or Children is meaningful: a declaration, a leaf token, or a group of
// nested nodes (any other syntax).
type Node struct {
	Decl     *Decl
	Token    *Token
	Children []*Node
}

// File is the parsed declaration tree of one source file.
type File struct {
	// Path is the file path as given to the parser.
	Path string

	// Language is the canonical language name ("swift").
	Language string

	// Hash is the SHA256 hex digest of the file content.
	Hash string

	// ParsedAtMilli is the parse completion time in Unix milliseconds.
	ParsedAtMilli int64

	// Nodes are the top-level nodes of the file.
	Nodes []*Node

	// Errors collects non-fatal problems, e.g. syntax errors recovered by
	// the parser.
	Errors []string
}

// Validate checks structural invariants of the tree.
func (f *File) Validate() error {
	if f == nil {
		return fmt.Errorf("file must not be nil")
	}
	var check func(n *Node) error
	check = func(n *Node) error {
		if n == nil {
			return fmt.Errorf("nil node")
		}
		if n.Decl != nil && n.Token != nil {
			return fmt.Errorf("node is both declaration and token")
		}
		if n.Decl != nil && n.Decl.Name == "" {
			return fmt.Errorf("%s declaration has empty name", n.Decl.Kind)
		}
		children := n.Children
		if n.Decl != nil {
			children = n.Decl.Body
		}
		for _, c := range children {
			if err := check(c); err != nil {
				return err
			}
		}
		return nil
	}
	for _, n := range f.Nodes {
		if err := check(n); err != nil {
			return fmt.Errorf("invalid tree for %s: %w", f.Path, err)
		}
	}
	return nil
}

// NewDecl returns a declaration node.
func NewDecl(kind DeclKind, name string, member bool, body ...*Node) *Node {
	return &Node{Decl: &Decl{Kind: kind, Name: name, Member: member, Body: body}}
}

// NewIdent returns an identifier token node.
func NewIdent(text string) *Node {
	return &Node{Token: &Token{Kind: TokenKindIdentifier, Text: text}}
}

// NewKeyword returns a keyword token node.
func NewKeyword(text string) *Node {
	return &Node{Token: &Token{Kind: TokenKindKeyword, Text: text}}
}

// NewGroup returns a grouping node.
func NewGroup(children ...*Node) *Node {
	return &Node{Children: children}
}
