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
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/swift"
)

// Tree-sitter node types used by the Swift grammar.
const (
	swiftNodeClassDecl      = "class_declaration"
	swiftNodeClassBody      = "class_body"
	swiftNodeEnumClassBody  = "enum_class_body"
	swiftNodeProtocolBody   = "protocol_body"
	swiftNodeUserType       = "user_type"
	swiftNodeTypeIdentifier = "type_identifier"
	swiftNodeSimpleIdent    = "simple_identifier"
	swiftNodeMetatype       = "metatype"
)

// swiftKeywordIdents are identifier-shaped tokens the compiler treats as
// keywords wherever they appear.
var swiftKeywordIdents = map[string]bool{
	"Self": true,
	"Any":  true,
}

// swiftMetatypeSpecifiers are keywords only as the trailing component of a
// type ("Foo.Type", "Foo.Protocol").
var swiftMetatypeSpecifiers = map[string]bool{
	"Type":     true,
	"Protocol": true,
}

// SwiftParserOption configures a SwiftParser instance.
type SwiftParserOption func(*SwiftParser)

// WithSwiftMaxFileSize sets the maximum file size the parser will accept.
//
// Parameters:
//   - bytes: Maximum file size in bytes. Non-positive values are ignored.
func WithSwiftMaxFileSize(bytes int64) SwiftParserOption {
	return func(p *SwiftParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// WithSwiftLogger sets the logger used for parse warnings.
func WithSwiftLogger(logger *slog.Logger) SwiftParserOption {
	return func(p *SwiftParser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// SwiftParser implements Parser for Swift source code.
//
// Description:
//
//	Uses tree-sitter to parse Swift files and reduces the concrete syntax
//	tree to the declaration tree the extractor walks. Each Parse call
//	creates its own tree-sitter parser instance.
//
// Recognized declarations:
//
//	struct, class and enum declarations, and extensions whose extended type
//	is a single unqualified name ("extension Foo", "extension Foo<T>").
//	Extensions of qualified types ("extension Foo.Bar"), actors and
//	protocols are kept as plain groups.
//
// Thread Safety:
//
//	SwiftParser instances are safe for concurrent use.
type SwiftParser struct {
	maxFileSize int64
	logger      *slog.Logger
}

// NewSwiftParser creates a new SwiftParser with the given options.
//
// Outputs:
//   - *SwiftParser: Configured parser instance, never nil
func NewSwiftParser(opts ...SwiftParserOption) *SwiftParser {
	p := &SwiftParser{
		maxFileSize: DefaultMaxFileSize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse builds the declaration tree of Swift source code.
//
// Description:
//
//	The parse is error tolerant: syntax errors are recorded in File.Errors
//	and the recovered tree is still returned.
//
// Inputs:
//   - ctx: Context for cancellation. Checked before and after parsing.
//   - content: Raw Swift source bytes. Must be valid UTF-8.
//   - filePath: Path of the file, recorded on the result.
//
// Outputs:
//   - *File: The declaration tree. Never nil on success.
//   - error: Non-nil for complete failures:
//   - ErrFileTooLarge: Content exceeds the size limit
//   - ErrInvalidContent: Content is not valid UTF-8
//   - Context errors: Context was canceled or timed out
//
// Thread Safety:
//
//	This method is safe for concurrent use.
func (p *SwiftParser) Parse(ctx context.Context, content []byte, filePath string) (*File, error) {
	ctx, span := startParseSpan(ctx, "swift", filePath, len(content))
	defer span.End()

	start := time.Now()

	if err := ctx.Err(); err != nil {
		recordParseMetrics("swift", time.Since(start), 0, false)
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}

	if int64(len(content)) > p.maxFileSize {
		recordParseMetrics("swift", time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), p.maxFileSize)
	}

	if len(content) > WarnFileSize {
		p.logger.Warn("parsing large file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)))
	}

	if !utf8.Valid(content) {
		recordParseMetrics("swift", time.Since(start), 0, false)
		return nil, fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent)
	}

	hash := sha256.Sum256(content)

	parser := sitter.NewParser()
	parser.SetLanguage(swift.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordParseMetrics("swift", time.Since(start), 0, false)
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		recordParseMetrics("swift", time.Since(start), 0, false)
		return nil, fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}

	file := &File{
		Path:          filePath,
		Language:      "swift",
		Hash:          hex.EncodeToString(hash[:]),
		ParsedAtMilli: time.Now().UnixMilli(),
		Nodes:         make([]*Node, 0),
		Errors:        make([]string, 0),
	}

	root := tree.RootNode()
	if root == nil {
		file.Errors = append(file.Errors, "tree-sitter returned nil root node")
		return file, nil
	}
	if root.HasError() {
		file.Errors = append(file.Errors, "source contains syntax errors")
	}

	c := &swiftConverter{content: content}
	file.Nodes = c.children(root)

	if err := file.Validate(); err != nil {
		recordParseMetrics("swift", time.Since(start), 0, false)
		return nil, fmt.Errorf("result validation failed: %w", err)
	}

	setParseSpanResult(span, c.decls, len(file.Errors))
	recordParseMetrics("swift", time.Since(start), c.decls, true)

	return file, nil
}

// Language returns "swift".
func (p *SwiftParser) Language() string {
	return "swift"
}

// Extensions returns []string{".swift"}.
func (p *SwiftParser) Extensions() []string {
	return []string{".swift"}
}

// swiftConverter reduces a tree-sitter tree to declaration tree nodes.
type swiftConverter struct {
	content []byte
	decls   int
}

// children converts every child of n, dropping nodes that carry nothing.
func (c *swiftConverter) children(n *sitter.Node) []*Node {
	count := int(n.ChildCount())
	out := make([]*Node, 0, count)
	for i := 0; i < count; i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		if converted := c.convert(child, n.Type()); converted != nil {
			out = append(out, converted)
		}
	}
	return out
}

// convert converts n, whose parent has type parentType. Returns nil for
// punctuation, keywords, literals and comments.
func (c *swiftConverter) convert(n *sitter.Node, parentType string) *Node {
	switch n.Type() {
	case swiftNodeSimpleIdent, swiftNodeTypeIdentifier:
		text := n.Content(c.content)
		if isSwiftKeyword(n, text, parentType) {
			return NewKeyword(text)
		}
		return NewIdent(text)
	case swiftNodeClassDecl:
		if decl := c.decl(n, parentType); decl != nil {
			c.decls++
			return &Node{Decl: decl}
		}
	}

	if n.ChildCount() == 0 {
		return nil
	}
	kids := c.children(n)
	if len(kids) == 0 {
		return nil
	}
	return NewGroup(kids...)
}

// isSwiftKeyword reports whether an identifier token is a keyword in its
// position.
func isSwiftKeyword(n *sitter.Node, text, parentType string) bool {
	if swiftKeywordIdents[text] {
		return true
	}
	if !swiftMetatypeSpecifiers[text] {
		return false
	}
	if parentType == swiftNodeMetatype {
		return true
	}
	prev := n.PrevSibling()
	return prev != nil && prev.Type() == "."
}

// decl extracts a type declaration from a class_declaration node, or
// returns nil when the node has no resolvable simple name or body.
func (c *swiftConverter) decl(n *sitter.Node, parentType string) *Decl {
	kindNode := n.ChildByFieldName("declaration_kind")
	nameNode := n.ChildByFieldName("name")
	bodyNode := n.ChildByFieldName("body")
	if kindNode == nil || nameNode == nil || bodyNode == nil {
		return nil
	}

	var kind DeclKind
	switch kindNode.Type() {
	case "struct":
		kind = DeclKindStruct
	case "class":
		kind = DeclKindClass
	case "enum":
		kind = DeclKindEnum
	case "extension":
		kind = DeclKindExtension
	default:
		return nil
	}

	var name string
	if kind == DeclKindExtension {
		name = c.extendedTypeName(nameNode)
	} else {
		name = nameNode.Content(c.content)
	}
	if name == "" {
		return nil
	}

	return &Decl{
		Kind:   kind,
		Name:   name,
		Member: isMemberBlock(parentType),
		Body:   c.children(bodyNode),
	}
}

// extendedTypeName returns the simple name of an extended type, or "" when
// the type is qualified or not a plain user type.
func (c *swiftConverter) extendedTypeName(n *sitter.Node) string {
	switch n.Type() {
	case swiftNodeTypeIdentifier:
		return n.Content(c.content)
	case swiftNodeUserType:
	default:
		return ""
	}
	name := ""
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child == nil || child.Type() != swiftNodeTypeIdentifier {
			continue
		}
		if name != "" {
			return ""
		}
		name = child.Content(c.content)
	}
	return name
}

func isMemberBlock(nodeType string) bool {
	switch nodeType {
	case swiftNodeClassBody, swiftNodeEnumClassBody, swiftNodeProtocolBody:
		return true
	}
	return false
}
