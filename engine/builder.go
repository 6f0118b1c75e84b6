package engine

import (
	"encoding/json"
	"io"
	"maps"
	"strings"

	"github.com/goccy/go-yaml"
)

// Sink receives rendered text.
type Sink interface {
	Append(text string)
}

// WriterSink adapts an [io.Writer] to a [Sink]. The first write error is
// kept in Err and later appends are dropped.
type WriterSink struct {
	W   io.Writer
	Err error
}

func (s *WriterSink) Append(text string) {
	if s.Err == nil {
		_, s.Err = io.WriteString(s.W, text)
	}
}

// Builder materializes rendered output. Nodes are opaque to the renderer;
// each builder defines its own node type. A nil node is never appended.
type Builder interface {
	Root() any
	CreateElementNode(name string, attrs map[string]string) any
	CreateTextNode(text string) any
	CreateContainerNode() any
	AppendChild(parent, child any)
	EmptyNode() any
}

type textNode struct {
	text     string
	children []*textNode
}

// TextBuilder materializes output as plain text. Elements and containers
// contribute only their content.
type TextBuilder struct {
	root *textNode
}

// NewTextBuilder returns an empty text builder.
func NewTextBuilder() *TextBuilder {
	return &TextBuilder{root: &textNode{}}
}

func (b *TextBuilder) Root() any { return b.root }

func (b *TextBuilder) CreateElementNode(string, map[string]string) any { return &textNode{} }

func (b *TextBuilder) CreateTextNode(text string) any { return &textNode{text: text} }

func (b *TextBuilder) CreateContainerNode() any { return &textNode{} }

func (b *TextBuilder) EmptyNode() any { return nil }

func (b *TextBuilder) AppendChild(parent, child any) {
	p, ok := parent.(*textNode)
	if !ok {
		return
	}

	if c, ok := child.(*textNode); ok && c != nil {
		p.children = append(p.children, c)
	}
}

// Append adds text at the end of the document.
func (b *TextBuilder) Append(text string) {
	b.AppendChild(b.root, b.CreateTextNode(text))
}

// String returns the document text.
func (b *TextBuilder) String() string {
	var sb strings.Builder

	writeText(&sb, b.root)

	return sb.String()
}

// WriteTo writes the document text to w.
func (b *TextBuilder) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, b.String())

	return int64(n), err
}

func writeText(sb *strings.Builder, n *textNode) {
	sb.WriteString(n.text)

	for _, c := range n.children {
		writeText(sb, c)
	}
}

// Element is a node of a materialized document tree. Text nodes have only
// Text set; containers have neither Name nor Text.
type Element struct {
	Name     string            `json:"name,omitempty"     yaml:"name,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"    yaml:"attrs,omitempty"`
	Text     string            `json:"text,omitempty"     yaml:"text,omitempty"`
	Children []*Element        `json:"children,omitempty" yaml:"children,omitempty"`
}

func (e *Element) isText() bool {
	return e.Name == "" && e.Children == nil && e.Attrs == nil
}

// String returns the text content of e and its descendants.
func (e *Element) String() string {
	var sb strings.Builder

	e.writeText(&sb)

	return sb.String()
}

func (e *Element) writeText(sb *strings.Builder) {
	sb.WriteString(e.Text)

	for _, c := range e.Children {
		c.writeText(sb)
	}
}

// Find returns the descendants of e named name in document order.
func (e *Element) Find(name string) []*Element {
	var out []*Element

	for _, c := range e.Children {
		if c.Name == name {
			out = append(out, c)
		}

		out = append(out, c.Find(name)...)
	}

	return out
}

// TreeBuilder materializes output as an [Element] tree rooted at a
// "document" element. Adjacent text nodes are merged.
type TreeBuilder struct {
	root *Element
}

// NewTreeBuilder returns an empty tree builder.
func NewTreeBuilder() *TreeBuilder {
	return &TreeBuilder{root: &Element{Name: "document"}}
}

func (b *TreeBuilder) Root() any { return b.root }

// Document returns the root element.
func (b *TreeBuilder) Document() *Element { return b.root }

func (b *TreeBuilder) CreateElementNode(name string, attrs map[string]string) any {
	return &Element{Name: name, Attrs: maps.Clone(attrs)}
}

func (b *TreeBuilder) CreateTextNode(text string) any { return &Element{Text: text} }

func (b *TreeBuilder) CreateContainerNode() any { return &Element{Children: []*Element{}} }

func (b *TreeBuilder) EmptyNode() any { return nil }

func (b *TreeBuilder) AppendChild(parent, child any) {
	p, ok := parent.(*Element)
	if !ok {
		return
	}

	c, ok := child.(*Element)
	if !ok || c == nil {
		return
	}

	if c.isText() {
		if c.Text == "" {
			return
		}

		if n := len(p.Children); n > 0 && p.Children[n-1].isText() {
			p.Children[n-1].Text += c.Text

			return
		}
	}

	p.Children = append(p.Children, c)
}

// Append adds text at the end of the document.
func (b *TreeBuilder) Append(text string) {
	b.AppendChild(b.root, b.CreateTextNode(text))
}

// JSON encodes the document.
func (b *TreeBuilder) JSON(indent int) ([]byte, error) {
	if indent > 0 {
		return json.MarshalIndent(b.root, "", strings.Repeat(" ", indent))
	}

	return json.Marshal(b.root)
}

// YAML encodes the document.
func (b *TreeBuilder) YAML(indent int) ([]byte, error) {
	return yaml.MarshalWithOptions(b.root, yaml.Indent(max(indent, 2)))
}
