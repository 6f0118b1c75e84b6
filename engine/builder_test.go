package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTreeBuilder_Blocks(t *testing.T) {
	t.Parallel()

	e := newEngine(map[string]string{
		"base": "<{% block title %}Base{% endblock %}|{% block body %}body{% endblock %}>",
		"page": `{% extends "base" %}{% block title %}T{{ 1 }}{% endblock %}`,
	})

	b := NewTreeBuilder()
	require.NoError(t, e.Materialize(context.Background(), "page", nil, b))

	doc := b.Document()
	assert.Equal(t, "document", doc.Name)
	assert.Equal(t, "<T1|body>", doc.String())

	blocks := doc.Find("block")
	require.Len(t, blocks, 2)
	assert.Equal(t, map[string]string{"name": "title", "template": "page"}, blocks[0].Attrs)
	assert.Equal(t, map[string]string{"name": "body", "template": "base"}, blocks[1].Attrs)

	// Adjacent text is merged into one node.
	require.Len(t, blocks[0].Children, 1)
	assert.Equal(t, "T1", blocks[0].Children[0].Text)

	js, err := b.JSON(0)
	require.NoError(t, err)
	assert.Contains(t, string(js), `"name":"block"`)
	assert.Contains(t, string(js), `"attrs":{"name":"title","template":"page"}`)

	ys, err := b.YAML(2)
	require.NoError(t, err)

	var back Element
	require.NoError(t, yaml.Unmarshal(ys, &back))
	assert.Equal(t, doc.String(), back.String())
}

func TestTreeBuilder_Include(t *testing.T) {
	t.Parallel()

	e := newEngine(map[string]string{
		"page": `a{% include "part" %}{% include "none" ignore missing %}b`,
		"part": "p",
	})

	b := NewTreeBuilder()
	require.NoError(t, e.Materialize(context.Background(), "page", nil, b))

	kids := b.Document().Children
	require.Len(t, kids, 3)
	assert.Equal(t, "a", kids[0].Text)
	assert.Equal(t, "p", kids[1].String())
	assert.Empty(t, kids[1].Name)
	assert.Equal(t, "b", kids[2].Text)
}

func TestTextBuilder(t *testing.T) {
	t.Parallel()

	b := NewTextBuilder()
	el := b.CreateElementNode("block", map[string]string{"name": "x"})
	b.AppendChild(b.Root(), b.CreateTextNode("a"))
	b.AppendChild(b.Root(), el)
	b.AppendChild(el, b.CreateTextNode("b"))
	b.AppendChild(b.Root(), b.EmptyNode())
	b.Append("c")

	assert.Equal(t, "abc", b.String())

	var sb strings.Builder
	n, err := b.WriteTo(&sb)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, "abc", sb.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, assert.AnError }

func TestWriterSink(t *testing.T) {
	t.Parallel()

	var sb strings.Builder

	s := &WriterSink{W: &sb}
	s.Append("a")
	s.Append("b")
	require.NoError(t, s.Err)
	assert.Equal(t, "ab", sb.String())

	bad := &WriterSink{W: failingWriter{}}
	bad.Append("x")
	assert.ErrorIs(t, bad.Err, assert.AnError)
}
