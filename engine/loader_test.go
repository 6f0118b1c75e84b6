package engine

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ihontarenko/jmouse-sub007/lang"
)

func memFS(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()

	fs := afero.NewMemMapFs()
	for name, text := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(text), 0o644))
	}

	return fs
}

func TestFSLoader_Load(t *testing.T) {
	t.Parallel()

	fs := memFS(t, map[string]string{
		"/site/page.jm":          "Hi {{ name }}",
		"/site/layouts/base.jm":  "<{% block body %}{% endblock %}>",
		"/site/partials/nav.txt": "nav",
	})

	l := NewFSLoader(fs, "/site", ".jm")
	ctx := context.Background()

	tmpl, err := l.Load(ctx, "page")
	require.NoError(t, err)
	assert.Equal(t, "page", tmpl.Name)

	_, err = l.Load(ctx, "partials/nav.txt")
	require.NoError(t, err)

	_, err = l.Load(ctx, "absent")
	require.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestFSLoader_ParseError(t *testing.T) {
	t.Parallel()

	l := NewFSLoader(memFS(t, map[string]string{"/bad.jm": "{% if %}"}), "/", ".jm")

	_, err := l.Load(context.Background(), "bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTemplateNotFound)

	var perr interface{ Position() lang.Position }
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 1, perr.Position().Line)
}

func TestFSLoader_List(t *testing.T) {
	t.Parallel()

	l := NewFSLoader(memFS(t, map[string]string{
		"/t/a.jm":       "a",
		"/t/sub/b.jm":   "b",
		"/t/sub/c.html": "c",
	}), "/t", ".jm")

	names, err := l.List("**/*.jm")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.jm", "sub/b.jm"}, names)

	names, err = l.List("sub/*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"sub/b.jm", "sub/c.html"}, names)
}

func TestFSLoader_LoadAll(t *testing.T) {
	t.Parallel()

	l := NewFSLoader(memFS(t, map[string]string{
		"/t/a.jm": "a",
		"/t/b.jm": "{{ 1 +",
		"/t/c.jm": "c",
	}), "/t", ".jm")

	got, err := l.LoadAll(context.Background(), "*.jm")
	require.Error(t, err)
	assert.Len(t, got, 2)
	assert.Contains(t, got, "a.jm")
	assert.Contains(t, got, "c.jm")
}

func TestFSLoader_Render(t *testing.T) {
	t.Parallel()

	l := NewFSLoader(memFS(t, map[string]string{
		"/t/base.jm": "<{% block body %}base{% endblock %}>",
		"/t/page.jm": `{% extends "base" %}{% block body %}{{ name }}{% endblock %}`,
	}), "/t", ".jm")

	out, err := New(l).Render(context.Background(), "page", map[string]any{"name": "fs"})
	require.NoError(t, err)
	assert.Equal(t, "<fs>", out)
}

func TestMapLoader(t *testing.T) {
	t.Parallel()

	src := map[string]string{"a/x": "x", "a/y": "y", "b": "b"}
	l := NewMapLoader(src)

	src["a/z"] = "added later"

	names, err := l.List("a/*")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/x", "a/y"}, names)

	_, err = l.Load(context.Background(), "a/z")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestChainLoader(t *testing.T) {
	t.Parallel()

	chain := ChainLoader{
		NewMapLoader(map[string]string{"page": `[{% include "part" %}]`}),
		NewFSLoader(memFS(t, map[string]string{"/t/part.jm": "fs part", "/t/page.jm": "shadowed"}), "/t", ".jm"),
	}

	out, err := New(chain).Render(context.Background(), "page", nil)
	require.NoError(t, err)
	assert.Equal(t, "[fs part]", out)

	_, err = chain.Load(context.Background(), "absent")
	require.ErrorIs(t, err, ErrTemplateNotFound)

	names, err := chain.List("p*")
	require.NoError(t, err)
	assert.Equal(t, []string{"page", "page.jm", "part.jm"}, names)
}
