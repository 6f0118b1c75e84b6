package lang

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"github.com/zeebo/xxh3"
)

// state tracks the parse of one (name, content) pair.
type state struct {
	once sync.Once
	tmpl *Template
	err  error
}

// cacheKey hashes the template name and content. The name takes part
// because it is recorded in diagnostics and the tree.
func cacheKey(name, text string) string {
	h := xxh3.New()
	_, _ = h.WriteString(name)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(text)

	return strconv.FormatUint(h.Sum64(), 36)
}

func (p *Parser) parseCached(ctx context.Context, name, text string) (*Template, error) {
	key := cacheKey(name, text)

	value, hit := p.cache.LoadOrStore(key, new(state))

	entry, ok := value.(*state)
	if !ok {
		return nil, ErrParse.With(slog.String("issue", "invalid entry type in parse cache"))
	}

	p.logger.TraceContext(ctx, "cache lookup",
		slog.String("source", name),
		slog.String("key", key),
		slog.Bool("cache_hit", hit))

	entry.once.Do(func() {
		entry.tmpl, entry.err = p.ParseTemplate(ctx, NewSource(name, text))
	})

	if entry.err != nil {
		// A failed parse is not kept so a later call with a live context
		// can succeed.
		p.cache.CompareAndDelete(key, entry)

		return nil, entry.err
	}

	return entry.tmpl, nil
}

// ClearCache drops every cached parse result.
func (p *Parser) ClearCache() {
	p.cache.Clear()
}
