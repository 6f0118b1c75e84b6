package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/ihontarenko/jmouse-sub007/lang"
	"github.com/ihontarenko/jmouse-sub007/log"
)

type (
	kongKey    struct{}
	streamsKey struct{}
)

// Streams are the standard streams commands read from and write to.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// StdStreams returns the process streams.
func StdStreams() Streams {
	return Streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

// WithContext returns a context carrying the parsed kong context.
func WithContext(ctx context.Context, ktx *kong.Context) context.Context {
	return context.WithValue(ctx, kongKey{}, ktx)
}

func kongContextFrom(ctx context.Context) *kong.Context {
	ktx, _ := ctx.Value(kongKey{}).(*kong.Context)

	return ktx
}

// kongVar returns the kong variable name, or "" without a kong context.
func kongVar(ctx context.Context, name string) string {
	ktx := kongContextFrom(ctx)
	if ktx == nil {
		return ""
	}

	return ktx.Model.Vars()[name]
}

// WithStreams returns a context carrying the command streams.
func WithStreams(ctx context.Context, s Streams) context.Context {
	return context.WithValue(ctx, streamsKey{}, s)
}

// streamsFrom returns the streams in ctx with unset members taken from
// [StdStreams].
func streamsFrom(ctx context.Context) Streams {
	s, _ := ctx.Value(streamsKey{}).(Streams)
	std := StdStreams()

	if s.In == nil {
		s.In = std.In
	}

	if s.Out == nil {
		s.Out = std.Out
	}

	if s.Err == nil {
		s.Err = std.Err
	}

	return s
}

// stdinSource is the source argument that selects standard input.
const stdinSource = "-"

// stdinName names templates read from standard input.
const stdinName = "<stdin>"

// readSource reads the file at path, or standard input for "-". It returns
// the name diagnostics should use and the content.
func readSource(ctx context.Context, path string) (name, text string, err error) {
	var data []byte

	if path == stdinSource || path == "" {
		name = stdinName
		data, err = io.ReadAll(streamsFrom(ctx).In)
	} else {
		name = path
		data, err = os.ReadFile(path)
	}

	if err != nil {
		return name, "", lang.ErrReadInput.Wrap(err).With(slog.String("source", name))
	}

	return name, string(data), nil
}

// parserOptions are the lang options shared by every command.
func parserOptions() []lang.Option {
	return []lang.Option{lang.WithLogger(log.Default())}
}
