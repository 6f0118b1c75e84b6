package cmd

import (
	"context"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/ihontarenko/jmouse-sub007/cli/cmd/repl"
	"github.com/ihontarenko/jmouse-sub007/engine"
	"github.com/ihontarenko/jmouse-sub007/log"
)

// Repl starts an interactive session.
type Repl struct {
	Vars `embed:""`

	Dir     string `default:"."              help:"Template root directory for the render command" short:"C" type:"existingdir"`
	Ext     string `default:"${templateExt}" help:"Extension added to template names without one"`
	Strict  bool   `help:"Fail on undefined variables"`
	History bool   `default:"true"           help:"Persist history in the cache directory"         negatable:""`
}

// Run executes the repl command.
func (r *Repl) Run(ctx context.Context) error {
	vars, err := r.load(ctx)
	if err != nil {
		return err
	}

	e := engine.New(
		engine.NewFSLoader(afero.NewOsFs(), r.Dir, r.Ext, parserOptions()...),
		engine.WithLogger(log.Default()),
		engine.WithStrict(r.Strict),
		engine.WithParserOptions(parserOptions()...),
	)

	s := streamsFrom(ctx)

	return repl.Run(ctx, repl.Config{
		Engine:  e,
		Vars:    vars,
		History: r.historyPath(ctx),
		Logger:  log.Default(),
		Input:   s.In,
		Output:  s.Out,
	})
}

// historyPath returns the history file in the cache directory, or "" to
// keep history in memory.
func (r *Repl) historyPath(ctx context.Context) string {
	dir := kongVar(ctx, CacheIdentifier)
	if !r.History || dir == "" {
		return ""
	}

	return filepath.Join(dir, repl.HistoryFile)
}
