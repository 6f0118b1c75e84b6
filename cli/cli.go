package cli

import (
	"context"

	"github.com/alecthomas/kong"

	"github.com/ihontarenko/jmouse-sub007/cli/cmd"
	"github.com/ihontarenko/jmouse-sub007/pkg"
)

// CLI is the top-level command-line interface for jmouse.
type CLI struct {
	Log   logConfig   `embed:"" group:"log"   prefix:"log-"`
	Pprof pprofConfig `embed:"" group:"pprof" prefix:"pprof-"`

	Version kong.VersionFlag `help:"Print the version and exit" short:"V"`

	Render cmd.Render `cmd:"" help:"Render a template"`
	Eval   cmd.Eval   `cmd:"" help:"Evaluate an expression"`
	Fmt    cmd.Fmt    `cmd:"" help:"Format a template or expression"`
	Tokens cmd.Tokens `cmd:"" help:"Print the token stream of a template or expression"`
	Repl   cmd.Repl   `cmd:"" help:"Start an interactive expression session"`
	Init   cmd.Init   `cmd:"" help:"Initialize configuration file"`
}

// Run executes the jmouse CLI on the process streams. The exit function is
// called with the exit code when kong exits early (help, version, usage).
func Run(ctx context.Context, exit func(code int), args ...string) error {
	return Exec(ctx, cmd.StdStreams(), exit, args...)
}

// Exec executes the jmouse CLI on the given streams.
func Exec(
	ctx context.Context,
	streams cmd.Streams,
	exit func(code int),
	args ...string,
) error {
	var cli CLI

	if err := mkdirAllRequired(); err != nil {
		return err
	}

	configFilePath := configPath(baseConfig)

	vars := kong.Vars{
		"version":            pkg.Version,
		cmd.ExtIdentifier:    pkg.TemplateExt,
		cmd.ConfigIdentifier: configFilePath,
		cmd.CacheIdentifier:  cacheDir(),
	}.
		CloneWith(cli.Log.vars()).
		CloneWith(cli.Pprof.vars())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Logging flags are applied before parsing so that parse errors, and
	// toggles without a text unmarshaler, honor them wherever they appear.
	cli.Log.scan(args)

	parser, err := kong.New(&cli,
		kong.Name(pkg.Name),
		kong.Description(pkg.Description),
		kong.UsageOnError(),
		kong.Exit(exit),
		kong.Writers(streams.Out, streams.Err),
		kong.ExplicitGroups(
			[]kong.Group{cli.Log.group(), cli.Pprof.group()},
		),
		kong.BindSingletonProvider(func() context.Context {
			return ctx
		}),
		kong.ConfigureHelp(
			kong.HelpOptions{
				Compact:             true,
				Summary:             true,
				Tree:                true,
				NoExpandSubcommands: true,
			}),
		kong.Configuration(loadConfig, configFilePath),
		vars,
	)
	if err != nil {
		return err
	}

	ktx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	ctx = cmd.WithContext(ctx, ktx)
	ctx = cmd.WithStreams(ctx, streams)

	defer cli.Log.start(ctx)()

	// no-op unless built with tag pprof and a mode is selected.
	defer cli.Pprof.start(ctx)()

	return ktx.Run(ctx, &cli)
}
