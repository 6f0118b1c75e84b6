// Package cli contains the command line interface for jmouse.
//
// # Commands
//
//	jmouse render [-d FILE]... [-D NAME=VALUE]... [-C DIR] TEMPLATE
//	jmouse eval [-d FILE]... EXPR...
//	jmouse fmt [native|json|yaml|ast] [-e] [SOURCE]
//	jmouse tokens [-e] [-o text|json|yaml] [SOURCE]
//	jmouse repl [-d FILE]... [-C DIR]
//	jmouse init [--force] [--print]
//
// A SOURCE or TEMPLATE of "-" reads standard input. A template read from
// standard input may extend and include templates from the --dir tree.
//
// # Configuration
//
// Flag defaults are read from config.yaml in the user configuration
// directory (for example ~/.config/jmouse/config.yaml). Keys are flag names;
// nested mappings join their keys with a hyphen:
//
//	log:
//	  level: debug
//	dir: ./templates
//
// jmouse init writes the current flag values to that file.
//
// # Logging Options
//
//   - --log-level: Set minimum log level (trace, debug, info, warn, error)
//   - --log-format: Set log output format (json, text)
//   - --log-time-layout: Set timestamp format (RFC3339, Kitchen, ...)
//   - --log-caller: Include caller information in log output
//   - --[no-]log-pretty: Colorize text output
//
// # Profiling Options
//
// Profiling is only available when built with the pprof build tag:
//
//	go build -tags pprof -o jmouse .
//
//   - --pprof-mode: Enable profiling (allocs, block, clock, cpu, goroutine,
//     heap, mem, mutex, thread, trace)
//   - --pprof-dir: Set profile output directory (default: ~/.cache/jmouse/pprof)
package cli
