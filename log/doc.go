// Package log provides a concurrency-safe structured logger built on
// [log/slog].
//
// A [Logger] is a value. Configuration is applied with functional options at
// construction time and can be derived with [Logger.Wrap]:
//
//	logger := log.Make(os.Stderr,
//		log.WithLevel(log.LevelTrace),
//		log.WithFormat(log.FormatText),
//		log.WithTimeLayout("Kitchen"))
//
//	logger.TraceContext(ctx, "tokenized", slog.Int("count", n))
//
// The zero Logger discards everything, so library types can carry a Logger
// field that callers optionally set with an option such as
// lang.WithLogger.
//
// Pretty output (the default) colorizes keys and values when the output is
// a terminal. Disable it with [WithPretty] for machine-readable logs.
//
// The package also keeps a default logger used by [Debug], [Info], [Warn],
// [Error] and their Context variants. Reconfigure it with [Config].
package log
