// Package profile provides optional runtime profiling backed by
// [github.com/pkg/profile].
//
// Profiling is compiled in only with the "pprof" build tag:
//
//	go build -tags pprof .
//	jmouse --pprof-mode cpu render page.jm
//	go tool pprof -http=: ~/.cache/jmouse/pprof/cpu.pprof
//
// Without the tag [Modes] is empty and [Config.Start] returns a no-op, so
// callers never need their own build constraints.
//
// Supported modes with the tag: allocs, block, clock, cpu, goroutine, heap,
// mem, mutex, thread, trace. The tag also registers the [net/http/pprof]
// handlers on the default mux.
package profile

// Tag is the build tag required to enable profiling.
const Tag = `pprof`
