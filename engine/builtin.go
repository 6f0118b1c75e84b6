package engine

// This file defines the default function registry. Besides the general
// purpose functions it provides namespaced helpers for paths, files,
// strings, PATH-like lists and the host system, called as ns.name(...).

import (
	"bufio"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/ardnew/mung"
	"github.com/google/uuid"
)

var defaultFunctions = sync.OnceValue(func() *Registry {
	b := NewRegistryBuilder("function")

	b.Add(
		Callable{Name: "range", MinArgs: 1, MaxArgs: 3, Fn: fnRange},
		Callable{Name: "len", MinArgs: 1, MaxArgs: 1, Fn: fnLen},
		Callable{Name: "dict", Variadic: true, Fn: fnDict},
		Callable{Name: "list", Variadic: true, Fn: fnList},
		Callable{Name: "max", MinArgs: 1, Variadic: true, Fn: extremum(1)},
		Callable{Name: "min", MinArgs: 1, Variadic: true, Fn: extremum(-1)},
		Callable{Name: "expr", MinArgs: 1, MaxArgs: 2, Fn: fnExpr},
	)

	b.Func("now", time.Now)
	b.Func("uuid", func() string { return uuid.NewString() })
	b.Func("env", os.Getenv)

	b.Func("path.abs", pathAbs)
	b.Func("path.cat", pathCat)
	b.Func("path.join", pathCat)
	b.Func("path.rel", pathRel)
	b.Func("path.base", filepath.Base)
	b.Func("path.dir", filepath.Dir)
	b.Func("path.ext", filepath.Ext)

	b.Func("file.exists", fileExists)
	b.Func("file.isDir", fileIsDir)
	b.Func("file.isRegular", fileIsRegular)
	b.Func("file.isSymlink", fileIsSymlink)

	b.Func("str.upper", strings.ToUpper)
	b.Func("str.lower", strings.ToLower)
	b.Func("str.trim", strings.TrimSpace)
	b.Func("str.contains", strings.Contains)
	b.Func("str.hasPrefix", strings.HasPrefix)
	b.Func("str.hasSuffix", strings.HasSuffix)
	b.Func("str.repeat", strRepeat)
	b.Func("str.replace", strings.ReplaceAll)
	b.Func("str.split", strings.Split)
	b.Func("str.join", strings.Join)
	b.Func("str.fields", strings.Fields)

	b.Func("mung.prefix", mungPrefix)
	b.Func("mung.prefixif", mungPrefixIf)

	b.Func("sys.target", getTarget)
	b.Func("sys.platform", getPlatform)
	b.Func("sys.hostname", getHostname)
	b.Func("sys.user", getUser)
	b.Func("sys.shell", getShell)
	b.Func("sys.cwd", getCwd)

	return b.Build()
})

// DefaultFunctions returns the built-in function registry.
func DefaultFunctions() *Registry { return defaultFunctions() }

func fnRange(_ *Context, args Args) (any, error) {
	nums := make([]int64, args.Len())

	for i, a := range args.List {
		n, err := ToInt(a)
		if err != nil {
			return nil, err
		}

		nums[i] = n
	}

	start, stop, step := int64(0), nums[0], int64(1)

	if len(nums) > 1 {
		start, stop = nums[0], nums[1]
	}

	if len(nums) > 2 {
		step = nums[2]
	}

	if step == 0 {
		return nil, failf("range step must not be zero")
	}

	var out []any

	for i := start; (step > 0 && i < stop) || (step < 0 && i > stop); i += step {
		out = append(out, i)
	}

	if out == nil {
		out = []any{}
	}

	return out, nil
}

func fnLen(_ *Context, args Args) (any, error) {
	n, err := length(args.At(0))

	return int64(n), err
}

func fnDict(_ *Context, args Args) (any, error) {
	if args.Len()%2 != 0 {
		return nil, failf("dict expects key/value pairs")
	}

	out := make(map[string]any, args.Len()/2+len(args.Named))

	for i := 0; i < args.Len(); i += 2 {
		out[ToString(args.List[i])] = args.List[i+1]
	}

	for k, v := range args.Named {
		out[k] = v
	}

	return out, nil
}

func fnList(_ *Context, args Args) (any, error) {
	if args.Len() == 1 {
		if l, err := toList(args.List[0]); err == nil {
			return append([]any{}, l...), nil
		}
	}

	return append([]any{}, args.List...), nil
}

// extremum returns the largest (sign 1) or smallest (sign -1) of its
// arguments, or of the elements of a single list argument.
func extremum(sign int) Func {
	return func(_ *Context, args Args) (any, error) {
		items := args.List
		if len(items) == 1 {
			l, err := toList(items[0])
			if err != nil {
				return nil, err
			}

			items = l
		}

		if len(items) == 0 {
			return nil, nil
		}

		best := items[0]

		for _, v := range items[1:] {
			c, err := Compare(v, best)
			if err != nil {
				return nil, err
			}

			if c*sign > 0 {
				best = v
			}
		}

		return best, nil
	}
}

// target contains string identifiers for an operating system and
// instruction set architecture.
type target struct {
	OS   string
	Arch string
}

// getTarget returns the host target using GNU GCC/LLVM naming conventions.
func getTarget() target {
	t := getPlatform()

	switch t.Arch {
	case "386":
		t.Arch = "i386"
	case "amd64":
		t.Arch = "x86_64"
	case "arm":
		if arm, ok := os.LookupEnv("GOARM"); ok {
			arm, _, _ = strings.Cut(arm, ",")
			switch arm = strings.TrimSpace(arm); arm {
			case "5", "6", "7":
				t.Arch = "armv" + arm
			}
		}
	case "arm64":
		if t.OS != "darwin" {
			t.Arch = "aarch64"
		}
	case "mipsle":
		t.Arch = "mipsel"
	}

	return t
}

// getPlatform returns the host target using Go conventions, honoring the
// GOHOSTOS/GOOS and GOHOSTARCH/GOARCH overrides.
func getPlatform() target {
	return target{
		OS:   firstEnv(runtime.GOOS, "GOHOSTOS", "GOOS"),
		Arch: firstEnv(runtime.GOARCH, "GOHOSTARCH", "GOARCH"),
	}
}

func firstEnv(def string, keys ...string) string {
	for _, k := range keys {
		if v, ok := os.LookupEnv(k); ok {
			return v
		}
	}

	return def
}

func getHostname() string {
	hostname, _ := os.Hostname()

	return hostname
}

func getUser() map[string]any {
	u, err := user.Current()
	if err != nil {
		return nil
	}

	return map[string]any{
		"username": u.Username,
		"name":     u.Name,
		"uid":      u.Uid,
		"gid":      u.Gid,
		"home":     u.HomeDir,
	}
}

// getShell returns $SHELL, falling back to the login shell of the current
// user in /etc/passwd.
func getShell() string {
	if shell, ok := os.LookupEnv("SHELL"); ok {
		return shell
	}

	u, err := user.Current()
	if err != nil || u.Username == "" {
		return ""
	}

	f, err := os.Open("/etc/passwd")
	if err != nil {
		return ""
	}

	defer f.Close()

	s := bufio.NewScanner(f)
	for s.Scan() {
		if e := strings.Split(s.Text(), ":"); len(e) > 6 && e[0] == u.Username {
			return e[6]
		}
	}

	return ""
}

func getCwd() string {
	cwd, err := os.Getwd()
	if err != nil {
		return pathAbs(".")
	}

	return cwd
}

func fileExists(path string) bool {
	_, err := os.Stat(path)

	return !os.IsNotExist(err)
}

func fileIsDir(path string) bool {
	info, err := os.Stat(path)

	return err == nil && info.IsDir()
}

func fileIsRegular(path string) bool {
	info, err := os.Stat(path)

	return err == nil && info.Mode().IsRegular()
}

func fileIsSymlink(path string) bool {
	info, err := os.Lstat(path)

	return err == nil && info.Mode()&os.ModeSymlink != 0
}

func pathAbs(path string) string {
	p, err := filepath.Abs(path)
	if err != nil {
		return path
	}

	return p
}

func pathCat(elem ...string) string {
	return filepath.Join(elem...)
}

func strRepeat(s string, count int) (string, error) {
	if count < 0 {
		return "", failf("str.repeat: negative count %d", count)
	}

	return strings.Repeat(s, count), nil
}

func pathRel(from, to string) string {
	p, err := filepath.Rel(pathAbs(from), pathAbs(to))
	if err != nil {
		return pathCat(from, to)
	}

	return p
}

// mungPrefix prepends items to the PATH-like list subject, dropping
// duplicates.
func mungPrefix(subject string, prefix ...string) string {
	return mung.Make(
		mung.WithSubjectItems(subject),
		mung.WithDelim(string(os.PathListSeparator)),
		mung.WithPrefixItems(prefix...),
	).String()
}

// mungPrefixIf is mungPrefix keeping only the items accepted by predicate.
func mungPrefixIf(subject string, predicate func(string) bool, prefix ...string) string {
	return mung.Make(
		mung.WithSubjectItems(subject),
		mung.WithDelim(string(os.PathListSeparator)),
		mung.WithPrefixItems(prefix...),
		mung.WithFilter(predicate),
	).String()
}
