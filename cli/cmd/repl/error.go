package repl

import "github.com/ihontarenko/jmouse-sub007/lang"

// Sentinel errors.
var (
	ErrOutOfBounds  = lang.NewError("history index out of range")
	ErrEditDeclined = lang.NewError("edit declined")
	ErrNoEngine     = lang.NewError("no engine configured")
	ErrUsage        = lang.NewError("usage")
)
