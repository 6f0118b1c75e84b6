package cmd

import "github.com/ihontarenko/jmouse-sub007/lang"

// Error is the structured error returned by commands. It is the same type
// the library packages return, so every failure logs the same way.
type Error = lang.Error

var (
	ErrConfig      = lang.NewError("parse configuration")
	ErrData        = lang.NewError("load variables")
	ErrParse       = lang.NewError("parse input")
	ErrRender      = lang.NewError("render template")
	ErrEval        = lang.NewError("evaluate expression")
	ErrEncode      = lang.NewError("encode output")
	ErrWriteConfig = lang.NewError("write configuration file")
	ErrFileExists  = lang.NewError("file exists (use --force to overwrite)")
)
