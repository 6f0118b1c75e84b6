//nolint:gochecknoglobals
package pkg

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var version string

// Version is the semantic version embedded at build time from the VERSION
// file.
var Version = strings.TrimSpace(version)

const (
	// Name is the command name. It appears in help text and determines the
	// default configuration and cache directory names.
	Name = "jmouse"

	// Description is the one-line summary shown in help output.
	Description = "Template and expression language toolkit"

	// TemplateExt is the default file extension of template sources.
	TemplateExt = ".jm"
)
