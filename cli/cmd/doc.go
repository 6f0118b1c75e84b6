// Package cmd implements the jmouse subcommands.
//
// Commands receive a [context.Context] carrying the parsed kong context
// ([WithContext]) and the standard streams ([WithStreams]); they never use
// os.Stdin or os.Stdout directly.
package cmd

var (
	// CacheIdentifier is the kong variable holding the cache directory.
	CacheIdentifier = "cache"

	// ConfigIdentifier is the kong variable holding the configuration file
	// path.
	ConfigIdentifier = "config"

	// ExtIdentifier is the kong variable holding the default template
	// extension.
	ExtIdentifier = "templateExt"
)
