// Package messages embeds the bundled string files. en.json is the default
// locale bundle, the others are offline copies of the remote translations.
package messages

import "embed"

//go:embed *.json
var files embed.FS

// FS returns the embedded bundle files, each named {locale}.json at the root.
func FS() embed.FS {
	return files
}
