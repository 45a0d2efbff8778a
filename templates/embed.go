// Package templates embeds the default workspace configuration and the
// example protocol seeded by deckplan init.
package templates

import "embed"

//go:embed config.yaml protocols
var FS embed.FS
