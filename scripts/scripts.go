// Package scripts holds the bundled Risor report scripts. They run against
// an indexed database through the runtime's graph globals and write their
// results with emit.
package scripts

import "embed"

// FS holds every bundled script at its root.
//
//go:embed *.risor
var FS embed.FS
