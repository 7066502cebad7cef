package appfs

import "embed"

// FS embeds non-go files needed at runtime (DB migrations).
//
//go:embed migrations
var FS embed.FS
