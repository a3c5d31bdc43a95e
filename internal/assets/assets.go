package assets

import "embed"

// WebFS holds the popup page served at /.
//
//go:embed all:web
var WebFS embed.FS

//go:embed all:migrations
var MigrationsFS embed.FS
