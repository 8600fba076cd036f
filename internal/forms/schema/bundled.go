package schema

import "embed"

//go:embed forms/*.json
var bundled embed.FS
