package foreman

import _ "embed"

// Version is the released version of foreman.
//
//go:embed VERSION
var Version string
