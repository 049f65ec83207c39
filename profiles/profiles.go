// Package profiles provides the embedded signing profiles.
//
// Users can copy and customize them; a profile file given on the command
// line takes precedence over a built-in profile of the same name.
package profiles

import "embed"

// FS contains all embedded profile YAML files.
//   - cades/ - CAdES-BES and CAdES-EPES signing profiles
//
//go:embed all:cades
var FS embed.FS
