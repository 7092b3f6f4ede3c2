// Package lib embeds the system header sources shipped with the compiler
// so that `#include <name.c>` resolves without a filesystem lookup.
package lib

import "embed"

//go:embed _c_files
var CFiles embed.FS
