package imagetypes

import (
	"path/filepath"
	"strings"
)

// SupportedExtensions maps file extensions to whether the indexer will
// process them. The set must match the decoders imageio registers; an
// extension listed here without a decoder would fail on every run instead
// of being skipped at scan time.
var SupportedExtensions = map[string]bool{
	".bmp":  true,
	".gif":  true,
	".jpeg": true,
	".jpg":  true,
	".jpe":  true,
	".png":  true,
	".webp": true,
	".tiff": true,
	".tif":  true,
}

// IsSupported reports whether the file name has a supported image extension.
// Matching is case-insensitive.
func IsSupported(name string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(name))]
}
