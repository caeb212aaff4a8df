package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const (

	// Name used for directory naming.
	programName = "rubypack"

	// Default permission mode for directories.
	DefaultDirMode os.FileMode = 0755

	// Default permission mode for files.
	DefaultFileMode os.FileMode = 0644

	// Name of the metadata record kept inside every cache directory.
	MetadataFile = ".rubypack-cache.toml"
)

// Default root directory holding one subdirectory per cache store.
//
//	Linux:   $XDG_CACHE_HOME/rubypack or ~/.cache/rubypack
//	macOS:   ~/Library/Caches/rubypack
func CacheRoot() string {
	return filepath.Join(xdg.CacheHome, programName)
}

// Path to the directory of the named cache store below root.
func CacheDir(root, name string) string {
	return filepath.Join(root, name)
}

// Path to the metadata record of the cache directory dir.
func Metadata(dir string) string {
	return filepath.Join(dir, MetadataFile)
}
