package scanner

import (
	"path"
	"strings"
)

// Extensions of files whose content carries expandable macro tokens
var textExtensions = []string{
	".cpp",
	".h",
	".java",
	".html",
	".ui",
}

// IsTextFile reports whether a file takes part in macro expansion. Files
// are picked by name, never by content.
func IsTextFile(name string) bool {
	base := path.Base(toSlash(name))

	if strings.HasPrefix(base, "LICENSE") {
		return true
	}

	for _, ext := range textExtensions {
		if strings.HasSuffix(base, ext) {
			return true
		}
	}
	return false
}

func toSlash(name string) string {
	return strings.ReplaceAll(name, "\\", "/")
}
