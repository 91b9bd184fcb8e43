package filecache

import (
	"path"
	"strings"
)

// matchExclusion reports whether logicalPath is excluded by pattern, using
// glob semantics with path-separator awareness (path.Match operates on one
// segment at a time the same way filepath.Match does on POSIX). A pattern
// without a leading '/' is matched against the path relative to the root.
// A trailing '/' in the pattern additionally matches any descendant of
// that prefix.
func matchExclusion(pattern, logicalPath string) bool {
	if !strings.HasPrefix(pattern, "/") {
		logicalPath = strings.TrimPrefix(logicalPath, "/")
	}

	if len(pattern) > 0 && pattern[len(pattern)-1] == '/' {
		prefix := pattern[:len(pattern)-1]

		if logicalPath == prefix {
			return true
		}

		if len(logicalPath) > len(prefix) && logicalPath[:len(prefix)] == prefix && logicalPath[len(prefix)] == '/' {
			return true
		}

		return false
	}

	ok, err := path.Match(pattern, logicalPath)
	if err != nil {
		return false
	}

	return ok
}

// isExcluded reports whether logicalPath matches any of patterns.
func isExcluded(patterns []string, logicalPath string) bool {
	for _, p := range patterns {
		if matchExclusion(p, logicalPath) {
			return true
		}
	}

	return false
}
