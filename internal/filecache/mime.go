package filecache

import (
	"path"
	"strings"
)

// mimeEntry pairs a content type with the display priority it gets in
// the MIME classification table.
type mimeEntry struct {
	contentType string
	priority    int
}

// mimeTable is the extension → (content-type, priority) table of spec
// section 6. Unknown extensions classify as application/octet-stream.
var mimeTable = map[string]mimeEntry{
	".html": {"text/html", 100},
	".htm":  {"text/html", 100},
	".css":  {"text/css", 90},
	".js":   {"application/javascript", 80},
	".mjs":  {"application/javascript", 80},
	".json": {"application/json", 70},

	".woff":  {"font/woff", 85},
	".woff2": {"font/woff2", 85},
	".ttf":   {"font/ttf", 85},
	".eot":   {"application/vnd.ms-fontobject", 85},

	".png":  {"image/png", 60},
	".jpg":  {"image/jpeg", 60},
	".jpeg": {"image/jpeg", 60},
	".gif":  {"image/gif", 50},
	".svg":  {"image/svg+xml", 70},
	".ico":  {"image/x-icon", 40},

	".mp4":  {"video/mp4", 10},
	".webm": {"video/webm", 10},
	".mp3":  {"audio/mpeg", 10},
	".wav":  {"audio/wav", 10},

	".pdf": {"application/pdf", 30},
	".txt": {"text/plain", 20},
	".xml": {"application/xml", 20},
	".zip": {"application/zip", 5},
}

const defaultMIME = "application/octet-stream"

// classify returns the content type and display priority for logicalPath,
// based on its extension.
func classify(logicalPath string) (contentType string, priority int) {
	ext := strings.ToLower(path.Ext(logicalPath))

	if e, ok := mimeTable[ext]; ok {
		return e.contentType, e.priority
	}

	return defaultMIME, 0
}

// HasKnownExtension reports whether logicalPath's extension appears in the
// MIME classification table, i.e. it is a recognized static-asset type
// rather than merely "a path segment with a dot in it".
func HasKnownExtension(logicalPath string) bool {
	ext := strings.ToLower(path.Ext(logicalPath))
	_, ok := mimeTable[ext]

	return ok
}
