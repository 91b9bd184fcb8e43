package filecache

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// scanDir recursively walks root, building the cache's entry set. Files
// matching any exclusion pattern, or exceeding maxFileSize, are skipped.
// Scanning stops admitting new entries once MaxEntries is reached.
func scanDir(root string, exclusions []string, maxFileSize int64) (map[string]*CachedFile, error) {
	entries := make(map[string]*CachedFile)

	if root == "" {
		return entries, nil
	}

	if _, err := os.Stat(root); os.IsNotExist(err) {
		return entries, nil
	}

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return relErr
		}

		logicalPath := "/" + filepath.ToSlash(rel)

		if isExcluded(exclusions, logicalPath) {
			return nil
		}

		if len(entries) >= MaxEntries {
			log.Warn().Str("path", logicalPath).Msg("filecache: entry ceiling reached, skipping remaining files")

			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return infoErr
		}

		if maxFileSize > 0 && info.Size() > maxFileSize {
			return nil
		}

		data, readErr := os.ReadFile(p) // #nosec G304 -- p comes from WalkDir under a trusted root
		if readErr != nil {
			return readErr
		}

		mimeType, _ := classify(logicalPath)

		entries[logicalPath] = &CachedFile{
			LogicalPath: logicalPath,
			MIMEType:    mimeType,
			Data:        data,
			Size:        int64(len(data)),
			ModTime:     info.ModTime(),
			Loaded:      true,
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}
