package filecache

import (
	"bytes"

	bboltstore "github.com/gofiber/storage/bbolt/v2"
	bolt "go.etcd.io/bbolt"
)

const boltBucket = "filecache"

// saveBoltSnapshot persists entries into a bbolt-backed key/value store,
// one key per logical path, using the same entry encoding as the binary
// snapshot format so both backends share validation and size-cap logic.
// This reuses the same bbolt wrapper otherwise used for persisted Fiber
// sessions as an alternate file-cache snapshot backend.
func saveBoltSnapshot(path string, entries map[string]*CachedFile) error {
	store := bboltstore.New(bboltstore.Config{Database: path, Bucket: boltBucket, Reset: true})
	defer store.Close()

	for logicalPath, cf := range entries {
		var buf bytes.Buffer
		if err := writeSnapshotEntry(&buf, cf); err != nil {
			return err
		}

		if err := store.Set(logicalPath, buf.Bytes(), 0); err != nil {
			return err
		}
	}

	return nil
}

// loadBoltSnapshot reads every key from the bbolt-backed store and decodes
// it as a snapshot entry, applying the same max-size and entry-ceiling
// rules as the binary format.
func loadBoltSnapshot(path string, maxFileSize int64) (map[string]*CachedFile, error) {
	store := bboltstore.New(bboltstore.Config{Database: path, Bucket: boltBucket})
	defer store.Close()

	entries := make(map[string]*CachedFile)

	db := store.Conn()
	err := db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(boltBucket))
		if b == nil {
			return nil
		}

		return b.ForEach(func(k, v []byte) error {
			if len(entries) >= MaxEntries {
				return nil
			}

			r := bytes.NewReader(v)

			cf, skip, err := readSnapshotEntry(r, maxFileSize)
			if err != nil {
				return err
			}

			if skip {
				return nil
			}

			entries[string(k)] = cf

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}
