package filecache

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	snapshotMagic   uint32 = 0xCAFEBABE
	snapshotVersion uint32 = 1
)

var (
	ErrBadMagic   = errors.New("filecache: snapshot magic mismatch")
	ErrBadVersion = errors.New("filecache: unsupported snapshot version")
)

// saveBinarySnapshot writes entries to path in the little-endian, versioned
// binary format described below.
func saveBinarySnapshot(path string, entries map[string]*CachedFile) error {
	f, err := os.Create(path) // #nosec G304 -- path is an operator-configured snapshot location
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)

	if err := binary.Write(w, binary.LittleEndian, snapshotMagic); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, snapshotVersion); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(entries))); err != nil {
		return err
	}

	for _, cf := range entries {
		if err := writeSnapshotEntry(w, cf); err != nil {
			return err
		}
	}

	return w.Flush()
}

func writeSnapshotEntry(w io.Writer, cf *CachedFile) error {
	filename := []byte(cf.LogicalPath)
	mime := []byte(cf.MIMEType)

	if err := writeLenPrefixed(w, filename); err != nil {
		return err
	}
	if err := writeLenPrefixed(w, mime); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(cf.Data))); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(cf.ModTime.Unix())); err != nil {
		return err
	}
	if _, err := w.Write(cf.Data); err != nil {
		return err
	}

	return nil
}

func writeLenPrefixed(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)

	return err
}

// loadBinarySnapshot reads and validates a snapshot file, skipping entries
// that exceed maxFileSize and never admitting more than MaxEntries.
func loadBinarySnapshot(path string, maxFileSize int64) (map[string]*CachedFile, error) {
	f, err := os.Open(path) // #nosec G304 -- path is an operator-configured snapshot location
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)

	var magic, version, count uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return nil, err
	}
	if magic != snapshotMagic {
		return nil, ErrBadMagic
	}

	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, err
	}
	if version != snapshotVersion {
		return nil, ErrBadVersion
	}

	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}

	entries := make(map[string]*CachedFile, count)

	for i := uint32(0); i < count; i++ {
		cf, skip, err := readSnapshotEntry(r, maxFileSize)
		if err != nil {
			return nil, err
		}

		if skip {
			continue
		}

		if len(entries) >= MaxEntries {
			log.Warn().Msg("filecache: snapshot entry ceiling reached, ignoring remaining entries")

			break
		}

		entries[cf.LogicalPath] = cf
	}

	return entries, nil
}

func readSnapshotEntry(r io.Reader, maxFileSize int64) (cf *CachedFile, skip bool, err error) {
	filename, err := readLenPrefixed(r)
	if err != nil {
		return nil, false, err
	}

	mime, err := readLenPrefixed(r)
	if err != nil {
		return nil, false, err
	}

	var dataSize, lastModified uint64
	if err := binary.Read(r, binary.LittleEndian, &dataSize); err != nil {
		return nil, false, err
	}
	if err := binary.Read(r, binary.LittleEndian, &lastModified); err != nil {
		return nil, false, err
	}

	if maxFileSize > 0 && dataSize > uint64(maxFileSize) {
		if _, err := io.CopyN(io.Discard, r, int64(dataSize)); err != nil {
			return nil, false, err
		}

		return nil, true, nil
	}

	data := make([]byte, dataSize)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, false, err
	}

	return &CachedFile{
		LogicalPath: string(filename),
		MIMEType:    string(mime),
		Data:        data,
		Size:        int64(len(data)),
		ModTime:     time.Unix(int64(lastModified), 0),
		Loaded:      true,
	}, false, nil
}

func readLenPrefixed(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}

	return buf, nil
}
