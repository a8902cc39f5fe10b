package archive

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// maxLine bounds one archive line. A line holds a whole tree.
const maxLine = 64 << 20

// readJSONL returns each non-empty, parseable line of r as a
// json.RawMessage, plus the number of malformed lines skipped.
func readJSONL(r io.Reader) ([]json.RawMessage, int, error) {
	var (
		records []json.RawMessage
		skipped int
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			skipped++
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		records = append(records, json.RawMessage(cp))
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("scanning archive: %w", err)
	}
	return records, skipped, nil
}

// writeJSONL writes one record per line.
func writeJSONL(w io.Writer, records []json.RawMessage) error {
	bw := bufio.NewWriter(w)
	for _, rec := range records {
		if _, err := bw.Write(rec); err != nil {
			return fmt.Errorf("writing record: %w", err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return fmt.Errorf("writing newline: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flushing buffer: %w", err)
	}
	return nil
}

// writeFileAtomic writes records to path with the temp-file, fsync, rename
// pattern so readers never see a partial archive.
func writeFileAtomic(path string, records []json.RawMessage) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".storytree-*.jsonl.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if err := writeJSONL(tmp, records); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
