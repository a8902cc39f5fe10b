// Package archive exports trees to and imports them from JSONL files. Each
// line holds one tree: its metadata and its whole node array.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mesh-intelligence/storytree/pkg/types"
)

// Record is one archive line.
type Record struct {
	Tree  types.TreeData   `json:"tree"`
	Nodes []types.TreeNode `json:"nodes"`
}

// TreePutter is implemented by stores that can write tree metadata with a
// caller-chosen ID and timestamps. Import uses it to keep IDs stable.
type TreePutter interface {
	PutTree(ctx context.Context, tree types.TreeData) error
}

// Result counts the outcome of an import.
type Result struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// Export writes every tree in store to w, most recently modified first, and
// returns the number written.
func Export(ctx context.Context, store types.Store, w io.Writer) (int, error) {
	records, err := collect(ctx, store)
	if err != nil {
		return 0, err
	}
	if err := writeJSONL(w, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

// ExportFile writes the archive to path atomically.
func ExportFile(ctx context.Context, store types.Store, path string) (int, error) {
	records, err := collect(ctx, store)
	if err != nil {
		return 0, err
	}
	if err := writeFileAtomic(path, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

func collect(ctx context.Context, store types.Store) ([]json.RawMessage, error) {
	trees, err := store.ListTrees(ctx)
	if err != nil {
		return nil, fmt.Errorf("list trees: %w", err)
	}
	records := make([]json.RawMessage, 0, len(trees))
	for _, t := range trees {
		nodes, err := store.GetNodes(ctx, t.ID)
		if err != nil {
			return nil, fmt.Errorf("nodes of %s: %w", t.ID, err)
		}
		line, err := json.Marshal(Record{Tree: t, Nodes: nodes})
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", t.ID, err)
		}
		records = append(records, line)
	}
	return records, nil
}

// Import loads every tree in r into store. Malformed lines and records
// without a tree ID are skipped. When store implements TreePutter the
// archived ID and timestamps are kept and an existing tree with the same ID
// is replaced; otherwise each tree is created anew.
func Import(ctx context.Context, store types.Store, r io.Reader, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	lines, skipped, err := readJSONL(r)
	if err != nil {
		return Result{}, err
	}
	res := Result{Skipped: skipped}

	putter, canPut := store.(TreePutter)
	for _, line := range lines {
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil || rec.Tree.ID == "" {
			res.Skipped++
			logger.Warn("skipping archive record", "error", err)
			continue
		}

		treeID := rec.Tree.ID
		if canPut {
			if err := putter.PutTree(ctx, rec.Tree); err != nil {
				return res, fmt.Errorf("put tree %s: %w", treeID, err)
			}
		} else {
			created, err := store.CreateTree(ctx, rec.Tree.Title)
			if err != nil {
				return res, fmt.Errorf("create tree %q: %w", rec.Tree.Title, err)
			}
			treeID = created.ID
		}
		if err := store.SaveNodes(ctx, treeID, rec.Nodes); err != nil {
			return res, fmt.Errorf("save nodes of %s: %w", treeID, err)
		}
		res.Imported++
		logger.Debug("tree imported", "tree_id", treeID, "nodes", len(rec.Nodes))
	}
	return res, nil
}

// ImportFile imports the archive at path.
func ImportFile(ctx context.Context, store types.Store, path string, logger *slog.Logger) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return Import(ctx, store, f, logger)
}
