// Package cleanup repairs or discards malformed records left in the local
// store by earlier schema versions. It works on the raw key-value layer,
// independent of the tree service, and is never needed for correctness.
package cleanup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/storytree/internal/local"
	"github.com/mesh-intelligence/storytree/pkg/types"
)

// Auxiliary record keys normalized by the scrubber.
const (
	StoryDraftsKey      = "story-drafts"
	GeneratedStoriesKey = "generated-stories"
	DraftsKey           = "drafts"
)

// Default titles filled into records that lack one.
const (
	DefaultTitle     = "Untitled"
	DefaultTreeTitle = "Untitled Tree"
)

// Report counts what one run changed. Failures are records that could not
// be read or written; they are logged and skipped.
type Report struct {
	TreeRecords     int            `json:"treeRecords"`
	NodesCleaned    int            `json:"nodesCleaned"`
	ElementsDropped int            `json:"elementsDropped"`
	RecordsRemoved  int            `json:"recordsRemoved"`
	MetadataKept    int            `json:"metadataKept"`
	MetadataRemoved int            `json:"metadataRemoved"`
	Auxiliary       map[string]Aux `json:"auxiliary"`
	Failures        int            `json:"failures"`
}

// Aux counts the entries of one auxiliary list after normalization.
type Aux struct {
	Kept    int `json:"kept"`
	Dropped int `json:"dropped"`
}

// Scrubber runs the cleanup passes over a local.KV.
type Scrubber struct {
	kv     local.KV
	logger *slog.Logger
	now    func() time.Time

	once   sync.Once
	mu     sync.Mutex
	report Report
}

// New returns a Scrubber over kv. A nil logger discards logs.
func New(kv local.KV, logger *slog.Logger) *Scrubber {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scrubber{
		kv:     kv,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// RunOnce runs the cleanup the first time it is called on this Scrubber and
// returns the same report on later calls. ran is true only for the call that
// did the work.
func (s *Scrubber) RunOnce(ctx context.Context) (rep Report, ran bool, err error) {
	s.once.Do(func() {
		rep, err = s.Run(ctx)
		ran = true
	})
	if !ran {
		return s.lastReport(), false, nil
	}
	return rep, true, err
}

func (s *Scrubber) lastReport() Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}

// Run performs every pass in order: strip unknown node fields, remove
// unusable tree records, prune orphaned metadata, and normalize auxiliary
// lists. Only a failure to enumerate keys or a canceled ctx is returned as an
// error.
func (s *Scrubber) Run(ctx context.Context) (Report, error) {
	rep := Report{Auxiliary: make(map[string]Aux)}
	s.logger.Info("starting local data cleanup")

	if err := s.stripNodeFields(ctx, &rep); err != nil {
		return rep, err
	}
	if err := s.removeInvalidTrees(ctx, &rep); err != nil {
		return rep, err
	}
	if err := s.pruneMetadata(ctx, &rep); err != nil {
		return rep, err
	}
	if err := ctx.Err(); err != nil {
		return rep, err
	}
	s.normalizeAuxiliary(&rep)

	s.mu.Lock()
	s.report = rep
	s.mu.Unlock()

	s.logger.Info("local data cleanup completed",
		"tree_records", rep.TreeRecords,
		"records_removed", rep.RecordsRemoved,
		"metadata_removed", rep.MetadataRemoved,
		"failures", rep.Failures)
	return rep, nil
}

// stripNodeFields rewrites every node record so that each node carries only
// id, question, answer, and parentId. Elements that are not node objects or
// have no ID are dropped. Records run concurrently; each is independent.
func (s *Scrubber) stripNodeFields(ctx context.Context, rep *Report) error {
	keys, err := s.kv.Keys(local.NodesPrefix)
	if err != nil {
		return fmt.Errorf("list node records: %w", err)
	}
	rep.TreeRecords = len(keys)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, key := range keys {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cleaned, dropped, err := s.stripRecord(key)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				rep.Failures++
				s.logger.Warn("skipping node record", "key", key, "error", err)
				return nil
			}
			rep.NodesCleaned += cleaned
			rep.ElementsDropped += dropped
			return nil
		})
	}
	return g.Wait()
}

func (s *Scrubber) stripRecord(key string) (cleaned, dropped int, err error) {
	data, ok, err := s.kv.Get(key)
	if err != nil || !ok || len(data) == 0 {
		return 0, 0, err
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		// Not an array; removeInvalidTrees discards it.
		return 0, 0, nil
	}

	nodes := make([]types.TreeNode, 0, len(elems))
	for _, e := range elems {
		var n types.TreeNode
		if err := json.Unmarshal(e, &n); err != nil || n.ID == "" {
			dropped++
			continue
		}
		nodes = append(nodes, n)
	}
	out, err := json.Marshal(nodes)
	if err != nil {
		return 0, 0, err
	}
	if err := s.kv.Put(key, out); err != nil {
		return 0, 0, err
	}
	return len(nodes), dropped, nil
}

// removeInvalidTrees deletes node records that are empty, not an array, or
// hold no node with an ID and a question or answer.
func (s *Scrubber) removeInvalidTrees(ctx context.Context, rep *Report) error {
	keys, err := s.kv.Keys(local.NodesPrefix)
	if err != nil {
		return fmt.Errorf("list node records: %w", err)
	}
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, ok, err := s.kv.Get(key)
		if err != nil {
			rep.Failures++
			s.logger.Warn("skipping node record", "key", key, "error", err)
			continue
		}
		if !ok {
			continue
		}
		reason := invalidReason(data)
		if reason == "" {
			continue
		}
		if err := s.kv.Delete(key); err != nil {
			rep.Failures++
			s.logger.Warn("removing node record", "key", key, "error", err)
			continue
		}
		rep.RecordsRemoved++
		s.logger.Info("removed tree data", "key", key, "reason", reason)
	}
	return nil
}

// invalidReason explains why a node record is unusable, or returns "".
func invalidReason(data []byte) string {
	if len(data) == 0 {
		return "empty"
	}
	var nodes []types.TreeNode
	if err := json.Unmarshal(data, &nodes); err != nil {
		return "not a node array"
	}
	if len(nodes) == 0 {
		return "no nodes"
	}
	for _, n := range nodes {
		if n.ID != "" && n.HasContent() {
			return ""
		}
	}
	return "no node with content"
}

// legacyTree accepts metadata written by any earlier version. Timestamps are
// kept as strings so one bad value does not fail the whole list.
type legacyTree struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	CreatedAt    string `json:"createdAt"`
	LastModified string `json:"lastModified"`
}

// pruneMetadata drops metadata entries whose node record is gone and fills
// default titles and timestamps on the rest.
func (s *Scrubber) pruneMetadata(ctx context.Context, rep *Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, ok, err := s.kv.Get(local.TreesKey)
	if err != nil {
		rep.Failures++
		s.logger.Warn("reading tree metadata", "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		rep.Failures++
		s.logger.Warn("tree metadata is not a list", "error", err)
		return nil
	}

	keys, err := s.kv.Keys(local.NodesPrefix)
	if err != nil {
		return fmt.Errorf("list node records: %w", err)
	}
	present := make(map[string]bool, len(keys))
	for _, k := range keys {
		if id, ok := local.TreeIDFromKey(k); ok {
			present[id] = true
		}
	}

	now := s.now()
	kept := make([]types.TreeData, 0, len(entries))
	for _, e := range entries {
		var lt legacyTree
		if err := json.Unmarshal(e, &lt); err != nil || lt.ID == "" || !present[lt.ID] {
			rep.MetadataRemoved++
			s.logger.Info("removing orphaned tree metadata", "tree_id", lt.ID)
			continue
		}
		created := parseTime(lt.CreatedAt, now)
		tree := types.TreeData{
			ID:           lt.ID,
			Title:        orDefault(lt.Title, DefaultTreeTitle),
			CreatedAt:    created,
			LastModified: parseTime(lt.LastModified, created),
		}
		kept = append(kept, tree)
	}
	rep.MetadataKept = len(kept)

	out, err := json.Marshal(kept)
	if err != nil {
		return fmt.Errorf("encode tree metadata: %w", err)
	}
	if err := s.kv.Put(local.TreesKey, out); err != nil {
		rep.Failures++
		s.logger.Warn("writing tree metadata", "error", err)
	}
	return nil
}

func parseTime(v string, fallback time.Time) time.Time {
	if v == "" {
		return fallback
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return fallback
	}
	return t
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
