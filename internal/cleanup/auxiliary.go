package cleanup

import (
	"encoding/json"
	"time"
)

// StoryDraft is a story assembled from a tree path.
type StoryDraft struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
	NodeID    string `json:"nodeId,omitempty"`
}

// GeneratedStory is a generated rewrite of a draft.
type GeneratedStory struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Content         string `json:"content"`
	Prompt          string `json:"prompt"`
	OriginalDraftID string `json:"originalDraftId,omitempty"`
	CreatedAt       string `json:"createdAt"`
}

// Draft is a free-form draft saved from a node group.
type Draft struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// normalizeAuxiliary fills defaults in the auxiliary lists and drops entries
// without an ID or content.
func (s *Scrubber) normalizeAuxiliary(rep *Report) {
	stamp := s.now().Format(time.RFC3339Nano)

	s.normalizeList(rep, StoryDraftsKey, func(e json.RawMessage) (any, bool) {
		var d StoryDraft
		if json.Unmarshal(e, &d) != nil || d.ID == "" || d.Content == "" {
			return nil, false
		}
		d.Title = orDefault(d.Title, DefaultTitle)
		d.CreatedAt = orDefault(d.CreatedAt, stamp)
		return d, true
	})

	s.normalizeList(rep, GeneratedStoriesKey, func(e json.RawMessage) (any, bool) {
		var g GeneratedStory
		if json.Unmarshal(e, &g) != nil || g.ID == "" || g.Content == "" {
			return nil, false
		}
		g.Title = orDefault(g.Title, DefaultTitle)
		g.CreatedAt = orDefault(g.CreatedAt, stamp)
		return g, true
	})

	s.normalizeList(rep, DraftsKey, func(e json.RawMessage) (any, bool) {
		var d Draft
		if json.Unmarshal(e, &d) != nil || d.ID == "" || d.Content == "" {
			return nil, false
		}
		d.Title = orDefault(d.Title, DefaultTitle)
		d.Timestamp = orDefault(d.Timestamp, stamp)
		return d, true
	})
}

// normalizeList rewrites the list under key through fn. Records that are
// missing or not lists are left alone.
func (s *Scrubber) normalizeList(rep *Report, key string, fn func(json.RawMessage) (any, bool)) {
	data, ok, err := s.kv.Get(key)
	if err != nil {
		rep.Failures++
		s.logger.Warn("reading auxiliary list", "key", key, "error", err)
		return
	}
	if !ok {
		return
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		rep.Failures++
		s.logger.Warn("auxiliary record is not a list", "key", key, "error", err)
		return
	}

	kept := make([]any, 0, len(entries))
	for _, e := range entries {
		if v, ok := fn(e); ok {
			kept = append(kept, v)
		}
	}
	out, err := json.Marshal(kept)
	if err != nil {
		rep.Failures++
		return
	}
	if err := s.kv.Put(key, out); err != nil {
		rep.Failures++
		s.logger.Warn("writing auxiliary list", "key", key, "error", err)
		return
	}
	rep.Auxiliary[key] = Aux{Kept: len(kept), Dropped: len(entries) - len(kept)}
	s.logger.Debug("normalized auxiliary list", "key", key, "kept", len(kept))
}
