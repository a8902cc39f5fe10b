package cleanup

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mesh-intelligence/storytree/internal/local"
)

// Summary describes what the local store currently holds.
type Summary struct {
	TotalItems        int `json:"totalItems"`
	TreeDataCount     int `json:"treeDataCount"`
	DraftCount        int `json:"draftCount"`
	StoryCount        int `json:"storyCount"`
	TreeMetadataCount int `json:"treeMetadataCount"`
}

// Summary counts records. Lists that cannot be decoded count as empty.
func (s *Scrubber) Summary(ctx context.Context) (Summary, error) {
	if err := ctx.Err(); err != nil {
		return Summary{}, err
	}
	keys, err := s.kv.Keys("")
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{TotalItems: len(keys)}
	for _, k := range keys {
		if strings.HasPrefix(k, local.NodesPrefix) {
			sum.TreeDataCount++
		}
	}
	sum.DraftCount = s.listLen(StoryDraftsKey)
	sum.StoryCount = s.listLen(GeneratedStoriesKey)
	sum.TreeMetadataCount = s.listLen(local.TreesKey)
	return sum, nil
}

func (s *Scrubber) listLen(key string) int {
	data, ok, err := s.kv.Get(key)
	if err != nil || !ok {
		return 0
	}
	var entries []json.RawMessage
	if json.Unmarshal(data, &entries) != nil {
		return 0
	}
	return len(entries)
}
