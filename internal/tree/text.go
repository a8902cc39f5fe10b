package tree

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/storytree/pkg/types"
)

// Split modes for FromText.
const (
	SplitParagraphs = "paragraphs"
	SplitSentences  = "sentences"
	SplitNone       = "none"
)

// DefaultTextTitle is the root question of a tree built from text without a
// title.
const DefaultTextTitle = "Imported Story"

var (
	lineBreaks  = regexp.MustCompile(`\n\s*\n|\n`)
	sentenceEnd = regexp.MustCompile(`[.!?]+`)
)

// TextOptions control how FromText splits text. A non-empty Separator wins
// over Split. An empty Split means paragraphs.
type TextOptions struct {
	Title     string
	Split     string
	Separator string
}

// Segments splits text into trimmed, non-empty pieces.
func Segments(text string, opts TextOptions) []string {
	if strings.TrimSpace(text) == "" {
		return []string{}
	}

	var parts []string
	switch {
	case opts.Separator != "":
		parts = strings.Split(text, opts.Separator)
	case opts.Split == SplitSentences:
		parts = sentenceEnd.Split(text, -1)
	case opts.Split == SplitNone:
		parts = []string{text}
	default:
		parts = lineBreaks.Split(text, -1)
	}

	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}

// TextPreview summarizes what FromText would build.
type TextPreview struct {
	Segments  []string `json:"segments"`
	NodeCount int      `json:"nodeCount"`
	Text      string   `json:"previewText"`
}

// PreviewText returns the segments of text, the node count including the
// root, and a numbered excerpt of the first three segments.
func PreviewText(text string, opts TextOptions) TextPreview {
	segments := Segments(text, opts)
	if len(segments) == 0 {
		return TextPreview{Segments: segments}
	}

	lines := make([]string, 0, 3)
	for i, seg := range segments {
		if i == 3 {
			break
		}
		if r := []rune(seg); len(r) > 100 {
			seg = string(r[:100]) + "..."
		}
		lines = append(lines, strconv.Itoa(i+1)+". "+seg)
	}
	return TextPreview{
		Segments:  segments,
		NodeCount: len(segments) + 1,
		Text:      strings.Join(lines, "\n"),
	}
}

// FromText builds a node set from text: a root whose question is the title,
// then one answer node per segment, each the child of the one before. Empty
// text yields no nodes.
func FromText(text string, opts TextOptions) ([]types.TreeNode, error) {
	return fromText(text, opts, newNodeID)
}

func fromText(text string, opts TextOptions, newID func() (string, error)) ([]types.TreeNode, error) {
	segments := Segments(text, opts)
	if len(segments) == 0 {
		return []types.TreeNode{}, nil
	}

	title := opts.Title
	if title == "" {
		title = DefaultTextTitle
	}
	nodes := make([]types.TreeNode, 0, len(segments)+1)
	nodes = append(nodes, types.TreeNode{ID: types.RootID, Question: title})

	parent := types.RootID
	for _, seg := range segments {
		id, err := newID()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, types.TreeNode{ID: id, Answer: seg, ParentID: parent})
		parent = id
	}
	return nodes, nil
}

// ImportText creates a tree titled opts.Title and fills it with the nodes
// FromText builds. Text with no segments leaves the tree empty.
func (s *Service) ImportText(ctx context.Context, text string, opts TextOptions) (types.TreeData, []types.TreeNode, error) {
	if opts.Title == "" {
		opts.Title = DefaultTextTitle
	}
	nodes, err := fromText(text, opts, s.newID)
	if err != nil {
		return types.TreeData{}, nil, err
	}

	tree, err := s.CreateTree(ctx, opts.Title, "")
	if err != nil {
		return types.TreeData{}, nil, err
	}
	if len(nodes) == 0 {
		return tree, nodes, nil
	}
	added, err := s.AddNodes(ctx, tree.ID, nodes)
	if err != nil {
		return types.TreeData{}, nil, err
	}
	s.logger.Info("tree built from text", "tree_id", tree.ID, "segments", len(added)-1)
	return tree, added, nil
}
