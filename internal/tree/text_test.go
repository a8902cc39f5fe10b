package tree

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/storytree/pkg/types"
)

func TestSegments(t *testing.T) {
	tests := []struct {
		name string
		text string
		opts TextOptions
		want []string
	}{
		{
			name: "paragraphs by default",
			text: "First line.\n\n  Second para.\nThird line.\n",
			want: []string{"First line.", "Second para.", "Third line."},
		},
		{
			name: "sentences",
			text: "It rained. Who knew?! Nobody...",
			opts: TextOptions{Split: SplitSentences},
			want: []string{"It rained", "Who knew", "Nobody"},
		},
		{
			name: "custom separator wins over mode",
			text: "one --- two\n three ---",
			opts: TextOptions{Split: SplitSentences, Separator: "---"},
			want: []string{"one", "two\n three"},
		},
		{
			name: "no split",
			text: "  all\n\nof it  ",
			opts: TextOptions{Split: SplitNone},
			want: []string{"all\n\nof it"},
		},
		{
			name: "blank text",
			text: " \n\t ",
			want: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Segments(tt.text, tt.opts))
		})
	}
}

func sequentialIDs() func() (string, error) {
	n := 0
	return func() (string, error) {
		n++
		return fmt.Sprintf("seg-%d", n), nil
	}
}

func TestFromText_Chain(t *testing.T) {
	nodes, err := fromText("Once.\nTwice.\nThrice.", TextOptions{Title: "Story"}, sequentialIDs())
	require.NoError(t, err)

	want := []types.TreeNode{
		{ID: types.RootID, Question: "Story"},
		{ID: "seg-1", Answer: "Once.", ParentID: types.RootID},
		{ID: "seg-2", Answer: "Twice.", ParentID: "seg-1"},
		{ID: "seg-3", Answer: "Thrice.", ParentID: "seg-2"},
	}
	assert.Equal(t, want, nodes)
	assert.True(t, Validate(nodes).Valid)
}

func TestFromText_DefaultsAndEmpty(t *testing.T) {
	nodes, err := FromText("Only one.", TextOptions{})
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, DefaultTextTitle, nodes[0].Question)
	assert.NotEmpty(t, nodes[1].ID)

	nodes, err = FromText("   ", TextOptions{Title: "Nothing"})
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestPreviewText(t *testing.T) {
	long := strings.Repeat("x", 120)
	p := PreviewText("a\nb\n"+long+"\nd", TextOptions{})
	assert.Equal(t, 5, p.NodeCount)
	assert.Len(t, p.Segments, 4)
	assert.Equal(t, "1. a\n2. b\n3. "+strings.Repeat("x", 100)+"...", p.Text)

	empty := PreviewText("", TextOptions{})
	assert.Zero(t, empty.NodeCount)
	assert.Empty(t, empty.Text)
}

func TestImportText(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	tree, nodes, err := f.svc.ImportText(ctx, "The door opened.\n\nA cat walked in.", TextOptions{Title: "Door"})
	require.NoError(t, err)
	assert.Equal(t, "Door", tree.Title)
	require.Len(t, nodes, 3)

	stored, err := f.svc.GetNodes(ctx, tree.ID)
	require.NoError(t, err)
	assert.Equal(t, nodes, stored)

	thread, err := f.svc.BuildStoryThread(ctx, tree.ID, nodes[2].ID)
	require.NoError(t, err)
	assert.Equal(t, "The door opened.\n\nA cat walked in.", thread)

	empty, none, err := f.svc.ImportText(ctx, "", TextOptions{})
	require.NoError(t, err)
	assert.Equal(t, DefaultTextTitle, empty.Title)
	assert.Empty(t, none)
	stored, err = f.svc.GetNodes(ctx, empty.ID)
	require.NoError(t, err)
	assert.Empty(t, stored)
}
