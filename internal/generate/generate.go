// Package generate is the boundary to the content-generation collaborator.
// A Generator turns a question and the conversational context of a tree path
// into candidate answers; the tree service attaches them as child nodes.
package generate

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ContinuePrompt is the question sent when the node being extended carries
// no question of its own.
const ContinuePrompt = "Continue this story with creative and engaging narrative. " +
	"Develop the plot further, introduce new elements, conflicts, or character development. " +
	"Write naturally flowing prose that builds upon what came before."

// Length selects how long each generated answer should be.
type Length string

// Supported lengths.
const (
	LengthShort  Length = "short"
	LengthMedium Length = "medium"
	LengthLong   Length = "long"
)

// ErrNoAnswers reports a generator response with no usable content.
var ErrNoAnswers = errors.New("generator returned no answers")

// Request is one generation call.
type Request struct {
	Question string
	Context  string
	Count    int
	Length   Length

	// Language is an ISO 639-1 code. Empty or "en" means English.
	Language string
}

// Generator produces up to Count answers for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) ([]string, error)
}

// lengthProfile holds the token budget and style hint for one answer.
type lengthProfile struct {
	tokens int
	hint   string
}

var lengths = map[Length]lengthProfile{
	LengthShort:  {tokens: 50, hint: "Keep responses very brief and concise (1-2 sentences)."},
	LengthMedium: {tokens: 150, hint: "Keep responses concise and engaging (2-4 sentences)."},
	LengthLong:   {tokens: 300, hint: "Provide detailed and elaborate responses (4-8 sentences)."},
}

func (l Length) profile() lengthProfile {
	if s, ok := lengths[l]; ok {
		return s
	}
	return lengths[LengthMedium]
}

// Normalize fills defaults and rejects requests that cannot be served.
func (r Request) Normalize() (Request, error) {
	if r.Count < 1 {
		return r, fmt.Errorf("answer count must be positive, got %d", r.Count)
	}
	if strings.TrimSpace(r.Question) == "" {
		r.Question = ContinuePrompt
	}
	if _, ok := lengths[r.Length]; !ok {
		r.Length = LengthMedium
	}
	return r, nil
}

// SystemPrompt returns the instruction message for r.
func SystemPrompt(r Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are helping to create an interactive story tree. Generate %d different, creative responses to continue the story. ", r.Count)
	b.WriteString("Each response should explore a different direction, tone, or perspective. ")
	b.WriteString(r.Length.profile().hint)
	if strings.Contains(strings.ToLower(r.Question), "continue") {
		b.WriteString(" When continuing a story, write substantial narrative content with vivid details, dialogue, and plot development.")
	}
	b.WriteString(" Format your response as a numbered list (1., 2., 3., etc.).")
	if name, ok := languageNames[r.Language]; ok && r.Language != "en" {
		fmt.Fprintf(&b, " Always respond in %s.", name)
	}
	return b.String()
}

// UserPrompt returns the user message for r: the question, preceded by the
// path context when there is one.
func UserPrompt(r Request) string {
	if r.Context == "" {
		return r.Question
	}
	return "Context: " + r.Context + "\n\nQuestion: " + r.Question
}

var listMarker = regexp.MustCompile(`(?m)^\s*\d+\.\s*`)

// SplitNumbered splits a numbered-list response into its items. Text without
// list markers is returned as a single item.
func SplitNumbered(content string) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	var out []string
	for _, part := range listMarker.Split(content, -1) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return []string{content}
	}
	return out
}

var languageNames = map[string]string{
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"it": "Italian",
	"pt": "Portuguese",
	"ru": "Russian",
	"ja": "Japanese",
	"ko": "Korean",
	"zh": "Chinese",
	"ar": "Arabic",
	"hi": "Hindi",
	"nl": "Dutch",
	"pl": "Polish",
	"tr": "Turkish",
	"uk": "Ukrainian",
}
