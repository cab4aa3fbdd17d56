package vizspec

import (
	"regexp"
	"strings"
)

// fencePattern matches a ```json block: the opening fence line (tag is
// case-insensitive) and a closing ``` that starts its own line. The body is
// matched lazily so the first closing fence ends the block.
var fencePattern = regexp.MustCompile("(?is)```json[ \\t]*\\r?\\n(.*?)\\r?\\n[ \\t]*```")

// Block is a fenced block located in a text.
type Block struct {
	// Body is the text between the fences.
	Body string
	// Start and End delimit the whole block, fences included, as byte offsets.
	Start, End int
}

// FindFencedBlock returns the first ```json fenced block in text.
func FindFencedBlock(text string) (Block, bool) {
	m := fencePattern.FindStringSubmatchIndex(text)
	if m == nil {
		return Block{}, false
	}
	return Block{Body: text[m[2]:m[3]], Start: m[0], End: m[1]}, true
}

// Result is the outcome of extracting a visualization from a response.
type Result struct {
	// Prose is the text to display. It is the original text unchanged when no
	// valid spec was found.
	Prose string `json:"prose"`
	// Spec is nil when the text carries no usable visualization.
	Spec *Spec `json:"visualization,omitempty"`
	// Invalid is set when a fenced block was found but rejected.
	Invalid error `json:"-"`
}

// Extract splits a generated response into prose and an optional
// visualization. It never fails: a missing, undecodable or shape-invalid
// block leaves the whole text as prose.
func Extract(text string) Result {
	block, ok := FindFencedBlock(text)
	if !ok {
		return Result{Prose: text}
	}
	spec, err := Decode([]byte(block.Body))
	if err != nil {
		return Result{Prose: text, Invalid: err}
	}
	prose := text[:block.Start] + text[block.End:]
	return Result{Prose: strings.TrimSpace(prose), Spec: spec}
}
