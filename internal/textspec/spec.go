// Package textspec tokenizes the freeform text formats entered in the
// admin panel: Steam ID lists and map layer lists. A spec is an ordered
// set of named patterns compiled into a single multiline alternation;
// tokens that match none of the expected patterns surface as MISMATCH
// nodes and are reported with their 1-based line number.
package textspec

import (
	"fmt"
	"iter"
	"regexp"
	"strings"
)

// Node kinds shared by the built-in specs.
const (
	KindSteamID          = "STEAMID"
	KindLayer            = "LAYER"
	KindComment          = "COMMENT"
	KindEmpty            = "EMPTY"
	KindNewline          = "NEWLINE"
	KindMismatch         = "MISMATCH"
	KindMismatchSpelling = "MISMATCH_SPELLING"
)

// Node is one token produced by a spec.
type Node struct {
	Kind  string
	Value string
}

// Pattern is one named alternative of a spec. Order matters: at a given
// position the first pattern that matches wins.
type Pattern struct {
	Name string
	Expr string
}

// Spec is a compiled token specification.
type Spec struct {
	re *regexp.Regexp
	// names[i] is the pattern name of capture group i.
	names []string
	// errors maps a node kind to its message template. Templates take
	// the offending value and the 1-based line number, in that order.
	errors map[string]string
}

// New compiles the patterns into a spec. Pattern expressions must not
// contain capture groups of their own.
func New(patterns []Pattern, errorMessages map[string]string) (*Spec, error) {
	alts := make([]string, len(patterns))
	for i, p := range patterns {
		alts[i] = fmt.Sprintf("(?P<%s>%s)", p.Name, p.Expr)
	}

	re, err := regexp.Compile("(?m)" + strings.Join(alts, "|"))
	if err != nil {
		return nil, fmt.Errorf("compile token spec: %w", err)
	}

	return &Spec{re: re, names: re.SubexpNames(), errors: errorMessages}, nil
}

// MustNew is New for package-level specs.
func MustNew(patterns []Pattern, errorMessages map[string]string) *Spec {
	s, err := New(patterns, errorMessages)
	if err != nil {
		panic(err)
	}
	return s
}

// Scan returns the token sequence for text. The sequence is finite,
// side-effect free and can be ranged over more than once.
func (s *Spec) Scan(text string) iter.Seq[Node] {
	return func(yield func(Node) bool) {
		for _, m := range s.re.FindAllStringSubmatchIndex(text, -1) {
			for g := 1; g < len(s.names); g++ {
				if m[2*g] < 0 {
					continue
				}
				if !yield(Node{Kind: s.names[g], Value: text[m[2*g]:m[2*g+1]]}) {
					return
				}
				break
			}
		}
	}
}

// Parse tokenizes text into a node slice.
func (s *Spec) Parse(text string) []Node {
	var nodes []Node
	for node := range s.Scan(text) {
		nodes = append(nodes, node)
	}
	return nodes
}

// CheckErrors walks the node sequence and returns one human-readable
// message per offending token. The line counter advances on NEWLINE
// nodes, so trailing content without a final newline still reports the
// current line.
func (s *Spec) CheckErrors(nodes []Node) []string {
	var errs []string
	line := 1
	for _, node := range nodes {
		if node.Kind == KindNewline {
			line++
			continue
		}
		if tmpl, ok := s.errors[node.Kind]; ok {
			errs = append(errs, fmt.Sprintf(tmpl, node.Value, line))
		}
	}
	return errs
}

// Values extracts the values of all nodes of the given kind, in order.
func Values(nodes []Node, kind string) []string {
	var out []string
	for _, node := range nodes {
		if node.Kind == kind {
			out = append(out, node.Value)
		}
	}
	return out
}

// SteamIDs tokenizes newline-delimited 17-digit Steam ID lists with
// "#" comments.
var SteamIDs = MustNew(
	[]Pattern{
		{KindEmpty, `[ \t]+`},
		{KindSteamID, `76\d{15}`},
		{KindComment, `#.*$`},
		{KindNewline, `\r\n|\r|\n`},
		{KindMismatch, `.+`},
	},
	map[string]string{
		KindMismatch: "unknown token %q at line %d",
	},
)

// Layers tokenizes newline-delimited map layer lists with "//" comments.
// Layer names must be anchored at the start of the line.
var Layers = MustNew(
	[]Pattern{
		{KindLayer, `^[A-Za-z0-9_]+`},
		{KindComment, `^ */.*$`},
		{KindEmpty, ` +`},
		{KindNewline, `\r\n|\r|\n`},
		{KindMismatchSpelling, `[A-Za-z0-9_]+`},
		{KindMismatch, `.+`},
	},
	map[string]string{
		KindMismatchSpelling: "layer name %q must start at the beginning of line %d",
		KindMismatch:         "unknown token %q at line %d",
	},
)
