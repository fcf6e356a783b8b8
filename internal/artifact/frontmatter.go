// Package artifact reads and writes the metadata block at the top of a
// feature artifact (spec.md, plan.md, tasks.md and friends).
//
// The block is a restricted line format, not full YAML:
//
//	---
//	feature_id: 1
//	created: 2026-01-31
//	status: draft
//	---
//
// Scan is the single reader for that format. The frontmatter checker and
// the script validators interpret it identically, so any change here must
// be mirrored in the bundled validate-frontmatter scripts.
package artifact

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Delimiter opens and closes a frontmatter block.
const Delimiter = "---"

// Field names.
const (
	KeyFeatureID  = "feature_id"
	KeyCreated    = "created"
	KeyStatus     = "status"
	KeyParentSpec = "parent_spec"
	KeyVersion    = "version"
	KeyBranch     = "branch"
)

// DateLayout is the only accepted form of the created field.
const DateLayout = "2006-01-02"

// Value shapes, shared with the frontmatter checker.
var (
	KeyValuePattern = regexp.MustCompile(`^([a-z_]+):(.*)$`)
	FeatureIDFormat = regexp.MustCompile(`^[0-9]{1,9}$`)
	DateFormat      = regexp.MustCompile(`^[0-9]{4}-[0-9]{2}-[0-9]{2}$`)
)

// blankSet is the whitespace trimmed from values; it matches the POSIX
// [:space:] class in the C locale.
const blankSet = " \t\n\v\f\r"

// Field is one recorded key with the 1-based line it was read from.
type Field struct {
	Value string
	Line  int
}

// Block is the raw result of scanning a file's leading metadata.
type Block struct {
	// Present is false when line 1 is not the opening delimiter.
	Present bool
	// Closed is true when a closing delimiter was found.
	Closed bool
	// Fields holds the first non-empty value seen for each key.
	Fields map[string]Field
	// Unrecognised lists line numbers that were neither blank, comment
	// nor key: value.
	Unrecognised []int
	// End is the line number of the closing delimiter, 0 when not closed.
	End int
}

// Get returns a field value and whether it was set.
func (b *Block) Get(key string) (Field, bool) {
	f, ok := b.Fields[key]
	return f, ok
}

// Scan reads the leading block of content.
func Scan(content []byte) *Block {
	b := &Block{Fields: make(map[string]Field)}
	lines := splitLines(content)
	if len(lines) == 0 || lines[0] != Delimiter {
		return b
	}
	b.Present = true

	for i := 1; i < len(lines); i++ {
		n := i + 1
		line := lines[i]
		if line == Delimiter {
			b.Closed = true
			b.End = n
			return b
		}
		trimmed := strings.Trim(line, blankSet)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		m := KeyValuePattern.FindStringSubmatch(line)
		if m == nil {
			b.Unrecognised = append(b.Unrecognised, n)
			continue
		}
		value := unquote(strings.Trim(m[2], blankSet))
		if value == "" {
			continue
		}
		if _, seen := b.Fields[m[1]]; !seen {
			b.Fields[m[1]] = Field{Value: value, Line: n}
		}
	}
	return b
}

// splitLines splits on \n, drops one trailing \r per line and does not
// report an empty final line after a terminating newline.
func splitLines(content []byte) []string {
	if len(content) == 0 {
		return nil
	}
	raw := strings.Split(string(content), "\n")
	if raw[len(raw)-1] == "" {
		raw = raw[:len(raw)-1]
	}
	for i, l := range raw {
		raw[i] = strings.TrimSuffix(l, "\r")
	}
	return raw
}

func unquote(v string) string {
	if len(v) >= 2 {
		first, last := v[0], v[len(v)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

// --- Typed frontmatter ---

// Frontmatter is the typed view of a block.
type Frontmatter struct {
	FeatureID  int
	Created    time.Time
	Status     Status
	ParentSpec string
	Version    string
	Branch     string
}

// Parse decodes the leading block of content. Missing or malformed
// required fields are errors; optional ones are left empty.
func Parse(content []byte) (*Frontmatter, error) {
	b := Scan(content)
	if !b.Present {
		return nil, fmt.Errorf("missing frontmatter block")
	}
	if !b.Closed {
		return nil, fmt.Errorf("unterminated frontmatter block")
	}

	fm := &Frontmatter{}

	id, ok := b.Get(KeyFeatureID)
	if !ok {
		return nil, fmt.Errorf("missing %s", KeyFeatureID)
	}
	if !FeatureIDFormat.MatchString(id.Value) {
		return nil, fmt.Errorf("line %d: %s %q is not an integer", id.Line, KeyFeatureID, id.Value)
	}
	fm.FeatureID, _ = strconv.Atoi(id.Value)

	created, ok := b.Get(KeyCreated)
	if !ok {
		return nil, fmt.Errorf("missing %s", KeyCreated)
	}
	t, err := time.Parse(DateLayout, created.Value)
	if err != nil || !DateFormat.MatchString(created.Value) {
		return nil, fmt.Errorf("line %d: %s %q is not a YYYY-MM-DD date", created.Line, KeyCreated, created.Value)
	}
	fm.Created = t

	status, ok := b.Get(KeyStatus)
	if !ok {
		return nil, fmt.Errorf("missing %s", KeyStatus)
	}
	fm.Status = Status(status.Value)
	if !fm.Status.Valid() {
		return nil, fmt.Errorf("line %d: unknown %s %q", status.Line, KeyStatus, status.Value)
	}

	if f, ok := b.Get(KeyParentSpec); ok {
		fm.ParentSpec = f.Value
	}
	if f, ok := b.Get(KeyVersion); ok {
		fm.Version = f.Value
	}
	if f, ok := b.Get(KeyBranch); ok {
		fm.Branch = f.Value
	}
	return fm, nil
}

// Marshal renders fm as a block including both delimiters. Field order is
// fixed so output is stable.
func Marshal(fm *Frontmatter) []byte {
	var buf bytes.Buffer
	buf.WriteString(Delimiter + "\n")
	fmt.Fprintf(&buf, "%s: %d\n", KeyFeatureID, fm.FeatureID)
	fmt.Fprintf(&buf, "%s: %s\n", KeyCreated, fm.Created.Format(DateLayout))
	fmt.Fprintf(&buf, "%s: %s\n", KeyStatus, fm.Status)
	if fm.ParentSpec != "" {
		fmt.Fprintf(&buf, "%s: %s\n", KeyParentSpec, fm.ParentSpec)
	}
	if fm.Version != "" {
		fmt.Fprintf(&buf, "%s: %s\n", KeyVersion, fm.Version)
	}
	if fm.Branch != "" {
		fmt.Fprintf(&buf, "%s: %s\n", KeyBranch, fm.Branch)
	}
	buf.WriteString(Delimiter + "\n")
	return buf.Bytes()
}
