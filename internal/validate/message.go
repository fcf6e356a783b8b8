// Package validate checks a project's layout, file naming and artifact
// metadata.
//
// Each checker has several implementations ("backends"): the in-process
// Go backend and one script per shell family shipped in the template
// bundle. Every backend reports findings through the same line grammar,
//
//	[LEVEL] path[:line] - message (suggestion: text)
//
// where the location and suggestion parts are optional. Backends must
// produce identical lines for identical input; the parity tests enforce it.
package validate

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Level is the severity of a finding.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Message is one reported finding.
type Message struct {
	Level      Level  `json:"level" yaml:"level"`
	File       string `json:"file,omitempty" yaml:"file,omitempty"`
	Line       int    `json:"line,omitempty" yaml:"line,omitempty"`
	Text       string `json:"message" yaml:"message"`
	Suggestion string `json:"suggestion,omitempty" yaml:"suggestion,omitempty"`
}

// locationSep separates the location from the message text. Message texts
// never contain it, so a location may: the last separator wins.
const locationSep = " - "

const suggestionOpen = " (suggestion: "

var (
	levelPattern = regexp.MustCompile(`^\[(INFO|WARN|ERROR)\] `)
	linePattern  = regexp.MustCompile(`^(.+):([0-9]+)$`)
)

// String renders m in the shared line grammar.
func (m Message) String() string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(string(m.Level))
	b.WriteString("] ")
	if m.File != "" {
		b.WriteString(m.File)
		if m.Line > 0 {
			b.WriteString(":")
			b.WriteString(strconv.Itoa(m.Line))
		}
		b.WriteString(locationSep)
	}
	b.WriteString(m.Text)
	if m.Suggestion != "" {
		b.WriteString(" (suggestion: ")
		b.WriteString(m.Suggestion)
		b.WriteString(")")
	}
	return b.String()
}

// ParseMessage is the inverse of Message.String.
func ParseMessage(line string) (Message, error) {
	head := levelPattern.FindStringSubmatch(line)
	if head == nil {
		return Message{}, fmt.Errorf("malformed validation line %q", line)
	}
	msg := Message{Level: Level(head[1])}
	rest := line[len(head[0]):]

	if i := strings.Index(rest, suggestionOpen); i >= 0 && strings.HasSuffix(rest, ")") {
		msg.Suggestion = rest[i+len(suggestionOpen) : len(rest)-1]
		rest = rest[:i]
	}

	loc, text, found := cutLast(rest, locationSep)
	if !found || loc == "" {
		msg.Text = rest
		return msg, nil
	}
	msg.File, msg.Text = loc, text
	if m := linePattern.FindStringSubmatch(loc); m != nil {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return Message{}, fmt.Errorf("line number in %q: %w", line, err)
		}
		msg.File, msg.Line = m[1], n
	}
	return msg, nil
}

// cutLast is strings.Cut around the last occurrence of sep.
func cutLast(s, sep string) (before, after string, found bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}

// ParseOutput parses every non-empty line of a backend's stdout.
func ParseOutput(out string) ([]Message, error) {
	var msgs []Message
	sc := bufio.NewScanner(strings.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		msg, err := ParseMessage(line)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading validator output: %w", err)
	}
	return msgs, nil
}

// FormatLines renders messages one per line with a trailing newline.
func FormatLines(msgs []Message) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(m.String())
		b.WriteByte('\n')
	}
	return b.String()
}
