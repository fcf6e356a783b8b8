package artifact

import (
	"fmt"
	"os"
	"strings"

	"github.com/HendryAvila/speckit/internal/fsutil"
)

// Status is the lifecycle state of an artifact.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusActive   Status = "active"
	StatusComplete Status = "complete"
	StatusArchived Status = "archived"
)

// Statuses lists every valid status in lifecycle order.
var Statuses = []Status{StatusDraft, StatusActive, StatusComplete, StatusArchived}

var statusRank = map[Status]int{
	StatusDraft:    0,
	StatusActive:   1,
	StatusComplete: 2,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// CanTransitionStatus reports whether an artifact may move from one status
// to another. Statuses only move forward (draft, active, complete); any
// status may be archived, and archived is terminal. Setting the current
// status again is a no-op and allowed.
func CanTransitionStatus(from, to Status) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	if from == StatusArchived {
		return false
	}
	if to == StatusArchived {
		return true
	}
	return statusRank[to] > statusRank[from]
}

// SetStatus rewrites the status line of the artifact at path. Everything
// else in the file, including unknown keys and comments, is preserved. The
// file is replaced atomically.
func SetStatus(path string, to Status) (from Status, err error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading artifact: %w", err)
	}
	fm, err := Parse(content)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", path, err)
	}
	if !CanTransitionStatus(fm.Status, to) {
		return fm.Status, fmt.Errorf("status cannot move from %s to %s", fm.Status, to)
	}

	field, _ := Scan(content).Get(KeyStatus)
	lines := strings.SplitAfter(string(content), "\n")
	idx := field.Line - 1
	ending := "\n"
	if strings.HasSuffix(lines[idx], "\r\n") {
		ending = "\r\n"
	} else if !strings.HasSuffix(lines[idx], "\n") {
		ending = ""
	}
	lines[idx] = KeyStatus + ": " + string(to) + ending

	info, err := os.Stat(path)
	if err != nil {
		return fm.Status, fmt.Errorf("stat artifact: %w", err)
	}
	if err := fsutil.WriteFileAtomic(path, []byte(strings.Join(lines, "")), info.Mode().Perm()); err != nil {
		return fm.Status, fmt.Errorf("writing artifact: %w", err)
	}
	return fm.Status, nil
}
