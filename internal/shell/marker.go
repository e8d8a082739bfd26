package shell

import (
	"fmt"
	"strings"
)

// Sentinel tokens injected into the command stream. The shell echoes them
// back on stdout, which is how command completion and directory changes are
// detected without a TTY. Chosen to never collide with ordinary output.
const (
	// EndOfCommandMarker is appended to every dispatched command; its
	// arrival on stdout means the command has finished.
	EndOfCommandMarker = "---EOC_MARKER---"

	// CwdMarker is emitted twice around a pwd call for directory-change
	// commands; the path between the pair is the new working directory.
	CwdMarker = "---CWD_MARKER---"
)

// IsChdir reports whether a command line is a directory-change instruction
// and therefore needs the cwd-capturing wrapper.
func IsChdir(command string) bool {
	trimmed := strings.TrimSpace(command)
	return trimmed == "cd" || strings.HasPrefix(trimmed, "cd ")
}

// WrapCommand wraps a command line with the marker suffix appropriate for
// its kind and a trailing newline, ready to write into the shell's stdin.
func WrapCommand(command string) string {
	if IsChdir(command) {
		return fmt.Sprintf("%s && echo %s && pwd && echo %s && echo %s\n",
			command, CwdMarker, CwdMarker, EndOfCommandMarker)
	}
	return fmt.Sprintf("%s ; echo %s\n", command, EndOfCommandMarker)
}

// scanResult is what one Feed call produced.
type scanResult struct {
	Text string // output safe to append, marker text stripped
	Cwd  string // new working directory, empty if no complete pair was seen
	Done bool   // end-of-command marker observed
}

// markerScanner locates sentinel markers inside arbitrary byte chunks.
// A marker may arrive split across reads, so the scanner withholds any
// trailing bytes that could still grow into a marker (or that belong to an
// unpaired cwd marker) until a later chunk resolves them.
type markerScanner struct {
	pending string
}

// Feed consumes one decoded chunk and returns the text that is safe to
// surface. After Done the scanner is reset; bytes following the end marker
// in the same chunk are discarded, matching the shell convention that
// nothing meaningful trails the completion echo.
func (s *markerScanner) Feed(chunk string) scanResult {
	s.pending += chunk

	if idx := strings.Index(s.pending, EndOfCommandMarker); idx >= 0 {
		before := s.pending[:idx]
		s.pending = ""

		cwd, cleaned, _ := extractCwdPair(before)
		// The command is over; a lone cwd marker can no longer pair up.
		cleaned = strings.ReplaceAll(cleaned, CwdMarker, "")
		return scanResult{Text: cleaned, Cwd: cwd, Done: true}
	}

	var cwd string
	for {
		path, cleaned, ok := extractCwdPair(s.pending)
		if !ok {
			break
		}
		cwd = path
		s.pending = cleaned
	}

	hold := s.holdback()
	text := s.pending[:len(s.pending)-hold]
	s.pending = s.pending[len(s.pending)-hold:]

	return scanResult{Text: text, Cwd: cwd}
}

// Flush returns whatever is still withheld. Used when the stream closes
// with a partial marker candidate that will never complete.
func (s *markerScanner) Flush() string {
	out := s.pending
	s.pending = ""
	return out
}

// holdback returns how many trailing bytes of pending must be withheld:
// everything from an unpaired (complete) cwd marker onward, or a trailing
// partial-marker candidate.
func (s *markerScanner) holdback() int {
	if idx := strings.Index(s.pending, CwdMarker); idx >= 0 {
		return len(s.pending) - idx
	}

	n := maxPrefixSuffix(s.pending, EndOfCommandMarker)
	if m := maxPrefixSuffix(s.pending, CwdMarker); m > n {
		n = m
	}
	return n
}

// maxPrefixSuffix returns the length of the longest proper prefix of marker
// that is a suffix of s.
func maxPrefixSuffix(s, marker string) int {
	max := len(marker) - 1
	if max > len(s) {
		max = len(s)
	}
	for n := max; n > 0; n-- {
		if s[len(s)-n:] == marker[:n] {
			return n
		}
	}
	return 0
}

// extractCwdPair pulls the path from the first complete cwd marker pair in
// s and returns s with the pair and its payload removed. ok is false when
// no complete pair exists.
func extractCwdPair(s string) (path, cleaned string, ok bool) {
	first := strings.Index(s, CwdMarker)
	if first < 0 {
		return "", s, false
	}
	rest := s[first+len(CwdMarker):]
	second := strings.Index(rest, CwdMarker)
	if second < 0 {
		return "", s, false
	}

	between := strings.TrimSpace(rest[:second])
	path = between
	if i := strings.IndexByte(between, '\n'); i >= 0 {
		path = strings.TrimSpace(between[:i])
	}

	cleaned = s[:first] + rest[second+len(CwdMarker):]
	return path, cleaned, true
}
