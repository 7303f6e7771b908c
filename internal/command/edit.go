package command

import (
	"fmt"

	"pkt.systems/idemy/internal/format"
)

// appendLine adds a line at the end of content.
func appendLine(content, line string) string {
	lines := format.SplitLines(content)
	return format.JoinLines(append(lines, line))
}

// insertLine inserts a line before 1-based position n. n may be one past the
// last line.
func insertLine(content string, n int, line string) (string, error) {
	lines := format.SplitLines(content)
	if n < 1 || n > len(lines)+1 {
		return "", fmt.Errorf("line %d out of range 1..%d", n, len(lines)+1)
	}
	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:n-1]...)
	out = append(out, line)
	out = append(out, lines[n-1:]...)
	return format.JoinLines(out), nil
}

// setLine replaces 1-based line n.
func setLine(content string, n int, line string) (string, error) {
	lines := format.SplitLines(content)
	if n < 1 || n > len(lines) {
		return "", fmt.Errorf("line %d out of range 1..%d", n, len(lines))
	}
	lines[n-1] = line
	return format.JoinLines(lines), nil
}

// deleteLine removes 1-based line n.
func deleteLine(content string, n int) (string, error) {
	lines := format.SplitLines(content)
	if n < 1 || n > len(lines) {
		return "", fmt.Errorf("line %d out of range 1..%d", n, len(lines))
	}
	return format.JoinLines(append(lines[:n-1], lines[n:]...)), nil
}
