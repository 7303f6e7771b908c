package format

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"pkt.systems/idemy/schema"
)

// StderrMarker prefixes lines captured from stderr.
const StderrMarker = "! "

// TabStyle controls how tab titles are rendered.
type TabStyle struct {
	DirtyMarker string
	MaxName     int
	Suffix      string
}

// TabStyleFromConfig extracts the tab style from a normalized workspace config.
func TabStyleFromConfig(cfg schema.WorkspaceConfig) TabStyle {
	return TabStyle{DirtyMarker: cfg.DirtyMarker, MaxName: cfg.TabNameMax, Suffix: cfg.TabNameSuffix}
}

// PlainRenderer formats editor state and command output as plain text lines.
type PlainRenderer struct {
	style TabStyle
}

// NewPlainRenderer returns a plain-text renderer.
func NewPlainRenderer(style TabStyle) *PlainRenderer {
	if style.DirtyMarker == "" {
		style.DirtyMarker = schema.DefaultDirtyMarker
	}
	return &PlainRenderer{style: style}
}

// TabTitle returns the visible tab title: the truncated name followed by the
// dirty marker while the buffer has unsaved changes.
func (p *PlainRenderer) TabTitle(snap schema.BufferSnapshot) string {
	name := truncateName(string(snap.Name), p.style.MaxName, p.style.Suffix)
	if snap.Dirty {
		return name + p.style.DirtyMarker
	}
	return name
}

// TabList renders one line per tab, 1-based, the active tab marked with ">".
func (p *PlainRenderer) TabList(tabs []schema.BufferSnapshot) []string {
	if len(tabs) == 0 {
		return []string{"no open buffers"}
	}
	lines := make([]string, 0, len(tabs))
	for i, tab := range tabs {
		marker := " "
		if tab.Active {
			marker = ">"
		}
		location := tab.Path
		if tab.Scratch() {
			location = "(scratch)"
		}
		lines = append(lines, fmt.Sprintf("%s %d %s  %s", marker, i+1, p.TabTitle(tab), location))
	}
	return lines
}

// BufferEvent formats a buffer lifecycle event; edits render nothing.
func (p *PlainRenderer) BufferEvent(event schema.BufferEvent) []string {
	title := p.TabTitle(event.Buffer)
	switch event.Type {
	case schema.BufferEventOpened:
		if event.Buffer.Scratch() {
			return []string{fmt.Sprintf("new buffer %s", title)}
		}
		return []string{fmt.Sprintf("opened %s (%d lines)", title, event.Buffer.Lines)}
	case schema.BufferEventSaved:
		return []string{fmt.Sprintf("saved %s (%d lines)", event.Buffer.Path, event.Buffer.Lines)}
	case schema.BufferEventReloaded:
		return []string{fmt.Sprintf("reloaded %s from disk", title)}
	case schema.BufferEventClosed:
		return []string{fmt.Sprintf("closed %s", title)}
	default:
		return nil
	}
}

// BufferContent renders content with right-aligned line numbers.
func (p *PlainRenderer) BufferContent(snap schema.BufferSnapshot, content string) []string {
	lines := SplitLines(content)
	header := fmt.Sprintf("-- %s --", p.TabTitle(snap))
	out := make([]string, 0, len(lines)+1)
	out = append(out, header)
	width := len(fmt.Sprintf("%d", len(lines)))
	for i, line := range lines {
		out = append(out, fmt.Sprintf("%*d | %s", width, i+1, line))
	}
	return out
}

// CommandStart echoes a submitted command line.
func (p *PlainRenderer) CommandStart(inv schema.CommandInvocation) string {
	return fmt.Sprintf("$ %s", inv.CommandLine)
}

// CommandOutput renders one output line; stderr lines carry StderrMarker.
func (p *PlainRenderer) CommandOutput(event schema.CommandOutputEvent) string {
	if event.Stream == schema.StreamStderr {
		return StderrMarker + event.Text
	}
	return event.Text
}

// CommandExit renders the terminal notification of a command.
func (p *PlainRenderer) CommandExit(event schema.CommandExitEvent) string {
	elapsed := event.Duration.Round(time.Millisecond)
	if event.Err != nil {
		return fmt.Sprintf("[exit %d after %s: %v]", event.ExitCode, elapsed, event.Err)
	}
	return fmt.Sprintf("[exit %d after %s]", event.ExitCode, elapsed)
}

// SplitLines splits buffer content into lines. A trailing newline does not
// produce an extra empty line.
func SplitLines(content string) []string {
	if content == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n")
}

// JoinLines is the inverse of SplitLines for content ending in a newline.
func JoinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

func truncateName(name string, max int, suffix string) string {
	if max <= 0 {
		return name
	}
	runes := []rune(name)
	if len(runes) <= max {
		return name
	}
	cut := max - utf8.RuneCountInString(suffix)
	if cut < 1 {
		return string(runes[:max])
	}
	return string(runes[:cut]) + suffix
}
