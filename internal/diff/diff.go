// Package diff renders a deduplicated finding as one baseline output plus the
// line diffs of every host whose output differs from it.
package diff

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/yorozuya-cybersecurity/nessusview/internal/dedup"
	"github.com/yorozuya-cybersecurity/nessusview/internal/schema"
)

// DefaultContext is the number of unchanged lines shown around each change.
const DefaultContext = 3

const (
	hostRule  = 20
	blockRule = 70
)

// Output is everything rendered for one item. Callers exporting an item
// should compute it once and use both Summary and Diff from the same value.
type Output struct {
	Summary string
	Diff    string

	// Hosts reporting the plugin; Hosts[0] is the baseline.
	Hosts []*schema.Host
	// Identical holds the baseline and every host whose output matches it.
	Identical []*schema.Host
	Differing []*schema.Host
}

// Engine computes item output.
type Engine struct {
	Context int
}

// New returns an engine showing context lines around each change. A negative
// value selects DefaultContext.
func New(context int) *Engine {
	if context < 0 {
		context = DefaultContext
	}
	return &Engine{Context: context}
}

// ItemOutput diffs every host reporting the item against the first one.
func (e *Engine) ItemOutput(item dedup.Item) Output {
	hosts := item.Hosts()
	out := Output{Hosts: hosts}
	name := item.Name()

	var baseline string
	var diffs strings.Builder
	if len(hosts) > 0 {
		baseline = hosts[0].Output(item.PID)
		out.Identical = append(out.Identical, hosts[0])
		baseLines := splitLines(baseline)
		for _, h := range hosts[1:] {
			d := e.unified(baseLines, splitLines(h.Output(item.PID)), hosts[0].String(), h.String())
			if d == "" {
				out.Identical = append(out.Identical, h)
				continue
			}
			out.Differing = append(out.Differing, h)
			diffs.WriteString(strings.Repeat("=", blockRule))
			fmt.Fprintf(&diffs, "\n\n%s\n%s\n\n", h, d)
		}
	}
	out.Diff = diffs.String()

	var sb strings.Builder
	sb.WriteString(name + "\n")
	fmt.Fprintf(&sb, "%d hosts with this issue\n", len(hosts))
	for i, h := range hosts {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(h.Address)
	}
	sb.WriteString("\n" + strings.Repeat("-", hostRule) + "\n")
	for i, h := range out.Identical {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(h.String())
	}
	sb.WriteString("\n\n" + strings.TrimSpace(name) + "\n\n" + baseline)
	out.Summary = sb.String()
	return out
}

// Unified returns the line diff between a and b, or "" when they are equal.
func (e *Engine) Unified(a, b string) string {
	return e.unified(splitLines(a), splitLines(b), "", "")
}

func (e *Engine) unified(a, b []string, from, to string) string {
	// writes go to an in-memory buffer and cannot fail
	text, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        a,
		B:        b,
		FromFile: from,
		ToFile:   to,
		Context:  e.Context,
	})
	return strings.TrimRight(text, "\n")
}

// splitLines splits s into newline-terminated lines. Empty text has no lines.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	} else {
		lines[len(lines)-1] += "\n"
	}
	return lines
}
