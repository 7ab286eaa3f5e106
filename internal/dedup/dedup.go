// Package dedup collapses findings reported by many hosts into one item per
// plugin and report.
package dedup

import (
	"sort"

	"github.com/yorozuya-cybersecurity/nessusview/internal/schema"
)

// Key identifies an item: one plugin within one report. Output text is never
// part of the identity.
type Key struct {
	ReportID string
	PID      int
}

// Less orders keys by report id, then plugin id.
func (k Key) Less(o Key) bool {
	if k.ReportID != o.ReportID {
		return k.ReportID < o.ReportID
	}
	return k.PID < o.PID
}

// Item is one plugin aggregated over every host of a report that reported
// it. Finding is the representative: the finding of the first such host.
type Item struct {
	Report  schema.ReportView
	PID     int
	Finding *schema.Finding
}

// Key returns the identity of the item.
func (it Item) Key() Key {
	return Key{ReportID: it.Report.ReportID(), PID: it.PID}
}

// Name is the plugin name of the representative finding.
func (it Item) Name() string { return it.Finding.Name }

// Severity is the severity of the representative finding.
func (it Item) Severity() schema.Severity { return it.Finding.Severity }

// Hosts returns every host of the report with this plugin, in report order.
func (it Item) Hosts() []*schema.Host {
	return it.Report.HostsWithPID(it.PID)
}

// Locations lists every distinct port the plugin was reported on, in host
// order.
func (it Item) Locations() []string {
	var out []string
	seen := make(map[string]bool)
	for _, h := range it.Hosts() {
		for _, f := range h.Findings {
			loc := f.Location()
			if f.PID != it.PID || loc == "" || seen[loc] {
				continue
			}
			seen[loc] = true
			out = append(out, loc)
		}
	}
	return out
}

func (it Item) String() string { return it.Finding.String() }

// Sorted builds one item per distinct plugin among findings, all taken from
// report, and sorts them. Calling it twice with equal input gives equal output.
func Sorted(report schema.ReportView, findings []*schema.Finding) []Item {
	seen := make(map[Key]bool, len(findings))
	var items []Item
	for _, f := range findings {
		k := Key{ReportID: report.ReportID(), PID: f.PID}
		if seen[k] {
			continue
		}
		seen[k] = true
		items = append(items, newItem(report, f))
	}
	Sort(items)
	return items
}

// ForView returns the sorted items of report for the given severities, or for
// every severity when none are given.
func ForView(report schema.ReportView, sevs ...schema.Severity) []Item {
	return Sorted(report, report.FindingsBySeverity().Select(sevs...))
}

func newItem(report schema.ReportView, f *schema.Finding) Item {
	rep := f
	if hosts := report.HostsWithPID(f.PID); len(hosts) > 0 {
		rep = hosts[0].Finding(f.PID)
	}
	return Item{Report: report, PID: f.PID, Finding: rep}
}

// Sort orders items by severity (most severe first), then plugin id, name,
// report id and finally the address of the first host.
func Sort(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return less(items[i], items[j])
	})
}

func less(a, b Item) bool {
	if a.Severity() != b.Severity() {
		return a.Severity() > b.Severity()
	}
	if a.PID != b.PID {
		return a.PID < b.PID
	}
	if a.Name() != b.Name() {
		return a.Name() < b.Name()
	}
	if ka, kb := a.Key(), b.Key(); ka != kb {
		return ka.Less(kb)
	}
	return firstAddress(a) < firstAddress(b)
}

func firstAddress(it Item) string {
	if it.Finding.Host == nil {
		return ""
	}
	return it.Finding.Host.Address
}
