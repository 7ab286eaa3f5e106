// Package merge combines the reports of several scan files into one view.
package merge

import (
	"net/netip"
	"sort"
	"strings"

	"github.com/yorozuya-cybersecurity/nessusview/internal/schema"
)

// Report is the union of every report in a set of scan files. It is a view:
// hosts and findings stay owned by their scan files.
type Report struct {
	id      string
	files   []*schema.ScanFile
	reports []*schema.Report
	hosts   []*schema.Host
}

var _ schema.ReportView = (*Report)(nil)

// New merges files. A file without reports contributes nothing, and a report
// loaded twice is only counted once. The result does not depend on the order
// of files.
func New(files ...*schema.ScanFile) *Report {
	m := &Report{files: files}
	seen := make(map[string]bool)
	for _, f := range files {
		if f == nil {
			continue
		}
		for _, r := range f.AllReports() {
			if seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			m.reports = append(m.reports, r)
		}
	}
	sort.SliceStable(m.reports, func(i, j int) bool {
		return m.reports[i].ID < m.reports[j].ID
	})

	ids := make([]string, 0, len(m.reports))
	for _, r := range m.reports {
		ids = append(ids, r.ID)
		m.hosts = append(m.hosts, r.Hosts...)
	}
	m.id = schema.DeriveID(append([]string{"merged"}, ids...)...)

	sort.SliceStable(m.hosts, func(i, j int) bool {
		a, b := m.hosts[i], m.hosts[j]
		if c := compareAddress(a.Address, b.Address); c != 0 {
			return c < 0
		}
		return a.Report.ID < b.Report.ID
	})
	return m
}

// With returns a new merge over the current files plus files.
func (m *Report) With(files ...*schema.ScanFile) *Report {
	all := make([]*schema.ScanFile, 0, len(m.files)+len(files))
	all = append(all, m.files...)
	return New(append(all, files...)...)
}

// AllReports returns the constituent reports ordered by id.
func (m *Report) AllReports() []*schema.Report { return m.reports }

func (m *Report) ReportID() string         { return m.id }
func (m *Report) ReportName() string       { return "Merged Files" }
func (m *Report) HostList() []*schema.Host { return m.hosts }
func (m *Report) FindingsBySeverity() schema.Buckets {
	return schema.Bucketize(m.hosts)
}

// HostsWithPID returns the hosts of every constituent report that reported pid.
func (m *Report) HostsWithPID(pid int) []*schema.Host {
	return schema.HostsWithPID(m.hosts, pid)
}

// compareAddress orders IP addresses numerically and anything else lexically,
// with IPs first.
func compareAddress(a, b string) int {
	ia, errA := netip.ParseAddr(a)
	ib, errB := netip.ParseAddr(b)
	switch {
	case errA == nil && errB == nil:
		if c := ia.Compare(ib); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}
