package schema

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("nessusview/report"))

// DeriveID returns a stable identifier for the given parts. Equal parts always
// give the same id, across runs and processes.
func DeriveID(parts ...string) string {
	return uuid.NewSHA1(idNamespace, []byte(strings.Join(parts, "|"))).String()
}

// ReportView is anything that behaves as a report: a single scan run or a
// merge of many.
type ReportView interface {
	ReportID() string
	ReportName() string
	HostList() []*Host
	HostsWithPID(pid int) []*Host
	FindingsBySeverity() Buckets
}

// Report is the result of one scan run. It owns its hosts and is read-only
// once parsed.
type Report struct {
	ID     string
	Name   string
	Source string
	// Index is the position of the report within its source document.
	Index  int
	Hosts  []*Host
	Policy *Policy
	Info   Info
}

// NewReport builds a report, links every host and finding back to it and
// derives its id from the source, its position in the document and its name.
func NewReport(source string, index int, name string, policy *Policy, info Info, hosts []*Host) *Report {
	r := &Report{
		ID:     DeriveID(source, fmt.Sprint(index), name),
		Name:   name,
		Source: source,
		Index:  index,
		Hosts:  hosts,
		Policy: policy,
		Info:   info,
	}
	count := 0
	for _, h := range hosts {
		h.Report = r
		for _, f := range h.Findings {
			f.Host = h
			count++
		}
	}
	r.Info.Name = name
	r.Info.HostCount = len(hosts)
	r.Info.FindingCount = count
	return r
}

func (r *Report) ReportID() string   { return r.ID }
func (r *Report) ReportName() string { return r.Name }
func (r *Report) HostList() []*Host  { return r.Hosts }

// HostsWithPID returns every host reporting pid, in report order.
func (r *Report) HostsWithPID(pid int) []*Host {
	return HostsWithPID(r.Hosts, pid)
}

// FindingsBySeverity scans all hosts once and buckets their findings.
func (r *Report) FindingsBySeverity() Buckets {
	return Bucketize(r.Hosts)
}

// HostsWithPID filters hosts to those reporting pid, keeping their order.
func HostsWithPID(hosts []*Host, pid int) []*Host {
	var out []*Host
	for _, h := range hosts {
		if h.HasPID(pid) {
			out = append(out, h)
		}
	}
	return out
}

// Conflict records a plugin reported with two different severities.
type Conflict struct {
	PID   int
	First *Finding
	Other *Finding
}

func (c Conflict) String() string {
	return fmt.Sprintf("plugin %d reported as %s on %s and %s on %s",
		c.PID, c.First.Severity, c.First.Host, c.Other.Severity, c.Other.Host)
}

// Buckets partitions findings by severity.
type Buckets struct {
	High  []*Finding
	Med   []*Finding
	Low   []*Finding
	Other []*Finding

	Conflicts []Conflict
}

// Get returns the bucket for s.
func (b Buckets) Get(s Severity) []*Finding {
	switch s {
	case SeverityHigh:
		return b.High
	case SeverityMed:
		return b.Med
	case SeverityLow:
		return b.Low
	default:
		return b.Other
	}
}

// All concatenates highs, meds, lows and others.
func (b Buckets) All() []*Finding {
	all := make([]*Finding, 0, len(b.High)+len(b.Med)+len(b.Low)+len(b.Other))
	all = append(all, b.High...)
	all = append(all, b.Med...)
	all = append(all, b.Low...)
	return append(all, b.Other...)
}

// Select concatenates the buckets for the given severities, most severe first.
// No severities selects all.
func (b Buckets) Select(sevs ...Severity) []*Finding {
	if len(sevs) == 0 {
		return b.All()
	}
	var out []*Finding
	for _, s := range Severities {
		for _, want := range sevs {
			if s == want {
				out = append(out, b.Get(s)...)
				break
			}
		}
	}
	return out
}

// Bucketize walks hosts in order and files every finding under the severity
// first seen for its plugin id. Later findings of that plugin with another
// severity follow the first one and are recorded as conflicts.
func Bucketize(hosts []*Host) Buckets {
	var b Buckets
	first := make(map[int]*Finding)
	for _, h := range hosts {
		for _, f := range h.Findings {
			sev := f.Severity
			if seen, ok := first[f.PID]; ok {
				if seen.Severity != f.Severity {
					b.Conflicts = append(b.Conflicts, Conflict{PID: f.PID, First: seen, Other: f})
				}
				sev = seen.Severity
			} else {
				first[f.PID] = f
			}
			switch sev {
			case SeverityHigh:
				b.High = append(b.High, f)
			case SeverityMed:
				b.Med = append(b.Med, f)
			case SeverityLow:
				b.Low = append(b.Low, f)
			default:
				b.Other = append(b.Other, f)
			}
		}
	}
	return b
}
