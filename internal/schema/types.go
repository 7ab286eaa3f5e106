package schema

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Finding is one reported issue on one host. Findings are never modified
// after parsing.
type Finding struct {
	PID         int
	Name        string
	Severity    Severity
	Output      string
	Port        string
	Protocol    string
	Service     string
	Family      string
	Synopsis    string
	Description string
	Solution    string
	RiskFactor  string

	Host *Host
}

// DisplayOutput expands literal "\n" escapes left in older exports.
func (f *Finding) DisplayOutput() string {
	return strings.ReplaceAll(f.Output, `\n`, "\n")
}

// Location is where the finding was seen, e.g. "443/tcp (www)". Empty when
// the export recorded no port.
func (f *Finding) Location() string {
	if f.Port == "" {
		return ""
	}
	loc := f.Port
	if f.Protocol != "" {
		loc += "/" + f.Protocol
	}
	if f.Service != "" {
		loc += " (" + f.Service + ")"
	}
	return loc
}

func (f *Finding) String() string {
	return fmt.Sprintf("%d %s", f.PID, strings.TrimSpace(f.Name))
}

// Host is one scanned asset and the findings reported against it.
type Host struct {
	Address    string
	Properties map[string]string
	Findings   []*Finding

	Report *Report
}

func (h *Host) String() string {
	if h == nil {
		return ""
	}
	fqdn := h.Properties["host-fqdn"]
	if fqdn != "" && fqdn != h.Address {
		return h.Address + " (" + fqdn + ")"
	}
	return h.Address
}

// Finding returns the first finding on the host with the given plugin id.
func (h *Host) Finding(pid int) *Finding {
	for _, f := range h.Findings {
		if f.PID == pid {
			return f
		}
	}
	return nil
}

// HasPID reports whether the host has any finding for pid.
func (h *Host) HasPID(pid int) bool {
	return h.Finding(pid) != nil
}

// Output returns the plugin output the host reported for pid. A plugin
// reported on several ports contributes every output, separated by a blank line.
func (h *Host) Output(pid int) string {
	var parts []string
	for _, f := range h.Findings {
		if f.PID == pid {
			parts = append(parts, f.Output)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Preference is a single scanner setting recorded in a policy.
type Preference struct {
	Name  string
	Value string
}

// Policy is the optional scan configuration attached to a report.
type Policy struct {
	Name        string
	Comments    string
	Preferences []Preference
}

func (p *Policy) String() string {
	if p == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Policy: " + p.Name + "\n")
	if p.Comments != "" {
		sb.WriteString(p.Comments + "\n")
	}
	if len(p.Preferences) > 0 {
		sb.WriteString("\n")
	}
	for _, pref := range p.Preferences {
		fmt.Fprintf(&sb, "%s = %s\n", pref.Name, pref.Value)
	}
	return sb.String()
}

// Info is descriptive metadata about a scan run. Empty fields mean the
// source document did not record them.
type Info struct {
	Name         string
	Start        string
	Stop         string
	HostCount    int
	FindingCount int
}

func (i Info) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Report: %s\n", i.Name)
	if i.Start != "" {
		fmt.Fprintf(&sb, "Start:  %s\n", i.Start)
	}
	if i.Stop != "" {
		fmt.Fprintf(&sb, "Stop:   %s\n", i.Stop)
	}
	fmt.Fprintf(&sb, "Hosts:  %d\n", i.HostCount)
	fmt.Fprintf(&sb, "Items:  %d\n", i.FindingCount)
	return sb.String()
}

// ScanFile is one parsed scan document.
type ScanFile struct {
	Source  string
	Reports []*Report
}

// ShortName is the base name of the source path.
func (f *ScanFile) ShortName() string {
	return filepath.Base(f.Source)
}

// AllReports returns the reports of the file in document order.
func (f *ScanFile) AllReports() []*Report {
	return f.Reports
}
