package merge

import (
	"sort"
	"testing"

	"github.com/yorozuya-cybersecurity/nessusview/internal/dedup"
	"github.com/yorozuya-cybersecurity/nessusview/internal/schema"
)

func scanFile(source string, hosts ...*schema.Host) *schema.ScanFile {
	rep := schema.NewReport(source, 0, source+" scan", nil, schema.Info{}, hosts)
	return &schema.ScanFile{Source: source, Reports: []*schema.Report{rep}}
}

func host(addr string, findings ...*schema.Finding) *schema.Host {
	return &schema.Host{Address: addr, Findings: findings}
}

func finding(pid int, sev schema.Severity, output string) *schema.Finding {
	return &schema.Finding{PID: pid, Name: "plugin", Severity: sev, Output: output}
}

func fixtures() (a, b, c *schema.ScanFile) {
	a = scanFile("a.nessus",
		host("10.0.0.10", finding(1, schema.SeverityHigh, "a"), finding(2, schema.SeverityLow, "")),
		host("10.0.0.2", finding(1, schema.SeverityHigh, "a")),
	)
	b = scanFile("b.nessus",
		host("10.0.0.3", finding(1, schema.SeverityHigh, "b"), finding(3, schema.SeverityMed, "")),
	)
	c = scanFile("c.nessus",
		host("web.example.com", finding(4, schema.SeverityOther, "")),
		host("10.0.0.1", finding(2, schema.SeverityLow, "c")),
	)
	return a, b, c
}

func keys(items []dedup.Item) []dedup.Key {
	out := make([]dedup.Key, 0, len(items))
	for _, it := range items {
		out = append(out, it.Key())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func sameKeys(t *testing.T, want, got []dedup.Key) {
	t.Helper()
	if len(want) != len(got) {
		t.Fatalf("expected %d items, got %d", len(want), len(got))
	}
	for i := range want {
		if want[i] != got[i] {
			t.Errorf("item %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestMergeIsOrderIndependent(t *testing.T) {
	a, b, c := fixtures()

	direct := New(a, b, c)
	stepwise := New(a, b).With(c)
	rotated := New(c, a, b)

	want := keys(dedup.ForView(direct))
	if len(want) != 4 {
		t.Fatalf("expected 4 distinct plugins, got %d", len(want))
	}
	sameKeys(t, want, keys(dedup.ForView(stepwise)))
	sameKeys(t, want, keys(dedup.ForView(rotated)))

	for i, h := range direct.HostList() {
		if rotated.HostList()[i] != h {
			t.Errorf("host %d differs between merge orders", i)
		}
	}
}

func TestMergeUnionsHostsAndBuckets(t *testing.T) {
	a, b, c := fixtures()
	m := New(a, b, c)

	if len(m.AllReports()) != 3 {
		t.Errorf("expected 3 reports, got %d", len(m.AllReports()))
	}
	if len(m.HostList()) != 5 {
		t.Errorf("expected 5 hosts, got %d", len(m.HostList()))
	}

	var addrs []string
	for _, h := range m.HostList() {
		addrs = append(addrs, h.Address)
	}
	want := []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.10", "web.example.com"}
	for i := range want {
		if addrs[i] != want[i] {
			t.Fatalf("expected hosts %v, got %v", want, addrs)
		}
	}

	hosts := m.HostsWithPID(1)
	if len(hosts) != 3 {
		t.Errorf("expected plugin 1 on 3 hosts, got %d", len(hosts))
	}

	b2 := m.FindingsBySeverity()
	if len(b2.High) != 3 || len(b2.Med) != 1 || len(b2.Low) != 2 || len(b2.Other) != 1 {
		t.Errorf("unexpected buckets %d/%d/%d/%d", len(b2.High), len(b2.Med), len(b2.Low), len(b2.Other))
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	a, b, _ := fixtures()
	once := New(a, b)
	twice := New(a, b, a, b)

	if once.ReportID() != twice.ReportID() {
		t.Error("merging the same reports twice should give the same id")
	}
	if len(twice.HostList()) != len(once.HostList()) {
		t.Errorf("duplicate files should not duplicate hosts: %d vs %d", len(twice.HostList()), len(once.HostList()))
	}
}

func TestMergeSkipsEmptyFiles(t *testing.T) {
	a, _, _ := fixtures()
	empty := &schema.ScanFile{Source: "empty.nessus"}

	m := New(empty, a, nil)
	if len(m.AllReports()) != 1 {
		t.Errorf("expected 1 report, got %d", len(m.AllReports()))
	}
	if len(New(empty).AllReports()) != 0 {
		t.Error("an empty file contributes nothing")
	}
}

func TestCompareAddress(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"10.0.0.2", "10.0.0.10", -1},
		{"10.0.0.10", "10.0.0.2", 1},
		{"10.0.0.1", "host", -1},
		{"alpha", "beta", -1},
		{"::1", "::1", 0},
	}
	for _, tt := range tests {
		if got := compareAddress(tt.a, tt.b); got != tt.want {
			t.Errorf("compareAddress(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
