package scanners

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yorozuya-cybersecurity/nessusview/internal/schema"
)

func TestLoadFileV2(t *testing.T) {
	file, err := LoadFile(filepath.Join("testdata", "weekly_v2.nessus"))
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if file.ShortName() != "weekly_v2.nessus" {
		t.Errorf("unexpected short name %q", file.ShortName())
	}
	if len(file.Reports) != 1 {
		t.Fatalf("expected 1 report, got %d", len(file.Reports))
	}
	rep := file.Reports[0]
	if rep.Name != "Weekly Servers" {
		t.Errorf("expected report name 'Weekly Servers', got %q", rep.Name)
	}
	if rep.Policy == nil || rep.Policy.Name != "Internal Weekly" {
		t.Fatalf("expected policy 'Internal Weekly', got %+v", rep.Policy)
	}
	if len(rep.Policy.Preferences) != 2 || rep.Policy.Preferences[0].Name != "max_hosts" {
		t.Errorf("unexpected preferences %+v", rep.Policy.Preferences)
	}

	if len(rep.Hosts) != 2 {
		t.Fatalf("expected 2 hosts, got %d", len(rep.Hosts))
	}
	// document order is kept
	if rep.Hosts[0].Address != "10.0.0.2" || rep.Hosts[1].Address != "10.0.0.1" {
		t.Errorf("unexpected host order %s, %s", rep.Hosts[0].Address, rep.Hosts[1].Address)
	}
	if got := rep.Hosts[0].String(); got != "10.0.0.2 (web02.corp.local)" {
		t.Errorf("unexpected host string %q", got)
	}

	terrapin := rep.Hosts[0].Finding(187315)
	if terrapin == nil {
		t.Fatal("expected plugin 187315 on 10.0.0.2")
	}
	if terrapin.Severity != schema.SeverityHigh {
		t.Errorf("expected critical to fold into High, got %s", terrapin.Severity)
	}
	if terrapin.Port != "22" || terrapin.Service != "ssh" || terrapin.Host != rep.Hosts[0] {
		t.Errorf("unexpected finding fields %+v", terrapin)
	}

	described := rep.Hosts[0].Finding(51192)
	if described.Description != "The server's X.509 certificate cannot be trusted." || described.RiskFactor != "Medium" {
		t.Errorf("unexpected description fields %+v", described)
	}
	if !strings.HasPrefix(described.Solution, "Purchase or generate") || described.Family != "General" {
		t.Errorf("unexpected solution/family %+v", described)
	}
	if got := described.Location(); got != "443/tcp (www)" {
		t.Errorf("unexpected location %q", got)
	}

	cert := rep.Hosts[1].Finding(51192)
	if cert == nil || !strings.Contains(cert.Output, "CN=web01.corp.local") {
		t.Errorf("unexpected plugin output %+v", cert)
	}
	if f := rep.Hosts[1].Finding(10107); f == nil || f.Output != "" {
		t.Errorf("missing plugin_output should parse as empty, got %+v", f)
	}

	if rep.Info.Start != "Mon Mar  4 10:00:00 2024" || rep.Info.Stop != "Mon Mar  4 10:07:00 2024" {
		t.Errorf("unexpected info times %+v", rep.Info)
	}
	if rep.Info.HostCount != 2 || rep.Info.FindingCount != 6 {
		t.Errorf("unexpected info counts %+v", rep.Info)
	}
}

func TestLoadFileV1MultipleReports(t *testing.T) {
	file, err := LoadFile(filepath.Join("testdata", "legacy_v1.nessus"))
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if len(file.Reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(file.Reports))
	}

	morning, evening := file.Reports[0], file.Reports[1]
	if morning.Name != "DMZ morning" || evening.Name != "DMZ evening" {
		t.Errorf("unexpected names %q, %q", morning.Name, evening.Name)
	}
	if morning.ID == evening.ID {
		t.Error("reports of one document must have distinct ids")
	}
	if morning.Policy == nil || morning.Policy.Name != "DMZ" {
		t.Errorf("expected DMZ policy, got %+v", morning.Policy)
	}
	if evening.Policy != nil {
		t.Errorf("missing policy should be nil, got %+v", evening.Policy)
	}
	if morning.Info.Start == "" || evening.Info.Start != "" {
		t.Errorf("unexpected info %+v / %+v", morning.Info, evening.Info)
	}

	relay := morning.Hosts[0].Finding(11852)
	if relay == nil {
		t.Fatal("expected plugin 11852")
	}
	if relay.Output != "Relay test:\nRCPT TO accepted" {
		t.Errorf("escaped newlines should be expanded, got %q", relay.Output)
	}
	if relay.Severity != schema.SeverityHigh {
		t.Errorf("expected High, got %s", relay.Severity)
	}
	if got := morning.Hosts[0].String(); got != "192.168.1.10 (mail.example.com)" {
		t.Errorf("unexpected host string %q", got)
	}
}

func TestParseIsDeterministic(t *testing.T) {
	path := filepath.Join("testdata", "legacy_v1.nessus")
	a, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	b, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a.Reports {
		if a.Reports[i].ID != b.Reports[i].ID {
			t.Errorf("report %d: ids differ between loads", i)
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{name: "empty", doc: "", want: ErrNoRoot},
		{name: "unknown root", doc: "<nmaprun></nmaprun>", want: ErrUnknownRoot},
		{name: "report without hosts", doc: `<NessusClientData_v2><Report name="x"></Report></NessusClientData_v2>`, want: ErrNoHosts},
		{name: "bad plugin id", doc: `<NessusClientData_v2><Report name="x"><ReportHost name="h"><ReportItem pluginID="abc" severity="1"/></ReportHost></Report></NessusClientData_v2>`},
		{name: "bad severity", doc: `<NessusClientData_v2><Report name="x"><ReportHost name="h"><ReportItem pluginID="1" severity="high"/></ReportHost></Report></NessusClientData_v2>`},
		{name: "trailing garbage", doc: `<NessusClientData_v2></NessusClientData_v2><<<garbage`, want: ErrTrailing},
		{name: "trailing text", doc: "<NessusClientData_v2></NessusClientData_v2>\nleftover", want: ErrTrailing},
		{name: "second root", doc: `<NessusClientData_v2></NessusClientData_v2><NessusClientData_v2/>`, want: ErrTrailing},
		{name: "unsupported encoding", doc: `<?xml version="1.0" encoding="x-no-such-charset"?><NessusClientData_v2/>`},
		{name: "host without name", doc: `<NessusClientData_v2><Report name="x"><ReportHost><ReportItem pluginID="1"/></ReportHost></Report></NessusClientData_v2>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file, err := Parse(strings.NewReader(tt.doc), "doc.nessus")
			if err == nil {
				t.Fatalf("expected error, got %+v", file)
			}
			if file != nil {
				t.Errorf("no partial result expected on failure")
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected ParseError, got %T: %v", err, err)
			}
			if pe.Path != "doc.nessus" {
				t.Errorf("expected path doc.nessus, got %q", pe.Path)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestParseEmptyDocumentHasNoReports(t *testing.T) {
	file, err := Parse(strings.NewReader("<NessusClientData_v2></NessusClientData_v2>"), "empty.nessus")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(file.Reports) != 0 {
		t.Errorf("expected no reports, got %d", len(file.Reports))
	}
}

func TestParseAllowsTrailingCommentsAndWhitespace(t *testing.T) {
	doc := "<NessusClientData_v2></NessusClientData_v2>\n<!-- exported by scanner -->\n\n"
	if _, err := Parse(strings.NewReader(doc), "tail.nessus"); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
}

func TestParseLatin1Document(t *testing.T) {
	doc := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>\n" +
		"<NessusClientData_v2><Report name=\"Caf\xe9\"><ReportHost name=\"10.0.0.5\">" +
		"<ReportItem port=\"80\" severity=\"1\" pluginID=\"10107\" pluginName=\"HTTP Server Type\">" +
		"<plugin_output>Server: caf\xe9-httpd</plugin_output></ReportItem></ReportHost></Report></NessusClientData_v2>"

	file, err := Parse(strings.NewReader(doc), "latin1.nessus")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	rep := file.Reports[0]
	if rep.Name != "Café" {
		t.Errorf("expected decoded report name, got %q", rep.Name)
	}
	if got := rep.Hosts[0].Output(10107); got != "Server: café-httpd" {
		t.Errorf("expected decoded output, got %q", got)
	}
}

func TestLoadFilesKeepsGoodFiles(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.nessus")
	paths := []string{
		filepath.Join("testdata", "truncated.nessus"),
		filepath.Join("testdata", "weekly_v2.nessus"),
		missing,
		filepath.Join("testdata", "legacy_v1.nessus"),
	}

	files, errs := LoadFiles(paths)
	if len(files) != 2 {
		t.Fatalf("expected 2 loaded files, got %d", len(files))
	}
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d: %v", len(errs), errs)
	}

	var pe *ParseError
	if !errors.As(errs[0], &pe) || !strings.HasSuffix(pe.Path, "truncated.nessus") {
		t.Errorf("expected ParseError for truncated file, got %v", errs[0])
	}
	if !errors.Is(errs[1], os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", errs[1])
	}
	if errors.As(errs[1], &pe) {
		t.Errorf("I/O failures are not parse errors: %v", errs[1])
	}
}
