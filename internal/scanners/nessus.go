package scanners

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"github.com/yorozuya-cybersecurity/nessusview/internal/schema"
)

const (
	rootV1 = "NessusClientData"
	rootV2 = "NessusClientData_v2"
)

// ParseError reports a scan document that could not be turned into reports.
// Nothing parsed from the document is kept.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

var (
	ErrNoRoot      = errors.New("no root element")
	ErrUnknownRoot = errors.New("not a nessus document")
	ErrNoHosts     = errors.New("report has no hosts")
	ErrTrailing    = errors.New("content after the root element")
)

// LoadFile reads and parses one .nessus file.
func LoadFile(path string) (*schema.ScanFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(bytes.NewReader(data), path)
}

// LoadFiles loads every path independently. A file that fails is reported in
// errs and does not affect the others.
func LoadFiles(paths []string) (files []*schema.ScanFile, errs []error) {
	for _, p := range paths {
		f, err := LoadFile(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		files = append(files, f)
	}
	return files, errs
}

// Parse reads a Nessus v1 or v2 document. source names the document in
// errors and report ids.
func Parse(r io.Reader, source string) (*schema.ScanFile, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charsetReader
	start, err := rootElement(dec)
	if err != nil {
		return nil, &ParseError{Path: source, Err: err}
	}

	var reports []*schema.Report
	switch start.Name.Local {
	case rootV2:
		var doc v2Document
		if err := dec.DecodeElement(&doc, &start); err != nil {
			return nil, &ParseError{Path: source, Err: err}
		}
		reports, err = doc.reports(source)
	case rootV1:
		var doc v1Document
		if err := dec.DecodeElement(&doc, &start); err != nil {
			return nil, &ParseError{Path: source, Err: err}
		}
		reports, err = doc.reports(source)
	default:
		err = fmt.Errorf("%w: root element <%s>", ErrUnknownRoot, start.Name.Local)
	}
	if err == nil {
		err = expectEnd(dec)
	}
	if err != nil {
		return nil, &ParseError{Path: source, Err: err}
	}
	return &schema.ScanFile{Source: source, Reports: reports}, nil
}

// charsetReader decodes documents declaring a non UTF-8 encoding, such as
// ISO-8859-1 exports from older scanners.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", label, err)
	}
	return transform.NewReader(input, enc.NewDecoder()), nil
}

// expectEnd accepts only whitespace, comments and processing instructions
// after the root element.
func expectEnd(dec *xml.Decoder) error {
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrTrailing, err)
		}
		switch t := tok.(type) {
		case xml.Comment, xml.ProcInst:
		case xml.CharData:
			if len(bytes.TrimSpace(t)) != 0 {
				return fmt.Errorf("%w: text %q", ErrTrailing, truncate(string(t), 20))
			}
		case xml.StartElement:
			return fmt.Errorf("%w: element <%s>", ErrTrailing, t.Name.Local)
		default:
			return ErrTrailing
		}
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

func rootElement(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return xml.StartElement{}, ErrNoRoot
		}
		if err != nil {
			return xml.StartElement{}, err
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se, nil
		}
	}
}

// ---------- shared ----------

type xmlPolicy struct {
	Name        string          `xml:"policyName"`
	Comments    string          `xml:"policyComments"`
	Preferences []xmlPreference `xml:"Preferences>ServerPreferences>preference"`
}

type xmlPreference struct {
	Name  string `xml:"name"`
	Value string `xml:"value"`
}

func (p *xmlPolicy) policy() *schema.Policy {
	if p == nil {
		return nil
	}
	out := &schema.Policy{
		Name:     strings.TrimSpace(p.Name),
		Comments: strings.TrimSpace(p.Comments),
	}
	for _, pref := range p.Preferences {
		out.Preferences = append(out.Preferences, schema.Preference{Name: pref.Name, Value: pref.Value})
	}
	return out
}

func parsePID(s string) (int, error) {
	pid, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid pluginID %q", s)
	}
	return pid, nil
}

func parseSeverity(s string) (schema.Severity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return schema.SeverityOther, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return schema.SeverityOther, fmt.Errorf("invalid severity %q", s)
	}
	return schema.SeverityFromInt(n), nil
}

// ---------- v2 ----------

type v2Document struct {
	Policy  *xmlPolicy `xml:"Policy"`
	Reports []v2Report `xml:"Report"`
}

type v2Report struct {
	Name  string   `xml:"name,attr"`
	Hosts []v2Host `xml:"ReportHost"`
}

type v2Host struct {
	Name  string   `xml:"name,attr"`
	Tags  []v2Tag  `xml:"HostProperties>tag"`
	Items []v2Item `xml:"ReportItem"`
}

type v2Tag struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type v2Item struct {
	Port        string `xml:"port,attr"`
	Service     string `xml:"svc_name,attr"`
	Protocol    string `xml:"protocol,attr"`
	Severity    string `xml:"severity,attr"`
	PluginID    string `xml:"pluginID,attr"`
	PluginName  string `xml:"pluginName,attr"`
	Family      string `xml:"pluginFamily,attr"`
	Output      string `xml:"plugin_output"`
	Synopsis    string `xml:"synopsis"`
	Description string `xml:"description"`
	Solution    string `xml:"solution"`
	RiskFactor  string `xml:"risk_factor"`
}

func (d *v2Document) reports(source string) ([]*schema.Report, error) {
	var out []*schema.Report
	for i, rep := range d.Reports {
		if len(rep.Hosts) == 0 {
			return nil, fmt.Errorf("report %q: %w", rep.Name, ErrNoHosts)
		}
		hosts := make([]*schema.Host, 0, len(rep.Hosts))
		for _, h := range rep.Hosts {
			host, err := h.host()
			if err != nil {
				return nil, fmt.Errorf("report %q: %w", rep.Name, err)
			}
			hosts = append(hosts, host)
		}
		info := schema.Info{
			Start: hosts[0].Properties["HOST_START"],
			Stop:  hosts[len(hosts)-1].Properties["HOST_END"],
		}
		// every report in a v2 document ran under the document's policy
		out = append(out, schema.NewReport(source, i, rep.Name, d.Policy.policy(), info, hosts))
	}
	return out, nil
}

func (h *v2Host) host() (*schema.Host, error) {
	props := make(map[string]string, len(h.Tags))
	for _, t := range h.Tags {
		props[t.Name] = strings.TrimSpace(t.Value)
	}
	addr := strings.TrimSpace(h.Name)
	if addr == "" {
		addr = props["host-ip"]
	}
	if addr == "" {
		return nil, errors.New("ReportHost without name")
	}
	host := &schema.Host{Address: addr, Properties: props}
	for _, it := range h.Items {
		pid, err := parsePID(it.PluginID)
		if err != nil {
			return nil, fmt.Errorf("host %s: %w", addr, err)
		}
		sev, err := parseSeverity(it.Severity)
		if err != nil {
			return nil, fmt.Errorf("host %s plugin %d: %w", addr, pid, err)
		}
		host.Findings = append(host.Findings, &schema.Finding{
			PID:         pid,
			Name:        it.PluginName,
			Severity:    sev,
			Output:      it.Output,
			Port:        it.Port,
			Protocol:    it.Protocol,
			Service:     it.Service,
			Family:      it.Family,
			Synopsis:    strings.TrimSpace(it.Synopsis),
			Description: strings.TrimSpace(it.Description),
			Solution:    strings.TrimSpace(it.Solution),
			RiskFactor:  strings.TrimSpace(it.RiskFactor),
		})
	}
	return host, nil
}

// ---------- v1 ----------

type v1Document struct {
	Reports []v1Report `xml:"Report"`
}

type v1Report struct {
	Name   string     `xml:"ReportName"`
	Start  string     `xml:"StartTime"`
	Stop   string     `xml:"StopTime"`
	Policy *xmlPolicy `xml:"Policy"`
	Hosts  []v1Host   `xml:"ReportHost"`
}

type v1Host struct {
	Name  string   `xml:"HostName"`
	FQDN  string   `xml:"dns_name"`
	Items []v1Item `xml:"ReportItem"`
}

type v1Item struct {
	Port       string `xml:"port"`
	Severity   string `xml:"severity"`
	PluginID   string `xml:"pluginID"`
	PluginName string `xml:"pluginName"`
	Data       string `xml:"data"`
}

func (d *v1Document) reports(source string) ([]*schema.Report, error) {
	var out []*schema.Report
	for i, rep := range d.Reports {
		name := strings.TrimSpace(rep.Name)
		if len(rep.Hosts) == 0 {
			return nil, fmt.Errorf("report %q: %w", name, ErrNoHosts)
		}
		hosts := make([]*schema.Host, 0, len(rep.Hosts))
		for _, h := range rep.Hosts {
			host, err := h.host()
			if err != nil {
				return nil, fmt.Errorf("report %q: %w", name, err)
			}
			hosts = append(hosts, host)
		}
		info := schema.Info{
			Start: strings.TrimSpace(rep.Start),
			Stop:  strings.TrimSpace(rep.Stop),
		}
		out = append(out, schema.NewReport(source, i, name, rep.Policy.policy(), info, hosts))
	}
	return out, nil
}

func (h *v1Host) host() (*schema.Host, error) {
	addr := strings.TrimSpace(h.Name)
	if addr == "" {
		return nil, errors.New("ReportHost without HostName")
	}
	host := &schema.Host{Address: addr, Properties: map[string]string{}}
	if fqdn := strings.TrimSpace(h.FQDN); fqdn != "" {
		host.Properties["host-fqdn"] = fqdn
	}
	for _, it := range h.Items {
		pid, err := parsePID(it.PluginID)
		if err != nil {
			return nil, fmt.Errorf("host %s: %w", addr, err)
		}
		sev, err := parseSeverity(it.Severity)
		if err != nil {
			return nil, fmt.Errorf("host %s plugin %d: %w", addr, pid, err)
		}
		host.Findings = append(host.Findings, &schema.Finding{
			PID:      pid,
			Name:     strings.TrimSpace(it.PluginName),
			Severity: sev,
			Output:   strings.ReplaceAll(it.Data, `\n`, "\n"),
			Port:     strings.TrimSpace(it.Port),
		})
	}
	return host, nil
}
