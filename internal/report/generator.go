package report

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/yorozuya-cybersecurity/nessusview/internal/dedup"
	"github.com/yorozuya-cybersecurity/nessusview/internal/diff"
	"github.com/yorozuya-cybersecurity/nessusview/internal/schema"
	"github.com/yorozuya-cybersecurity/nessusview/pkg/utils"
)

//go:embed templates/report.html.tmpl
var reportHTMLTemplate string

var reportTmpl = template.Must(template.New("report").Parse(reportHTMLTemplate))

var now = time.Now

// ---------- Public API ----------

// RenderHTML renders the HTML report for items of view.
func RenderHTML(w io.Writer, view schema.ReportView, items []dedup.Item, engine *diff.Engine) error {
	vm := buildViewModel(view, items, engine)
	if err := reportTmpl.Execute(w, vm); err != nil {
		return fmt.Errorf("execute template: %w", err)
	}
	return nil
}

// HTMLFileName names the HTML report of view. A single scan run is named
// after its source file, its position in that file and its own name, so runs
// sharing a name do not collide.
func HTMLFileName(view schema.ReportView) string {
	if r, ok := view.(*schema.Report); ok {
		stem := strings.TrimSuffix(filepath.Base(r.Source), filepath.Ext(r.Source))
		return utils.SafeName(fmt.Sprintf("%s_%d_%s", stem, r.Index+1, r.Name)) + ".html"
	}
	return utils.SafeName(view.ReportName()) + ".html"
}

// GenerateHTML writes the HTML report of view to htmlPath.
func GenerateHTML(view schema.ReportView, items []dedup.Item, engine *diff.Engine, htmlPath string) error {
	return utils.WriteFileAtomic(htmlPath, func(w io.Writer) error {
		return RenderHTML(w, view, items, engine)
	})
}

var ErrChromeNotFound = errors.New("chrome/chromium not found")

// PDFOptions configures the headless browser used for PDF output.
type PDFOptions struct {
	// ExecPath overrides browser discovery.
	ExecPath string
	Timeout  time.Duration
}

// GeneratePDF prints an HTML report to a PDF next to it with a local headless
// browser.
func GeneratePDF(ctx context.Context, htmlPath string, opts PDFOptions) (string, error) {
	abs, err := filepath.Abs(htmlPath)
	if err != nil {
		return "", err
	}

	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()
	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()
	if opts.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		browserCtx, cancelTimeout = context.WithTimeout(browserCtx, opts.Timeout)
		defer cancelTimeout()
	}

	var pdf []byte
	err = chromedp.Run(browserCtx,
		chromedp.Navigate("file://"+filepath.ToSlash(abs)),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)
	if errors.Is(err, exec.ErrNotFound) {
		return "", ErrChromeNotFound
	}
	if err != nil {
		return "", fmt.Errorf("print pdf: %w", err)
	}

	pdfPath := strings.TrimSuffix(htmlPath, ".html") + ".pdf"
	err = utils.WriteFileAtomic(pdfPath, func(w io.Writer) error {
		_, err := io.Copy(w, bytes.NewReader(pdf))
		return err
	})
	if err != nil {
		return "", err
	}
	return pdfPath, nil
}

// ---------- View Model & helpers ----------

type viewModel struct {
	Title       string
	GeneratedAt string
	TotalItems  int
	TotalHosts  int
	Counts      []severityCount
	Items       []itemRow
	Generator   string
	Year        int
}

type severityCount struct {
	Name  string
	Class string
	Count int
}

type itemRow struct {
	PID         int
	Severity    string
	Class       string
	Name        string
	Family      string
	RiskFactor  string
	Locations   string
	Synopsis    string
	Description string
	Solution    string
	HostCount   int
	Identical   int
	Summary     string
	Diff        string
}

func buildViewModel(view schema.ReportView, items []dedup.Item, engine *diff.Engine) viewModel {
	t := now().UTC()
	counts := map[schema.Severity]int{}
	rows := make([]itemRow, 0, len(items))

	for _, it := range items {
		out := engine.ItemOutput(it)
		sev := it.Severity()
		counts[sev]++
		rows = append(rows, itemRow{
			PID:         it.PID,
			Severity:    sev.String(),
			Class:       strings.ToLower(sev.String()),
			Name:        strings.TrimSpace(it.Name()),
			Family:      it.Finding.Family,
			RiskFactor:  it.Finding.RiskFactor,
			Locations:   strings.Join(it.Locations(), ", "),
			Synopsis:    it.Finding.Synopsis,
			Description: it.Finding.Description,
			Solution:    it.Finding.Solution,
			HostCount:   len(out.Hosts),
			Identical:   len(out.Identical),
			Summary:     out.Summary,
			Diff:        out.Diff,
		})
	}

	var sc []severityCount
	for _, s := range schema.Severities {
		sc = append(sc, severityCount{Name: s.String(), Class: strings.ToLower(s.String()), Count: counts[s]})
	}

	return viewModel{
		Title:       view.ReportName(),
		GeneratedAt: t.Format(time.RFC3339),
		TotalItems:  len(rows),
		TotalHosts:  len(view.HostList()),
		Counts:      sc,
		Items:       rows,
		Generator:   "nessusview",
		Year:        t.Year(),
	}
}
