package cli

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/yorozuya-cybersecurity/nessusview/internal/dedup"
	"github.com/yorozuya-cybersecurity/nessusview/internal/merge"
	reportpkg "github.com/yorozuya-cybersecurity/nessusview/internal/report"
	"github.com/yorozuya-cybersecurity/nessusview/internal/schema"
	"github.com/yorozuya-cybersecurity/nessusview/internal/tree"
	"github.com/yorozuya-cybersecurity/nessusview/pkg/utils"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export findings as CSV, text, HTML or PDF",
	}
	cmd.PersistentFlags().String("file", "", "Output file name (default: inside --output)")
	cmd.PersistentFlags().String("severity", "", "Only these severities, e.g. high,med")
	_ = viper.BindPFlag("export.file", cmd.PersistentFlags().Lookup("file"))
	_ = viper.BindPFlag("export.severity", cmd.PersistentFlags().Lookup("severity"))

	cmd.AddCommand(newExportCSVCmd())
	cmd.AddCommand(newExportTextCmd())
	cmd.AddCommand(newExportHTMLCmd())
	return cmd
}

func newExportCSVCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "csv FILE...",
		Short:   "Write one row per finding of all files merged",
		Example: "nessusview export csv *.nessus --file findings.csv",
		Args:    cobra.MinimumNArgs(1),
		RunE:    runExportCSV,
	}
}

func newExportTextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "text FILE...",
		Short:   "Write summaries and diffs of a tree node as plain text",
		Example: `nessusview export text scan.nessus --node "scan.nessus/Weekly/Findings/Highs"`,
		Args:    cobra.MinimumNArgs(1),
		RunE:    runExportText,
	}
	cmd.Flags().String("node", "", "Slash separated tree path below Scans (default: Merged Files)")
	_ = viper.BindPFlag("export.node", cmd.Flags().Lookup("node"))
	return cmd
}

func newExportHTMLCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "html FILE...",
		Short:   "Render an HTML report per scan run (or one merged), optionally as PDF",
		Example: "nessusview export html scan.nessus --merge --pdf",
		Args:    cobra.MinimumNArgs(1),
		RunE:    runExportHTML,
	}
	cmd.Flags().Bool("merge", false, "One report for all files")
	cmd.Flags().Bool("pdf", false, "Also print each report to PDF with headless Chrome")
	cmd.Flags().String("chrome", "", "Path to the Chrome/Chromium binary")
	cmd.Flags().Int("pdf-timeout", 60, "PDF rendering timeout in seconds")
	_ = viper.BindPFlag("export.merge", cmd.Flags().Lookup("merge"))
	_ = viper.BindPFlag("pdf.enabled", cmd.Flags().Lookup("pdf"))
	_ = viper.BindPFlag("pdf.chrome", cmd.Flags().Lookup("chrome"))
	_ = viper.BindPFlag("pdf.timeout", cmd.Flags().Lookup("pdf-timeout"))
	return cmd
}

func exportPath(def, ext string) string {
	name := viper.GetString("export.file")
	if name == "" {
		name = def
	}
	if !strings.HasSuffix(name, ext) {
		name += ext
	}
	if filepath.IsAbs(name) || strings.ContainsRune(name, filepath.Separator) {
		return name
	}
	return filepath.Join(viper.GetString("output"), name)
}

func selectedItems(view schema.ReportView) ([]dedup.Item, error) {
	sevs, err := parseSeverities(viper.GetString("export.severity"))
	if err != nil {
		return nil, err
	}
	warnConflicts(view)
	return dedup.ForView(view, sevs...), nil
}

func runExportCSV(_ *cobra.Command, args []string) error {
	files, err := loadFiles(args)
	if err != nil {
		return err
	}
	merged := merge.New(files...)
	items, err := selectedItems(merged)
	if err != nil {
		return err
	}

	path := exportPath("nessusview", ".csv")
	if err := reportpkg.ExportCSV(path, items, newEngine()); err != nil {
		return err
	}
	fmt.Printf("📊 CSV export: %s (%d findings)\n", path, len(items))
	return nil
}

func runExportText(_ *cobra.Command, args []string) error {
	files, err := loadFiles(args)
	if err != nil {
		return err
	}
	root := tree.Build(files, true)

	var node *tree.Node
	if p := viper.GetString("export.node"); p != "" {
		node = root.Find(strings.Split(p, "/")...)
		if node == nil {
			return fmt.Errorf("no tree node %q", p)
		}
	} else {
		node = root.Find(tree.MergedLabel)
	}
	if node == nil {
		return reportpkg.ErrNoItems
	}

	if sev := viper.GetString("export.severity"); sev != "" && node.Kind != tree.KindText {
		sevs, err := parseSeverities(sev)
		if err != nil {
			return err
		}
		node = filterNode(node, sevs)
	}

	path := exportPath(utils.SafeName(node.Label), ".txt")
	if err := reportpkg.ExportText(path, node, newEngine()); err != nil {
		return err
	}
	fmt.Printf("📝 Text export: %s\n", path)
	return nil
}

// filterNode narrows the items of node to the given severities.
func filterNode(node *tree.Node, sevs []schema.Severity) *tree.Node {
	keep := make(map[schema.Severity]bool, len(sevs))
	for _, s := range sevs {
		keep[s] = true
	}
	var items []dedup.Item
	for _, it := range reportpkg.NodeItems(node) {
		if keep[it.Severity()] {
			items = append(items, it)
		}
	}
	return &tree.Node{Kind: tree.KindItemList, Label: node.Label, Items: items}
}

func runExportHTML(cmd *cobra.Command, args []string) error {
	files, err := loadFiles(args)
	if err != nil {
		return err
	}

	var views []schema.ReportView
	if viper.GetBool("export.merge") {
		views = append(views, merge.New(files...))
	} else {
		for _, f := range files {
			for _, r := range f.AllReports() {
				views = append(views, r)
			}
		}
	}

	engine := newEngine()
	outDir := viper.GetString("output")
	used := make(map[string]bool, len(views))
	for _, v := range views {
		items, err := selectedItems(v)
		if err != nil {
			return err
		}
		htmlPath := uniquePath(used, filepath.Join(outDir, reportpkg.HTMLFileName(v)))
		if err := reportpkg.GenerateHTML(v, items, engine, htmlPath); err != nil {
			return err
		}
		fmt.Printf("📝 HTML report: %s\n", htmlPath)

		// Optional PDF (Chromedp-based)
		if viper.GetBool("pdf.enabled") {
			opts := reportpkg.PDFOptions{
				ExecPath: viper.GetString("pdf.chrome"),
				Timeout:  time.Duration(viper.GetInt("pdf.timeout")) * time.Second,
			}
			pdfPath, err := reportpkg.GeneratePDF(cmd.Context(), htmlPath, opts)
			if err != nil {
				logger.Warn("PDF generation failed", zap.String("html", htmlPath), zap.Error(err))
				continue
			}
			fmt.Printf("📄 PDF report:  %s\n", pdfPath)
		}
	}
	return nil
}

// uniquePath returns path, or path with a numeric suffix when an earlier
// report of this run already took it.
func uniquePath(used map[string]bool, path string) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	candidate := path
	for n := 2; used[candidate]; n++ {
		candidate = fmt.Sprintf("%s_%d%s", base, n, ext)
	}
	used[candidate] = true
	return candidate
}
