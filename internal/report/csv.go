package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/yorozuya-cybersecurity/nessusview/internal/dedup"
	"github.com/yorozuya-cybersecurity/nessusview/internal/diff"
	"github.com/yorozuya-cybersecurity/nessusview/pkg/utils"
)

// CSVHeader is the first row of every CSV export.
var CSVHeader = []string{"PID", "Severity", "Hosts", "Output", "Diffs"}

// WriteCSV writes one row per item. Each item's output is computed once.
func WriteCSV(w io.Writer, items []dedup.Item, engine *diff.Engine) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, it := range items {
		out := engine.ItemOutput(it)
		addrs := make([]string, 0, len(out.Hosts))
		for _, h := range out.Hosts {
			addrs = append(addrs, h.Address)
		}
		row := []string{
			fmt.Sprint(it.PID),
			it.Severity().String(),
			strings.Join(addrs, "\n"),
			out.Summary,
			out.Diff,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportCSV writes the CSV export to path. The file only appears once it is
// complete.
func ExportCSV(path string, items []dedup.Item, engine *diff.Engine) error {
	return utils.WriteFileAtomic(path, func(w io.Writer) error {
		return WriteCSV(w, items, engine)
	})
}
