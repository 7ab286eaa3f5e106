package report

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/yorozuya-cybersecurity/nessusview/internal/dedup"
	"github.com/yorozuya-cybersecurity/nessusview/internal/diff"
	"github.com/yorozuya-cybersecurity/nessusview/internal/tree"
	"github.com/yorozuya-cybersecurity/nessusview/pkg/utils"
)

var ErrNoItems = errors.New("nothing to export")

var itemRule = strings.Repeat("=", 20) + "\n"

// WriteText writes the summary and diffs of every item, each preceded by a rule.
func WriteText(w io.Writer, items []dedup.Item, engine *diff.Engine) error {
	for _, it := range items {
		out := engine.ItemOutput(it)
		if _, err := io.WriteString(w, itemRule); err != nil {
			return err
		}
		if _, err := io.WriteString(w, out.Summary+"\n\n"); err != nil {
			return err
		}
		if _, err := io.WriteString(w, out.Diff); err != nil {
			return err
		}
	}
	return nil
}

// NodeItems returns the items a node stands for: every item of a report or
// merged report, the list of a list node, or the single item of a finding.
func NodeItems(n *tree.Node) []dedup.Item {
	switch n.Kind {
	case tree.KindReport:
		return dedup.ForView(n.Report)
	case tree.KindMergedReport:
		return dedup.ForView(n.Merged)
	case tree.KindItemList:
		return n.Items
	case tree.KindFinding:
		return []dedup.Item{n.Item}
	default:
		return nil
	}
}

// WriteNodeText exports whatever a tree node carries. Text nodes are written
// verbatim.
func WriteNodeText(w io.Writer, n *tree.Node, engine *diff.Engine) error {
	if n.Kind == tree.KindText {
		_, err := io.WriteString(w, n.Text)
		return err
	}
	items := NodeItems(n)
	if len(items) == 0 {
		return fmt.Errorf("%s %q: %w", n.Kind, n.Label, ErrNoItems)
	}
	return WriteText(w, items, engine)
}

// ExportText writes a node's text export to path.
func ExportText(path string, n *tree.Node, engine *diff.Engine) error {
	return utils.WriteFileAtomic(path, func(w io.Writer) error {
		return WriteNodeText(w, n, engine)
	})
}
