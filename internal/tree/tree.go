// Package tree projects loaded scan files onto the label tree a viewer shows.
// Every node carries a kind tag and the payload for that kind only.
package tree

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yorozuya-cybersecurity/nessusview/internal/dedup"
	"github.com/yorozuya-cybersecurity/nessusview/internal/merge"
	"github.com/yorozuya-cybersecurity/nessusview/internal/schema"
)

type Kind int

const (
	// KindGroup nodes only hold children.
	KindGroup Kind = iota
	KindReport
	KindMergedReport
	KindFinding
	KindItemList
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindReport:
		return "report"
	case KindMergedReport:
		return "merged-report"
	case KindFinding:
		return "finding"
	case KindItemList:
		return "item-list"
	case KindText:
		return "text"
	default:
		return "group"
	}
}

// Node is one entry of the tree.
type Node struct {
	Kind  Kind
	Label string

	Report *schema.Report // KindReport
	Merged *merge.Report  // KindMergedReport
	Item   dedup.Item     // KindFinding
	Items  []dedup.Item   // KindItemList
	Text   string         // KindText

	Children []*Node
}

const (
	RootLabel     = "Scans"
	MergedLabel   = "Merged Files"
	FindingsLabel = "Findings"
)

// Build returns the "Scans" root: one node per file, one per report beneath
// it, and a "Merged Files" node when includeMerged is set and any report loaded.
func Build(files []*schema.ScanFile, includeMerged bool) *Node {
	root := &Node{Label: RootLabel}
	for _, f := range files {
		fileNode := &Node{Label: f.ShortName()}
		for _, r := range f.AllReports() {
			fileNode.Children = append(fileNode.Children, reportNode(r))
		}
		root.Children = append(root.Children, fileNode)
	}
	if includeMerged {
		m := merge.New(files...)
		if len(m.AllReports()) > 0 {
			root.Children = append(root.Children, &Node{
				Kind:     KindMergedReport,
				Label:    MergedLabel,
				Merged:   m,
				Children: []*Node{findingsNode(m)},
			})
		}
	}
	return root
}

func reportNode(r *schema.Report) *Node {
	n := &Node{Kind: KindReport, Label: r.Name, Report: r}
	n.Children = append(n.Children, &Node{Kind: KindText, Label: "Info", Text: r.Info.String()})
	if r.Policy != nil {
		n.Children = append(n.Children, &Node{Kind: KindText, Label: "Policy", Text: r.Policy.String()})
	}
	hosts := make([]string, 0, len(r.Hosts))
	for _, h := range r.Hosts {
		hosts = append(hosts, h.String())
	}
	n.Children = append(n.Children, &Node{Kind: KindText, Label: "Hosts", Text: strings.Join(hosts, "\n")})
	n.Children = append(n.Children, findingsNode(r))
	return n
}

func findingsNode(view schema.ReportView) *Node {
	b := view.FindingsBySeverity()
	n := &Node{Kind: KindItemList, Label: FindingsLabel, Items: dedup.Sorted(view, b.All())}
	for _, sev := range schema.Severities {
		items := dedup.Sorted(view, b.Get(sev))
		list := &Node{Kind: KindItemList, Label: sev.Plural(), Items: items}
		for _, it := range items {
			list.Children = append(list.Children, &Node{Kind: KindFinding, Label: it.String(), Item: it})
		}
		n.Children = append(n.Children, list)
	}
	return n
}

// Find follows labels from n downwards and returns the node reached, or nil.
func (n *Node) Find(labels ...string) *Node {
	cur := n
	for _, l := range labels {
		var next *Node
		for _, c := range cur.Children {
			if c.Label == l {
				next = c
				break
			}
		}
		if next == nil {
			return nil
		}
		cur = next
	}
	return cur
}

// Walk visits n and its descendants depth first.
func (n *Node) Walk(fn func(node *Node, depth int) error) error {
	return n.walk(fn, 0)
}

func (n *Node) walk(fn func(*Node, int) error, depth int) error {
	if err := fn(n, depth); err != nil {
		return err
	}
	for _, c := range n.Children {
		if err := c.walk(fn, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// Count is the number of items below a list node, the number of hosts of a
// finding node, and zero otherwise.
func (n *Node) Count() int {
	switch n.Kind {
	case KindItemList:
		return len(n.Items)
	case KindFinding:
		return len(n.Item.Hosts())
	default:
		return 0
	}
}

// Render writes the labels as an indented outline.
func Render(w io.Writer, root *Node) error {
	return root.Walk(func(n *Node, depth int) error {
		line := strings.Repeat("  ", depth) + n.Label
		if c := n.Count(); c > 0 {
			line += fmt.Sprintf(" (%d)", c)
		}
		_, err := fmt.Fprintln(w, line)
		return err
	})
}

type outline struct {
	Label    string    `json:"label" yaml:"label"`
	Kind     string    `json:"kind" yaml:"kind"`
	Count    int       `json:"count,omitempty" yaml:"count,omitempty"`
	Children []outline `json:"children,omitempty" yaml:"children,omitempty"`
}

func toOutline(n *Node) outline {
	o := outline{Label: n.Label, Kind: n.Kind.String(), Count: n.Count()}
	for _, c := range n.Children {
		o.Children = append(o.Children, toOutline(c))
	}
	return o
}

// Marshal serialises labels, kinds and counts as "yaml" or "json".
func Marshal(root *Node, format string) ([]byte, error) {
	o := toOutline(root)
	switch strings.ToLower(format) {
	case "yaml", "yml":
		return yaml.Marshal(o)
	case "json":
		return json.MarshalIndent(o, "", "  ")
	default:
		return nil, fmt.Errorf("unsupported tree format: %s", format)
	}
}
