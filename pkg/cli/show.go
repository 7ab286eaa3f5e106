package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yorozuya-cybersecurity/nessusview/internal/dedup"
	"github.com/yorozuya-cybersecurity/nessusview/internal/diff"
	"github.com/yorozuya-cybersecurity/nessusview/internal/merge"
	"github.com/yorozuya-cybersecurity/nessusview/internal/schema"
)

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "show FILE...",
		Short:   "Show one plugin's output across hosts and where hosts differ",
		Example: "nessusview show scan.nessus --pid 10863",
		Args:    cobra.MinimumNArgs(1),
		RunE:    runShow,
	}

	cmd.Flags().Int("pid", 0, "Plugin id to show")
	cmd.Flags().Bool("merge", false, "Show the plugin across all files at once")
	cmd.Flags().String("report", "", "Only reports with this name")
	cmd.Flags().Bool("raw", false, "Print the first host's raw plugin output only")
	_ = viper.BindPFlag("show.pid", cmd.Flags().Lookup("pid"))
	_ = viper.BindPFlag("show.merge", cmd.Flags().Lookup("merge"))
	_ = viper.BindPFlag("show.report", cmd.Flags().Lookup("report"))
	_ = viper.BindPFlag("show.raw", cmd.Flags().Lookup("raw"))
	return cmd
}

func runShow(cmd *cobra.Command, args []string) error {
	// plugin 0 (open port) is a valid id
	if !viper.IsSet("show.pid") {
		return errors.New("please provide --pid")
	}
	pid := viper.GetInt("show.pid")
	files, err := loadFiles(args)
	if err != nil {
		return err
	}

	var views []schema.ReportView
	if viper.GetBool("show.merge") {
		views = append(views, merge.New(files...))
	} else {
		name := viper.GetString("show.report")
		for _, f := range files {
			for _, r := range f.AllReports() {
				if name == "" || r.Name == name {
					views = append(views, r)
				}
			}
		}
	}

	engine := newEngine()
	w := cmd.OutOrStdout()
	shown := 0
	for _, v := range views {
		items := dedup.ForView(v)
		for _, it := range items {
			if it.PID != pid {
				continue
			}
			shown++
			warnConflicts(v)
			if err := printItem(w, v, it, viper.GetBool("show.raw"), engine); err != nil {
				return err
			}
		}
	}
	if shown == 0 {
		return fmt.Errorf("plugin %d not found", pid)
	}
	return nil
}

func printItem(w io.Writer, v schema.ReportView, it dedup.Item, raw bool, engine *diff.Engine) error {
	fmt.Fprintf(w, "# %s [%s] %s\n", v.ReportName(), it.Severity(), it)
	printDetails(w, it)
	if raw {
		_, err := fmt.Fprintln(w, it.Finding.DisplayOutput())
		return err
	}
	out := engine.ItemOutput(it)
	if _, err := fmt.Fprintln(w, out.Summary); err != nil {
		return err
	}
	if out.Diff != "" {
		if _, err := fmt.Fprintf(w, "\nDiffs (%d hosts differ from %s)\n\n%s", len(out.Differing), out.Hosts[0], out.Diff); err != nil {
			return err
		}
	}
	return nil
}

// printDetails prints the plugin metadata the export carried, skipping
// fields it left empty.
func printDetails(w io.Writer, it dedup.Item) {
	f := it.Finding
	fields := []struct{ label, value string }{
		{"Family", f.Family},
		{"Risk", f.RiskFactor},
		{"Ports", strings.Join(it.Locations(), ", ")},
		{"Synopsis", f.Synopsis},
		{"Description", f.Description},
		{"Solution", f.Solution},
	}
	printed := false
	for _, fld := range fields {
		if fld.value == "" {
			continue
		}
		fmt.Fprintf(w, "%-12s %s\n", fld.label+":", fld.value)
		printed = true
	}
	if printed {
		fmt.Fprintln(w)
	}
}
