package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yorozuya-cybersecurity/nessusview/internal/tree"
)

func newTreeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tree FILE...",
		Short:   "Print the scans, reports and findings of .nessus files as a tree",
		Example: "nessusview tree scan1.nessus scan2.nessus --merge --format yaml",
		Args:    cobra.MinimumNArgs(1),
		RunE:    runTree,
	}

	cmd.Flags().Bool("merge", false, "Add a merged view of all files")
	cmd.Flags().String("format", "text", "Output format: text, yaml, json")
	_ = viper.BindPFlag("tree.merge", cmd.Flags().Lookup("merge"))
	_ = viper.BindPFlag("tree.format", cmd.Flags().Lookup("format"))
	return cmd
}

func runTree(cmd *cobra.Command, args []string) error {
	files, err := loadFiles(args)
	if err != nil {
		return err
	}

	root := tree.Build(files, viper.GetBool("tree.merge"))
	_ = root.Walk(func(n *tree.Node, _ int) error {
		switch n.Kind {
		case tree.KindReport:
			warnConflicts(n.Report)
		case tree.KindMergedReport:
			warnConflicts(n.Merged)
		}
		return nil
	})

	format := viper.GetString("tree.format")
	if format == "" || format == "text" {
		return tree.Render(cmd.OutOrStdout(), root)
	}
	data, err := tree.Marshal(root, format)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
