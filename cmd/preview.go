package cmd

import (
	"sort"

	"github.com/spf13/cobra"

	"github.com/chalkan3/pko-demo/pkg/infra"
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Preview the Stack's AWS program locally",
	Long: `Run the infra/ Pulumi program through the Automation API, without a
cluster, and show the planned changes. With the default PROJECT_REPO and
PROJECT_REPO_DIR this is the program the operator deploys; a Stack pointed at
another repository runs that repository's program instead. The Pulumi CLI must
be installed. Without PULUMI_ACCESS_TOKEN a throwaway local backend is used.`,
	Example: `  pko-demo preview`,
	RunE:    runPreview,
}

func init() {
	rootCmd.AddCommand(previewCmd)
}

func runPreview(cmd *cobra.Command, _ []string) error {
	if err := checkPrerequisites(cmd.Context(), []string{"pulumi"}); err != nil {
		return err
	}

	printer.Header("Preview of " + cfg.ProjectName)
	res, err := infra.Preview(cmd.Context(), cfg, printer.Writer())
	if err != nil {
		return err
	}

	ops := make([]string, 0, len(res.Changes))
	for op := range res.Changes {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	printer.Success("Preview of stack %s complete", res.StackName)
	for _, op := range ops {
		printer.Info("  %-8s %d", op, res.Changes[op])
	}
	return nil
}
