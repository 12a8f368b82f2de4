package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Print the effective configuration with secrets redacted",
	Long: `Print every setting pko-demo uses after merging the process environment
with the env file. Values of keys that look like secrets (ACCESS_KEY, SECRET,
TOKEN, PASSWORD, PASSPHRASE) are always masked.`,
	Example: `  pko-demo env
  pko-demo env --env-file staging.env --env-override`,
	RunE: runEnv,
}

func init() {
	rootCmd.AddCommand(envCmd)
}

func runEnv(_ *cobra.Command, _ []string) error {
	precedence := "process environment wins"
	if envOverride {
		precedence = "env file wins"
	}

	printer.Header("Configuration")
	printer.Info("Env file:   %s (%s)", envFile, precedence)
	printer.Info("Context:    %s", cfg.KubeContext())
	printer.Info("Stack:      %s", cfg.QualifiedStackName())

	w := tabwriter.NewWriter(printer.Writer(), 0, 0, 2, ' ', 0)
	for _, s := range cfg.Summary() {
		v := s.Value
		if v == "" {
			v = "-"
		}
		fmt.Fprintf(w, "  %s\t%s\n", s.Name, v)
	}
	return w.Flush()
}
