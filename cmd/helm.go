package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chalkan3/pko-demo/pkg/config"
)

var helmCmd = &cobra.Command{
	Use:   "helm [helm-args...]",
	Short: "Run helm against the demo's kind cluster",
	Long: `Execute Helm commands by calling the helm binary.

This command requires the 'helm' binary to be installed and available in your PATH.
You can install Helm from: https://helm.sh/docs/intro/install/

The kind cluster's context is passed as --kube-context unless one is given,
so the operator release can be inspected without switching contexts.`,
	Example: `  # List releases in the operator namespace
  pko-demo helm list -n pulumi-kubernetes-operator

  # Show the operator release values
  pko-demo helm get values pulumi-kubernetes-operator -n pulumi-kubernetes-operator

  # Release history
  pko-demo helm history pulumi-kubernetes-operator -n pulumi-kubernetes-operator`,
	DisableFlagParsing: true,
	PersistentPreRunE:  func(*cobra.Command, []string) error { return nil },
	RunE:               runHelm,
}

func init() {
	rootCmd.AddCommand(helmCmd)
}

func runHelm(cmd *cobra.Command, args []string) error {
	// Check if helm is available in PATH
	helmBinary, err := exec.LookPath("helm")
	if err != nil {
		return fmt.Errorf("helm binary not found in PATH. Please install Helm from https://helm.sh/docs/intro/install/")
	}

	c, err := passthroughConfig()
	if err != nil {
		return err
	}

	helmExec := exec.CommandContext(cmd.Context(), helmBinary, helmArgs(c, args)...)
	helmExec.Stdin = os.Stdin
	helmExec.Stdout = cmd.OutOrStdout()
	helmExec.Stderr = cmd.ErrOrStderr()
	helmExec.Env = os.Environ()

	return helmExec.Run()
}

// helmArgs adds --kube-context for the kind cluster unless one was given.
// Plain "helm" and "helm version" need no cluster and are left alone.
func helmArgs(c config.Config, args []string) []string {
	if len(args) == 0 || args[0] == "version" || args[0] == "help" {
		return args
	}
	for _, a := range args {
		if a == "--kube-context" || strings.HasPrefix(a, "--kube-context=") {
			return args
		}
	}
	return append(args, "--kube-context", c.KubeContext())
}
