package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	kubectlcmd "k8s.io/kubectl/pkg/cmd"

	"github.com/chalkan3/pko-demo/pkg/config"
	"github.com/chalkan3/pko-demo/pkg/envfile"
)

var kubectlCmd = &cobra.Command{
	Use:   "kubectl [kubectl-args...]",
	Short: "Run kubectl against the demo's kind cluster",
	Long: `Execute kubectl commands directly using the embedded Kubernetes client.

This command embeds the official kubectl client, providing full kubectl
functionality without requiring a separate kubectl installation.

The kind cluster's context is selected automatically unless --context is
given. All standard kubectl commands and flags are supported.`,
	Example: `  # List Stacks
  pko-demo kubectl get stacks -A

  # Describe the demo Stack
  pko-demo kubectl describe stack dev -n pulumi-stacks

  # Operator logs
  pko-demo kubectl logs -n pulumi-kubernetes-operator deploy/pulumi-kubernetes-operator`,
	DisableFlagParsing: true,
	// Flags are not parsed here, so configuration comes from the environment only.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE:              runKubectl,
}

func init() {
	rootCmd.AddCommand(kubectlCmd)
}

func runKubectl(cmd *cobra.Command, args []string) error {
	c, err := passthroughConfig()
	if err != nil {
		return err
	}

	// Create the root kubectl command with all subcommands
	kubectlRootCmd := kubectlcmd.NewDefaultKubectlCommand()
	kubectlRootCmd.SetArgs(kubectlArgs(c, args))
	kubectlRootCmd.SetIn(os.Stdin)
	kubectlRootCmd.SetOut(cmd.OutOrStdout())
	kubectlRootCmd.SetErr(cmd.ErrOrStderr())

	return kubectlRootCmd.ExecuteContext(cmd.Context())
}

// quietLogger keeps env file diagnostics out of passthrough output.
type quietLogger struct{}

func (quietLogger) Info(string, ...any)    {}
func (quietLogger) Warning(string, ...any) {}

// passthroughConfig loads configuration for commands that do not parse
// flags, so only the default env file and the environment apply.
func passthroughConfig() (config.Config, error) {
	vars, err := envfile.Merge(envfile.Load(envFile, quietLogger{}), environment, envfile.PreferProcess)
	if err != nil {
		return config.Config{}, err
	}
	return config.Load(vars)
}

// kubectlArgs adds --context for the kind cluster unless one was given.
func kubectlArgs(c config.Config, args []string) []string {
	for _, a := range args {
		if a == "--context" || strings.HasPrefix(a, "--context=") {
			return args
		}
	}
	return append([]string{"--context", c.KubeContext()}, args...)
}
