package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/chalkan3/pko-demo/pkg/kube"
	"github.com/chalkan3/pko-demo/pkg/locator"
	"github.com/chalkan3/pko-demo/pkg/monitor"
	"github.com/chalkan3/pko-demo/pkg/stack"
)

var (
	outputFormat    string
	statusNamespace string
	statusWatch     bool
)

// StackStatus represents the stack status for JSON/YAML output
type StackStatus struct {
	Cluster           string                 `json:"cluster" yaml:"cluster"`
	OperatorNamespace string                 `json:"operatorNamespace,omitempty" yaml:"operatorNamespace,omitempty"`
	Namespace         string                 `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Stack             string                 `json:"stack" yaml:"stack"`
	State             string                 `json:"state" yaml:"state"`
	Message           string                 `json:"message,omitempty" yaml:"message,omitempty"`
	Outputs           map[string]interface{} `json:"outputs,omitempty" yaml:"outputs,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the operator and Stack status",
	Long: `Display where the operator runs, the Stack's current state and its
outputs. With --watch, keep polling until the Stack succeeds, fails or
DEPLOY_TIMEOUT elapses.`,
	Example: `  # Show status
  pko-demo status

  # JSON output
  pko-demo status --format json

  # Follow until the Stack settles
  pko-demo status --watch`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVar(&outputFormat, "format", "table", "Output format: table|json|yaml")
	statusCmd.Flags().StringVarP(&statusNamespace, "namespace", "n", "", "Namespace to search first for the Stack")
	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "Poll until the Stack reaches a terminal state")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	// Validate output format
	if outputFormat != "table" && outputFormat != "json" && outputFormat != "yaml" {
		return fmt.Errorf("invalid output format: %s (must be table, json, or yaml)", outputFormat)
	}

	client, err := kube.NewClient(kubeconfig, cfg.KubeContext())
	if err != nil {
		return err
	}

	var status *StackStatus
	err = printer.Spin("Fetching stack status", func() error {
		var ferr error
		status, ferr = collectStatus(ctx, client)
		return ferr
	})
	if err != nil {
		return err
	}

	if statusWatch && status.Namespace != "" {
		res := monitor.Run(ctx, func(ctx context.Context) (string, error) {
			return client.StackState(ctx, status.Namespace, status.Stack)
		}, pollConfig(cfg.PollInterval, cfg.DeployTimeout, stack.SuccessStates, stack.FailureStates))

		if res.Outcome == monitor.OutcomeCanceled {
			return ctx.Err()
		}
		if res.Outcome == monitor.OutcomeTimedOut {
			printer.Warning("Stack did not settle within %s", res.Elapsed.Round(time.Second))
		}
		if status, err = collectStatus(ctx, client); err != nil {
			return err
		}
	}

	return printStatus(status)
}

func collectStatus(ctx context.Context, client *kube.Client) (*StackStatus, error) {
	status := &StackStatus{Cluster: cfg.ClusterName, Stack: cfg.StackName, State: "not found"}

	if ns, ok := locator.Find(ctx, client,
		locator.Resource{Kind: kube.KindDeployment, Name: cfg.OperatorRelease},
		locator.Options{}, cfg.OperatorNamespaceCandidates()...); ok {
		status.OperatorNamespace = ns
	}

	candidates := append([]string{statusNamespace}, cfg.StackNamespaceCandidates()...)
	ns, ok := locator.Find(ctx, client,
		locator.Resource{Kind: kube.KindStack, Name: cfg.StackName},
		locator.Options{OnError: func(ns string, err error) { printer.Debug("  %s: %v", ns, err) }},
		candidates...)
	if !ok {
		return status, nil
	}
	status.Namespace = ns

	obj, err := client.GetStack(ctx, ns, cfg.StackName)
	if err != nil {
		return nil, err
	}
	status.State = stack.State(obj)
	status.Message = stack.Message(obj)
	status.Outputs = stack.Outputs(obj)

	return status, nil
}

func printStatus(s *StackStatus) error {
	switch outputFormat {
	case "json":
		out, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(printer.Writer(), string(out))
		return nil
	case "yaml":
		out, err := yaml.Marshal(s)
		if err != nil {
			return err
		}
		fmt.Fprint(printer.Writer(), string(out))
		return nil
	}

	printer.Header("Status")
	printer.Info("Cluster:   %s (context %s)", s.Cluster, cfg.KubeContext())
	if s.OperatorNamespace != "" {
		printer.Info("Operator:  %s", s.OperatorNamespace)
	} else {
		printer.Warning("Operator:  not installed")
	}

	if s.Namespace == "" {
		printer.Warning("Stack %s not found", s.Stack)
		return nil
	}

	line := fmt.Sprintf("Stack:     %s/%s %s", s.Namespace, s.Stack, s.State)
	switch s.State {
	case "succeeded":
		printer.Success("%s", line)
	case "failed":
		printer.Error("%s", line)
	default:
		printer.Info("%s", line)
	}
	if s.Message != "" {
		printer.Block(s.Message)
	}
	if len(s.Outputs) > 0 {
		printer.Info("Outputs:")
		for _, k := range sortedKeys(s.Outputs) {
			printer.Block(fmt.Sprintf("%s: %v", k, s.Outputs[k]))
		}
	}
	return nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
