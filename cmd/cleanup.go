package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/chalkan3/pko-demo/pkg/awscheck"
	"github.com/chalkan3/pko-demo/pkg/config"
	"github.com/chalkan3/pko-demo/pkg/kube"
	"github.com/chalkan3/pko-demo/pkg/locator"
	"github.com/chalkan3/pko-demo/pkg/monitor"
	"github.com/chalkan3/pko-demo/pkg/sequencer"
	"github.com/chalkan3/pko-demo/pkg/stack"
	"github.com/chalkan3/pko-demo/pkg/tools"
)

var (
	cleanupForce       bool
	cleanupKeepCluster bool
	cleanupNamespace   string
	cleanupTimeout     time.Duration
)

var cleanupCmd = &cobra.Command{
	Use:     "cleanup",
	Aliases: []string{"destroy"},
	Short:   "Destroy the Stack's AWS resources and tear down the demo",
	Long: `Cleanup deletes the Stack so the operator destroys its AWS resources,
waits for the deletion to finish, verifies the bucket and VPC are gone,
uninstalls the operator and deletes the kind cluster.

If the Stack does not go away in time, cleanup asks whether to remove its
finalizers (or does so with --force). Removing finalizers can leave AWS
resources behind; the final summary lists everything that was not cleaned.`,
	Example: `  # Interactive cleanup
  pko-demo cleanup

  # Unattended, forcing finalizer removal on timeout
  pko-demo cleanup -y --force

  # Keep the kind cluster
  pko-demo cleanup --keep-cluster`,
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.Flags().BoolVar(&cleanupForce, "force", false, "Remove Stack finalizers if deletion times out")
	cleanupCmd.Flags().BoolVar(&cleanupKeepCluster, "keep-cluster", false, "Do not delete the kind cluster")
	cleanupCmd.Flags().StringVarP(&cleanupNamespace, "namespace", "n", "", "Namespace to search first for the Stack")
	cleanupCmd.Flags().DurationVar(&cleanupTimeout, "timeout", 0, "How long to wait for Stack deletion (default CLEANUP_TIMEOUT)")
}

func runCleanup(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	c := cfg
	if cleanupTimeout > 0 {
		c.CleanupTimeout = cleanupTimeout
	}

	printer.Header("Cleaning up Pulumi Kubernetes Operator demo")

	cl := &cleanup{cfg: c, kind: tools.Kind{Runner: runner()}, helm: tools.Helm{Runner: runner()}}
	ledger := newSequencer().Run(ctx, cl.steps()...)

	printSummary(printer, &cl.summary, ledger)
	return ledgerError(ledger)
}

// cleanup holds state shared between cleanup steps.
type cleanup struct {
	cfg     config.Config
	kind    tools.Kind
	helm    tools.Helm
	client  *kube.Client
	summary summary

	clusterExists  bool
	stackNamespace string
	outputs        map[string]interface{}
}

func (c *cleanup) steps() []sequencer.Step {
	c.summary.title = "Cleanup summary"

	noCluster := func() (bool, string) {
		if !c.clusterExists {
			return true, "cluster not found"
		}
		return false, ""
	}
	noStack := func() (bool, string) {
		if skip, reason := noCluster(); skip {
			return skip, reason
		}
		if c.stackNamespace == "" {
			return true, "stack not found"
		}
		return false, ""
	}

	return []sequencer.Step{
		{Name: "check prerequisites", Run: c.checkPrerequisites},
		{Name: "locate stack", Run: c.locateStack, Skip: noCluster},
		{Name: "record outputs", Run: c.recordOutputs, Skip: noStack},
		{Name: "delete stack", Run: c.deleteStack, Skip: noStack},
		{Name: "wait for deletion", Run: c.waitForDeletion, Skip: noStack},
		{Name: "verify aws resources", Run: c.verifyAWS, Skip: func() (bool, string) {
			if len(c.outputs) == 0 {
				return true, "no recorded outputs"
			}
			return false, ""
		}},
		{Name: "remove stack namespace", Run: c.removeNamespace, Skip: noCluster},
		{Name: "uninstall operator", Run: c.uninstallOperator, Skip: noCluster},
		{Name: "delete kind cluster", Run: c.deleteCluster, Skip: func() (bool, string) {
			if cleanupKeepCluster {
				c.summary.missed("kind cluster %s (kept)", c.cfg.ClusterName)
				return true, "--keep-cluster"
			}
			return noCluster()
		}},
	}
}

func (c *cleanup) checkPrerequisites(ctx context.Context) error {
	if err := checkPrerequisites(ctx, []string{"kind", "helm"}); err != nil {
		return err
	}

	exists, err := c.kind.Exists(ctx, c.cfg.ClusterName)
	if err != nil {
		return err
	}
	if !exists {
		printer.Warning("kind cluster %s not found; nothing to clean in the cluster", c.cfg.ClusterName)
		return nil
	}

	client, err := kube.NewClient(kubeconfig, c.cfg.KubeContext())
	if err != nil {
		return err
	}
	if err := checkPrerequisites(ctx, nil, client.ReachabilityProbe()); err != nil {
		return err
	}

	c.client = client
	c.clusterExists = true
	return nil
}

func (c *cleanup) locateStack(ctx context.Context) error {
	candidates := append([]string{cleanupNamespace}, c.cfg.StackNamespaceCandidates()...)

	ns, ok := locator.Find(ctx, c.client,
		locator.Resource{Kind: kube.KindStack, Name: c.cfg.StackName},
		locator.Options{OnError: func(ns string, err error) { printer.Debug("  %s: %v", ns, err) }},
		candidates...,
	)
	if !ok {
		printer.Warning("Stack %s not found in any of %v", c.cfg.StackName, candidates)
		return nil
	}

	c.stackNamespace = ns
	printer.Info("Stack %s found in namespace %s", c.cfg.StackName, ns)
	return nil
}

func (c *cleanup) recordOutputs(ctx context.Context) error {
	outputs, err := c.client.StackOutputs(ctx, c.stackNamespace, c.cfg.StackName)
	if err != nil {
		return err
	}
	c.outputs = outputs
	for _, k := range sortedKeys(outputs) {
		printer.Debug("  %s: %v", k, outputs[k])
	}
	return nil
}

func (c *cleanup) deleteStack(ctx context.Context) error {
	return c.client.DeleteStack(ctx, c.stackNamespace, c.cfg.StackName)
}

func (c *cleanup) waitForDeletion(ctx context.Context) error {
	ns, name := c.stackNamespace, c.cfg.StackName
	printer.Info("Waiting up to %s for the operator to destroy stack %s/%s", c.cfg.CleanupTimeout, ns, name)

	fetch := func(ctx context.Context) (string, error) {
		return c.client.StackDeletionState(ctx, ns, name)
	}
	res := monitor.Run(ctx, fetch, pollConfig(c.cfg.PollInterval, c.cfg.CleanupTimeout, stack.DeletedStates, stack.FailureStates))

	switch res.Outcome {
	case monitor.OutcomeSucceeded:
		c.summary.ok("stack %s/%s and its AWS resources", ns, name)
		return nil
	case monitor.OutcomeFailed:
		dumpDiagnostics(c.client, ns, name)
		c.summary.missed("stack %s/%s (destroy failed)", ns, name)
		return fmt.Errorf("destroy of stack %s/%s failed", ns, name)
	case monitor.OutcomeCanceled:
		return ctx.Err()
	}

	printer.Warning("Stack %s/%s still present after %s (last status: %s)", ns, name, res.Elapsed.Round(time.Second), res.LastStatus)
	question := fmt.Sprintf("Remove finalizers from stack %s/%s? AWS resources may be left behind", ns, name)
	if !cleanupForce && !confirm(ctx, question, false) {
		printer.Warning("Check progress with: %s", describeHint(ns, name))
		c.summary.missed("stack %s/%s (deletion timed out)", ns, name)
		return nil
	}

	if err := c.client.RemoveStackFinalizers(ctx, ns, name); err != nil {
		return err
	}
	printer.Warning("Finalizers removed from stack %s/%s", ns, name)
	c.summary.ok("stack %s/%s (finalizers removed)", ns, name)
	c.summary.missed("AWS resources of stack %s/%s may remain", ns, name)
	return nil
}

func (c *cleanup) verifyAWS(ctx context.Context) error {
	clients, err := awscheck.NewClients(ctx, c.cfg)
	if err != nil {
		return err
	}

	leftovers, err := awscheck.VerifyRemoved(ctx, clients, c.outputs)
	if err != nil {
		return err
	}
	for _, l := range leftovers {
		printer.Warning("Still exists: %s", l)
		c.summary.missed("%s", l)
	}
	if len(leftovers) == 0 {
		printer.Success("No recorded AWS resources remain")
	}
	return nil
}

func (c *cleanup) removeNamespace(ctx context.Context) error {
	ns := c.stackNamespace
	if ns == "" {
		ns = c.cfg.StackNamespace
	}

	if err := c.client.DeleteServiceAccountBinding(ctx, ns, stack.ServiceAccountName); err != nil {
		return err
	}
	if ns == config.DefaultNamespace {
		return nil
	}
	if err := c.client.DeleteNamespace(ctx, ns); err != nil {
		return err
	}
	c.summary.ok("namespace %s", ns)
	return nil
}

func (c *cleanup) uninstallOperator(ctx context.Context) error {
	ns, ok := locator.Find(ctx, c.client,
		locator.Resource{Kind: kube.KindDeployment, Name: c.cfg.OperatorRelease},
		locator.Options{},
		c.cfg.OperatorNamespaceCandidates()...,
	)
	if !ok {
		printer.Info("Operator not installed")
		return nil
	}

	err := printer.Spin("Uninstalling operator from "+ns, func() error {
		return c.helm.UninstallOperator(ctx, c.cfg, ns)
	})
	if err != nil {
		c.summary.missed("operator release %s", c.cfg.OperatorRelease)
		return err
	}
	c.summary.ok("operator release %s", c.cfg.OperatorRelease)
	return nil
}

func (c *cleanup) deleteCluster(ctx context.Context) error {
	err := printer.Spin("Deleting kind cluster "+c.cfg.ClusterName, func() error {
		return c.kind.Delete(ctx, c.cfg.ClusterName)
	})
	if err != nil {
		c.summary.missed("kind cluster %s", c.cfg.ClusterName)
		return err
	}
	c.summary.ok("kind cluster %s", c.cfg.ClusterName)
	return nil
}
