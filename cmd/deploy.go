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
	"github.com/chalkan3/pko-demo/pkg/prereq"
	"github.com/chalkan3/pko-demo/pkg/sequencer"
	"github.com/chalkan3/pko-demo/pkg/stack"
	"github.com/chalkan3/pko-demo/pkg/tools"
)

var (
	deployDryRun      bool
	deployNamespace   string
	deployTimeout     time.Duration
	deploySkipCluster bool
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Create the kind cluster, install the operator and apply the Stack",
	Long: `Deploy runs the full demo in order:
  • check prerequisites (kind, helm, AWS credentials)
  • create the kind cluster (skipped when it already exists)
  • install the Pulumi Kubernetes Operator with Helm
  • prepare the stack namespace, secrets and service account
  • apply the Stack and wait until the operator reports a result

Without --yes and on a terminal, a failed step asks whether to continue.`,
	Example: `  # Deploy with settings from .env
  pko-demo deploy

  # Show what would be run and applied
  pko-demo deploy --dry-run

  # Unattended, custom namespace
  pko-demo deploy -y --namespace demo-stacks --timeout 15m`,
	RunE: runDeploy,
}

func init() {
	rootCmd.AddCommand(deployCmd)
	deployCmd.Flags().BoolVar(&deployDryRun, "dry-run", false, "Print commands and manifests without changing anything")
	deployCmd.Flags().StringVarP(&deployNamespace, "namespace", "n", "", "Namespace for the Stack (overrides STACK_NAMESPACE)")
	deployCmd.Flags().DurationVar(&deployTimeout, "timeout", 0, "How long to wait for the Stack (default DEPLOY_TIMEOUT)")
	deployCmd.Flags().BoolVar(&deploySkipCluster, "skip-cluster", false, "Use the current cluster instead of creating a kind cluster")
}

func runDeploy(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	c := cfg.WithStackNamespace(deployNamespace)
	if deployTimeout > 0 {
		c.DeployTimeout = deployTimeout
	}

	if deployDryRun {
		return dryRunDeploy(ctx, c)
	}

	printer.Header("Deploying Pulumi Kubernetes Operator demo")
	if !c.HasAWSCredentials() {
		printer.Warning("AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY not set; the Stack will not be able to reach AWS")
	}

	d := &deployment{cfg: c, kind: tools.Kind{Runner: runner()}, helm: tools.Helm{Runner: runner()}}
	ledger := newSequencer().Run(ctx, d.steps(ctx)...)

	printSummary(printer, &d.summary, ledger)
	return ledgerError(ledger)
}

func runner() tools.Runner {
	if verbose {
		return tools.ExecRunner{Stream: printer.Writer()}
	}
	return tools.ExecRunner{}
}

// deployment holds state shared between deploy steps.
type deployment struct {
	cfg     config.Config
	kind    tools.Kind
	helm    tools.Helm
	client  *kube.Client
	summary summary

	operatorNamespace string
}

func (d *deployment) steps(ctx context.Context) []sequencer.Step {
	d.summary.title = "Deployment summary"

	return []sequencer.Step{
		{Name: "check prerequisites", Run: d.checkPrerequisites},
		{Name: "create kind cluster", Run: d.createCluster, Skip: func() (bool, string) {
			if deploySkipCluster {
				return true, "--skip-cluster"
			}
			if ok, err := d.kind.Exists(ctx, d.cfg.ClusterName); err == nil && ok {
				printer.Info("Cluster %s already exists", d.cfg.ClusterName)
				return true, "cluster exists"
			}
			return false, ""
		}},
		{Name: "install operator", Run: d.installOperator},
		{Name: "locate operator", Run: d.locateOperator},
		{Name: "prepare stack namespace", Run: d.prepareNamespace},
		{Name: "apply stack", Run: d.applyStack},
		{Name: "wait for stack", Run: d.waitForStack},
	}
}

func (d *deployment) checkPrerequisites(ctx context.Context) error {
	var probes []prereq.Probe
	if d.cfg.HasAWSCredentials() {
		clients, err := awscheck.NewClients(ctx, d.cfg)
		if err != nil {
			return err
		}
		probes = append(probes, awscheck.CredentialsProbe(clients.STS))
	}
	return checkPrerequisites(ctx, []string{"kind", "helm"}, probes...)
}

func (d *deployment) createCluster(ctx context.Context) error {
	err := printer.Spin(fmt.Sprintf("Creating kind cluster %s", d.cfg.ClusterName), func() error {
		return d.kind.Create(ctx, d.cfg.ClusterName)
	})
	if err != nil {
		return err
	}
	d.summary.ok("kind cluster %s", d.cfg.ClusterName)
	return nil
}

func (d *deployment) connect() error {
	if d.client != nil {
		return nil
	}
	kubeContext := d.cfg.KubeContext()
	if deploySkipCluster {
		kubeContext = ""
	}
	client, err := kube.NewClient(kubeconfig, kubeContext)
	if err != nil {
		return err
	}
	d.client = client
	return nil
}

func (d *deployment) installOperator(ctx context.Context) error {
	err := printer.Spin("Installing "+d.cfg.OperatorChart, func() error {
		return d.helm.InstallOperator(ctx, d.cfg)
	})
	if err != nil {
		return err
	}
	d.summary.ok("operator release %s", d.cfg.OperatorRelease)
	return nil
}

func (d *deployment) locateOperator(ctx context.Context) error {
	if err := d.connect(); err != nil {
		return err
	}

	ns, ok := locator.Find(ctx, d.client,
		locator.Resource{Kind: kube.KindDeployment, Name: d.cfg.OperatorRelease},
		locator.Options{OnError: func(ns string, err error) { printer.Debug("  %s: %v", ns, err) }},
		d.cfg.OperatorNamespaceCandidates()...,
	)
	if !ok {
		return fmt.Errorf("operator deployment %s not found in %v", d.cfg.OperatorRelease, d.cfg.OperatorNamespaceCandidates())
	}

	d.operatorNamespace = ns
	printer.Info("Operator found in namespace %s", ns)
	return nil
}

func (d *deployment) prepareNamespace(ctx context.Context) error {
	if err := d.connect(); err != nil {
		return err
	}
	ns := d.cfg.StackNamespace

	created, err := d.client.EnsureNamespace(ctx, ns)
	if err != nil {
		return err
	}
	if created {
		printer.Info("Created namespace %s", ns)
	}

	if d.cfg.HasAWSCredentials() {
		if err := d.client.ApplySecret(ctx, stack.CredentialsSecret(d.cfg)); err != nil {
			return err
		}
	}
	if s := stack.PulumiTokenSecret(d.cfg); s != nil {
		if err := d.client.ApplySecret(ctx, s); err != nil {
			return err
		}
	} else {
		printer.Warning("PULUMI_ACCESS_TOKEN not set; the operator needs a state backend")
	}

	if err := d.client.EnsureServiceAccount(ctx, ns, stack.ServiceAccountName); err != nil {
		return err
	}

	d.summary.ok("namespace %s with secrets and service account", ns)
	return nil
}

func (d *deployment) applyStack(ctx context.Context) error {
	if err := d.connect(); err != nil {
		return err
	}
	obj := stack.Manifest(d.cfg)
	if err := d.client.ApplyStack(ctx, obj); err != nil {
		return err
	}
	d.summary.ok("stack %s/%s", obj.GetNamespace(), obj.GetName())
	return nil
}

func (d *deployment) waitForStack(ctx context.Context) error {
	if err := d.connect(); err != nil {
		return err
	}
	ns, name := d.cfg.StackNamespace, d.cfg.StackName
	printer.Info("Waiting up to %s for stack %s/%s", d.cfg.DeployTimeout, ns, name)

	fetch := func(ctx context.Context) (string, error) {
		return d.client.StackState(ctx, ns, name)
	}

	var follower monitor.Follower
	if verbose && d.operatorNamespace != "" {
		follower = func(ctx context.Context) error {
			return d.client.FollowLogs(ctx, d.operatorNamespace, kube.OperatorSelector, printer.Writer())
		}
	}

	res := monitor.Watch(ctx, fetch, pollConfig(d.cfg.PollInterval, d.cfg.DeployTimeout, stack.SuccessStates, stack.FailureStates), follower)
	if res.FollowerErr != nil {
		printer.Debug("Log follower stopped: %v", res.FollowerErr)
	}

	switch res.Outcome {
	case monitor.OutcomeSucceeded:
		printOutputs(ctx, d.client, ns, name)
		return nil
	case monitor.OutcomeFailed:
		printer.Error("Stack %s/%s failed after %d checks", ns, name, res.Attempts)
		dumpDiagnostics(d.client, ns, name)
		return fmt.Errorf("stack %s/%s reported %s", ns, name, res.LastStatus)
	case monitor.OutcomeCanceled:
		return ctx.Err()
	default:
		printer.Warning("Stack %s/%s not ready after %s (last status: %s)", ns, name, res.Elapsed.Round(time.Second), res.LastStatus)
		printer.Warning("Check progress with: %s", describeHint(ns, name))
		d.summary.missed("stack %s/%s still reconciling", ns, name)
		return nil
	}
}

func printOutputs(ctx context.Context, client *kube.Client, ns, name string) {
	outputs, err := client.StackOutputs(ctx, ns, name)
	if err != nil || len(outputs) == 0 {
		return
	}
	printer.Info("Stack outputs:")
	for _, k := range sortedKeys(outputs) {
		printer.Block(fmt.Sprintf("%s: %v", k, outputs[k]))
	}
}

func dryRunDeploy(ctx context.Context, c config.Config) error {
	dry := tools.DryRunner{Out: printer.Writer()}

	printer.Header("Dry run")
	printer.Info("Commands:")
	if !deploySkipCluster {
		if err := (tools.Kind{Runner: dry}).Create(ctx, c.ClusterName); err != nil {
			return err
		}
	}
	if err := (tools.Helm{Runner: dry}).InstallOperator(ctx, c); err != nil {
		return err
	}

	out, err := stack.Render(stack.CredentialsSecret(c), stack.PulumiTokenSecret(c), stack.Manifest(c))
	if err != nil {
		return err
	}
	printer.Info("Manifests:")
	fmt.Fprint(printer.Writer(), string(out))
	return nil
}
