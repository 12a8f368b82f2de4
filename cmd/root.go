package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/chalkan3/pko-demo/pkg/config"
	"github.com/chalkan3/pko-demo/pkg/envfile"
	"github.com/chalkan3/pko-demo/pkg/sequencer"
	"github.com/chalkan3/pko-demo/pkg/ui"
)

var (
	envFile     string
	envOverride bool
	autoApprove bool
	verbose     bool
	kubeconfig  string
	noColor     bool

	// Set by PersistentPreRunE.
	printer *ui.Printer
	cfg     config.Config

	// environment is where .env values are merged. Tests swap it for a map.
	environment envfile.Environment = envfile.OSEnvironment{}

	// Version information - set by main.go
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
	BuiltBy = "unknown"
)

// SetVersionInfo sets the version information from main.go
func SetVersionInfo(version, commit, date, builtBy string) {
	Version = version
	Commit = commit
	Date = date
	BuiltBy = builtBy

	rootCmd.Version = Version
	rootCmd.SetVersionTemplate(fmt.Sprintf(`pko-demo %s
  Commit:    %s
  Built:     %s
  Built by:  %s
`, Version, Commit, Date, BuiltBy))
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "pko-demo",
	Short: "Pulumi Kubernetes Operator demo on a local kind cluster",
	Long: `pko-demo creates a local kind cluster, installs the Pulumi Kubernetes
Operator with Helm and provisions AWS resources (S3, VPC, IAM) through a
declarative Stack custom resource.

Configuration comes from the process environment and an optional .env file.
Run 'pko-demo env' to see the effective settings.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load")
	rootCmd.PersistentFlags().BoolVar(&envOverride, "env-override", false, "Let env file values override the process environment")
	rootCmd.PersistentFlags().BoolVarP(&autoApprove, "yes", "y", false, "Never prompt; abort on the first failure")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output, including operator logs while waiting")
	rootCmd.PersistentFlags().StringVar(&kubeconfig, "kubeconfig", "", "Path to kubeconfig (default: standard loading rules)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	SetVersionInfo(Version, Commit, Date, BuiltBy)
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	if noColor {
		ui.DisableColor()
	}
	printer = ui.NewPrinter(cmd.OutOrStdout(), verbose)

	precedence := envfile.PreferProcess
	if envOverride {
		precedence = envfile.PreferFile
	}

	vars, err := envfile.Merge(envfile.Load(envFile, printer), environment, precedence)
	if err != nil {
		return err
	}
	printer.Debug("Environment precedence: %s", precedence)

	cfg, err = config.Load(vars)
	if err != nil {
		return err
	}

	return nil
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	return exitCode(ctx, err)
}

// exitError carries a ledger's exit code once the summary has been printed.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func ledgerError(l *sequencer.Ledger) error {
	if err := l.Err(); err != nil {
		return &exitError{code: l.ExitCode(), err: err}
	}
	return nil
}

func exitCode(ctx context.Context, err error) int {
	if err == nil {
		return sequencer.ExitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}

	p := printer
	if p == nil {
		p = ui.NewPrinter(os.Stderr, false)
	}

	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, sequencer.ErrInterrupted) {
		p.Warning("Interrupted")
		return sequencer.ExitInterrupted
	}

	p.Error("%v", err)
	return sequencer.ExitFailure
}

// attended reports whether prompts may be shown.
func attended() bool {
	return !autoApprove && term.IsTerminal(int(os.Stdin.Fd()))
}
