package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-shellwords"

	"github.com/chalkan3/pko-demo/pkg/config"
)

// Helm installs and removes the operator chart.
type Helm struct {
	Runner Runner
}

// InstallArgs builds the helm arguments for installing or upgrading the operator.
func InstallArgs(cfg config.Config) ([]string, error) {
	args := []string{
		"upgrade", "--install", cfg.OperatorRelease, cfg.OperatorChart,
		"--namespace", cfg.OperatorNamespace,
		"--create-namespace",
		"--kube-context", cfg.KubeContext(),
		"--wait",
	}
	if cfg.OperatorChartVersion != "" {
		args = append(args, "--version", cfg.OperatorChartVersion)
	}

	if cfg.HelmExtraArgs != "" {
		extra, err := shellwords.Parse(cfg.HelmExtraArgs)
		if err != nil {
			return nil, fmt.Errorf("invalid HELM_EXTRA_ARGS: %w", err)
		}
		args = append(args, extra...)
	}

	return args, nil
}

// InstallOperator runs helm upgrade --install for the operator chart.
func (h Helm) InstallOperator(ctx context.Context, cfg config.Config) error {
	args, err := InstallArgs(cfg)
	if err != nil {
		return err
	}
	if _, err := h.Runner.Run(ctx, "helm", args...); err != nil {
		return fmt.Errorf("failed to install operator release %s: %w", cfg.OperatorRelease, err)
	}
	return nil
}

// UninstallOperator removes the operator release. A release that is already
// gone is not an error.
func (h Helm) UninstallOperator(ctx context.Context, cfg config.Config, namespace string) error {
	res, err := h.Runner.Run(ctx, "helm", "uninstall", cfg.OperatorRelease,
		"--namespace", namespace,
		"--kube-context", cfg.KubeContext(),
		"--wait",
	)
	if err != nil {
		if errors.Is(err, ErrCommandExecution) && strings.Contains(res.Stderr, "not found") {
			return nil
		}
		return fmt.Errorf("failed to uninstall operator release %s: %w", cfg.OperatorRelease, err)
	}
	return nil
}
