// Package config builds the immutable runtime configuration from the merged
// environment variable set.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"

	"github.com/chalkan3/pko-demo/pkg/envfile"
)

const (
	DefaultStackNamespace    = "pulumi-stacks"
	DefaultOperatorNamespace = "pulumi-kubernetes-operator"
	DefaultNamespace         = "default"
)

// Config is built once at startup and passed by value.
type Config struct {
	ClusterName       string `env:"CLUSTER_NAME" envDefault:"pulumi-operator-demo"`
	OperatorNamespace string `env:"OPERATOR_NAMESPACE" envDefault:"pulumi-kubernetes-operator"`
	StackNamespace    string `env:"STACK_NAMESPACE"`
	// LegacyNamespace is the older NAMESPACE name, used only when STACK_NAMESPACE is unset.
	LegacyNamespace string `env:"NAMESPACE"`

	StackName     string `env:"STACK_NAME" envDefault:"dev"`
	ProjectName   string `env:"PROJECT_NAME" envDefault:"aws-infra"`
	PulumiOrg     string `env:"PULUMI_ORG"`
	// The defaults point the operator at this repository's infra/ program.
	ProjectRepo   string `env:"PROJECT_REPO" envDefault:"https://github.com/chalkan3/pko-demo"`
	ProjectBranch string `env:"PROJECT_BRANCH" envDefault:"main"`
	RepoDir       string `env:"PROJECT_REPO_DIR" envDefault:"infra"`

	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	AWSSessionToken    string `env:"AWS_SESSION_TOKEN"`
	AWSRegion          string `env:"AWS_REGION" envDefault:"us-west-2"`
	PulumiAccessToken  string `env:"PULUMI_ACCESS_TOKEN"`

	OperatorChart        string `env:"OPERATOR_CHART" envDefault:"oci://ghcr.io/pulumi/helm-charts/pulumi-kubernetes-operator"`
	OperatorChartVersion string `env:"OPERATOR_CHART_VERSION"`
	OperatorRelease      string `env:"OPERATOR_RELEASE" envDefault:"pulumi-kubernetes-operator"`
	HelmExtraArgs        string `env:"HELM_EXTRA_ARGS"`

	PollInterval   time.Duration `env:"POLL_INTERVAL" envDefault:"15s"`
	DeployTimeout  time.Duration `env:"DEPLOY_TIMEOUT" envDefault:"10m"`
	CleanupTimeout time.Duration `env:"CLEANUP_TIMEOUT" envDefault:"5m"`
}

// Load parses vars into a Config and resolves the namespace alias.
func Load(vars map[string]string) (Config, error) {
	// A nil map would make env fall back to os.Environ.
	if vars == nil {
		vars = map[string]string{}
	}

	var cfg Config
	if err := env.Parse(&cfg, env.Options{Environment: vars}); err != nil {
		return Config{}, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if cfg.StackNamespace == "" {
		cfg.StackNamespace = cfg.LegacyNamespace
	}
	if cfg.StackNamespace == "" {
		cfg.StackNamespace = DefaultStackNamespace
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	if c.ClusterName == "" {
		errs = append(errs, errors.New("CLUSTER_NAME must not be empty"))
	}
	if c.StackName == "" {
		errs = append(errs, errors.New("STACK_NAME must not be empty"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("POLL_INTERVAL must be positive, got %s", c.PollInterval))
	}
	if c.DeployTimeout < 0 || c.CleanupTimeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}

	return errors.Join(errs...)
}

// WithStackNamespace returns a copy with an explicit stack namespace.
func (c Config) WithStackNamespace(ns string) Config {
	if ns != "" {
		c.StackNamespace = ns
	}
	return c
}

// KubeContext is the kubeconfig context kind creates for the cluster.
func (c Config) KubeContext() string {
	return "kind-" + c.ClusterName
}

// QualifiedStackName is the stack reference the operator passes to Pulumi.
func (c Config) QualifiedStackName() string {
	if c.PulumiOrg == "" {
		return c.StackName
	}
	return fmt.Sprintf("%s/%s/%s", c.PulumiOrg, c.ProjectName, c.StackName)
}

// StackNamespaceCandidates lists where a Stack may live, explicit settings first.
func (c Config) StackNamespaceCandidates() []string {
	return dedupe(c.StackNamespace, c.LegacyNamespace, DefaultStackNamespace, DefaultNamespace)
}

// OperatorNamespaceCandidates lists where the operator may be installed.
func (c Config) OperatorNamespaceCandidates() []string {
	return dedupe(c.OperatorNamespace, DefaultOperatorNamespace, "pulumi-operator", DefaultNamespace)
}

func dedupe(names ...string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// Setting is a single displayed configuration value.
type Setting struct {
	Name  string
	Value string
}

// Summary returns the effective settings with secrets redacted.
func (c Config) Summary() []Setting {
	raw := []Setting{
		{"CLUSTER_NAME", c.ClusterName},
		{"OPERATOR_NAMESPACE", c.OperatorNamespace},
		{"STACK_NAMESPACE", c.StackNamespace},
		{"STACK_NAME", c.StackName},
		{"PROJECT_NAME", c.ProjectName},
		{"PULUMI_ORG", c.PulumiOrg},
		{"PROJECT_REPO", c.ProjectRepo},
		{"PROJECT_BRANCH", c.ProjectBranch},
		{"PROJECT_REPO_DIR", c.RepoDir},
		{"AWS_REGION", c.AWSRegion},
		{"AWS_ACCESS_KEY_ID", c.AWSAccessKeyID},
		{"AWS_SECRET_ACCESS_KEY", c.AWSSecretAccessKey},
		{"PULUMI_ACCESS_TOKEN", c.PulumiAccessToken},
		{"OPERATOR_CHART", c.OperatorChart},
		{"OPERATOR_CHART_VERSION", c.OperatorChartVersion},
		{"POLL_INTERVAL", c.PollInterval.String()},
		{"DEPLOY_TIMEOUT", c.DeployTimeout.String()},
		{"CLEANUP_TIMEOUT", c.CleanupTimeout.String()},
	}

	out := make([]Setting, len(raw))
	for i, s := range raw {
		v := s.Value
		if v != "" {
			v = envfile.Redact(s.Name, v)
		}
		out[i] = Setting{Name: s.Name, Value: v}
	}
	return out
}

// HasAWSCredentials reports whether static AWS keys were provided.
func (c Config) HasAWSCredentials() bool {
	return c.AWSAccessKeyID != "" && c.AWSSecretAccessKey != ""
}
