package infra

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pulumi/pulumi/sdk/v3/go/auto"
	"github.com/pulumi/pulumi/sdk/v3/go/auto/optpreview"

	"github.com/chalkan3/pko-demo/pkg/config"
)

// PreviewResult summarizes a local preview.
type PreviewResult struct {
	StackName string
	Changes   map[string]int
}

// WorkspaceEnv is the environment handed to the Pulumi CLI for a local run.
// Without a Pulumi Cloud token the state lives in a file backend under dir.
func WorkspaceEnv(cfg config.Config, dir string) map[string]string {
	env := map[string]string{
		"AWS_REGION": cfg.AWSRegion,
	}
	if cfg.HasAWSCredentials() {
		env["AWS_ACCESS_KEY_ID"] = cfg.AWSAccessKeyID
		env["AWS_SECRET_ACCESS_KEY"] = cfg.AWSSecretAccessKey
		if cfg.AWSSessionToken != "" {
			env["AWS_SESSION_TOKEN"] = cfg.AWSSessionToken
		}
	}

	if cfg.PulumiAccessToken != "" {
		env["PULUMI_ACCESS_TOKEN"] = cfg.PulumiAccessToken
	} else {
		env["PULUMI_BACKEND_URL"] = "file://" + filepath.ToSlash(dir)
		env["PULUMI_CONFIG_PASSPHRASE"] = ""
	}
	return env
}

// PreviewStackName is the stack name used for a local preview.
func PreviewStackName(cfg config.Config) string {
	if cfg.PulumiAccessToken == "" {
		return cfg.StackName
	}
	return cfg.QualifiedStackName()
}

// Preview runs the program through the Automation API without deploying,
// streaming engine output to w.
func Preview(ctx context.Context, cfg config.Config, w io.Writer) (*PreviewResult, error) {
	stateDir, err := os.MkdirTemp("", "pko-demo-preview-")
	if err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	defer os.RemoveAll(stateDir)

	stackName := PreviewStackName(cfg)
	program := Program(ProgramArgs{Region: cfg.AWSRegion})

	s, err := auto.UpsertStackInlineSource(ctx, stackName, cfg.ProjectName, program,
		auto.EnvVars(WorkspaceEnv(cfg, stateDir)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stack %s: %w", stackName, err)
	}

	if err := s.SetConfig(ctx, "aws:region", auto.ConfigValue{Value: cfg.AWSRegion}); err != nil {
		return nil, fmt.Errorf("failed to set aws:region: %w", err)
	}

	res, err := s.Preview(ctx, optpreview.ProgressStreams(w))
	if err != nil {
		return nil, fmt.Errorf("preview failed: %w", err)
	}

	changes := make(map[string]int, len(res.ChangeSummary))
	for op, n := range res.ChangeSummary {
		changes[string(op)] = n
	}

	return &PreviewResult{StackName: stackName, Changes: changes}, nil
}
