package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chalkan3/pko-demo/pkg/envfile"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, "pulumi-operator-demo", cfg.ClusterName)
	assert.Equal(t, DefaultOperatorNamespace, cfg.OperatorNamespace)
	assert.Equal(t, DefaultStackNamespace, cfg.StackNamespace)
	assert.Equal(t, "dev", cfg.StackName)
	assert.Equal(t, "us-west-2", cfg.AWSRegion)
	assert.Equal(t, 15*time.Second, cfg.PollInterval)
	assert.Equal(t, 10*time.Minute, cfg.DeployTimeout)
	assert.Equal(t, 5*time.Minute, cfg.CleanupTimeout)
	assert.Equal(t, "kind-pulumi-operator-demo", cfg.KubeContext())
	assert.Equal(t, "https://github.com/chalkan3/pko-demo", cfg.ProjectRepo)
	assert.Equal(t, "infra", cfg.RepoDir)
	assert.Equal(t, "aws-infra", cfg.ProjectName)
}

func TestLoad_NamespaceAlias(t *testing.T) {
	tests := []struct {
		name     string
		vars     map[string]string
		expected string
	}{
		{"NewNameOnly", map[string]string{"STACK_NAMESPACE": "stacks"}, "stacks"},
		{"LegacyOnly", map[string]string{"NAMESPACE": "legacy"}, "legacy"},
		{"NewWinsOverLegacy", map[string]string{"STACK_NAMESPACE": "stacks", "NAMESPACE": "legacy"}, "stacks"},
		{"EmptyNewFallsBackToLegacy", map[string]string{"STACK_NAMESPACE": "", "NAMESPACE": "legacy"}, "legacy"},
		{"NeitherSet", map[string]string{}, DefaultStackNamespace},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.vars)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cfg.StackNamespace)
		})
	}
}

func TestLoad_Durations(t *testing.T) {
	cfg, err := Load(map[string]string{"POLL_INTERVAL": "2s", "DEPLOY_TIMEOUT": "0s"})
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, time.Duration(0), cfg.DeployTimeout)

	_, err = Load(map[string]string{"POLL_INTERVAL": "0s"})
	assert.Error(t, err)

	_, err = Load(map[string]string{"POLL_INTERVAL": "soon"})
	assert.Error(t, err)
}

func TestLoad_EmptyClusterName(t *testing.T) {
	_, err := Load(map[string]string{"CLUSTER_NAME": ""})
	assert.ErrorContains(t, err, "CLUSTER_NAME")
}

func TestConfig_IsPassedByValue(t *testing.T) {
	cfg, err := Load(map[string]string{"STACK_NAMESPACE": "a"})
	require.NoError(t, err)

	other := cfg.WithStackNamespace("b")
	assert.Equal(t, "a", cfg.StackNamespace)
	assert.Equal(t, "b", other.StackNamespace)
	assert.Equal(t, "a", cfg.WithStackNamespace("").StackNamespace)
}

func TestCandidates(t *testing.T) {
	cfg, err := Load(map[string]string{"STACK_NAMESPACE": "custom", "NAMESPACE": "legacy"})
	require.NoError(t, err)

	assert.Equal(t, []string{"custom", "legacy", DefaultStackNamespace, DefaultNamespace}, cfg.StackNamespaceCandidates())
	assert.Equal(t, []string{DefaultOperatorNamespace, "pulumi-operator", DefaultNamespace}, cfg.OperatorNamespaceCandidates())
}

func TestQualifiedStackName(t *testing.T) {
	cfg, err := Load(map[string]string{"STACK_NAME": "dev"})
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.QualifiedStackName())

	cfg, err = Load(map[string]string{"STACK_NAME": "dev", "PULUMI_ORG": "acme", "PROJECT_NAME": "infra"})
	require.NoError(t, err)
	assert.Equal(t, "acme/infra/dev", cfg.QualifiedStackName())
}

func TestSummary_RedactsSecrets(t *testing.T) {
	cfg, err := Load(map[string]string{
		"AWS_ACCESS_KEY_ID":     "AKIAEXAMPLE",
		"AWS_SECRET_ACCESS_KEY": "topsecret",
		"PULUMI_ACCESS_TOKEN":   "pul-xyz",
	})
	require.NoError(t, err)
	assert.True(t, cfg.HasAWSCredentials())

	for _, s := range cfg.Summary() {
		assert.NotContains(t, s.Value, "AKIAEXAMPLE")
		assert.NotContains(t, s.Value, "topsecret")
		assert.NotContains(t, s.Value, "pul-xyz")
		if s.Name == "PULUMI_ACCESS_TOKEN" {
			assert.Equal(t, envfile.Mask, s.Value)
		}
	}
}
