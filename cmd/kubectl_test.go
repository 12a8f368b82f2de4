package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chalkan3/pko-demo/pkg/config"
	"github.com/chalkan3/pko-demo/pkg/envfile"
)

func TestKubectlCmd_Structure(t *testing.T) {
	assert.NotNil(t, kubectlCmd)
	assert.Equal(t, "kubectl [kubectl-args...]", kubectlCmd.Use)
	assert.NotEmpty(t, kubectlCmd.Short)
	assert.NotEmpty(t, kubectlCmd.Long)
	assert.NotEmpty(t, kubectlCmd.Example)
}

func TestKubectlCmd_DisableFlagParsing(t *testing.T) {
	assert.True(t, kubectlCmd.DisableFlagParsing, "kubectl command should have DisableFlagParsing=true")
	assert.NotNil(t, kubectlCmd.RunE, "kubectl command should have RunE function")
}

func TestKubectlCmd_Examples(t *testing.T) {
	examples := kubectlCmd.Example
	assert.Contains(t, examples, "get stacks")
	assert.Contains(t, examples, "describe stack")
	assert.Contains(t, examples, "logs")
}

func TestKubectlArgs(t *testing.T) {
	c, err := config.Load(map[string]string{"CLUSTER_NAME": "demo"})
	require.NoError(t, err)

	assert.Equal(t, []string{"--context", "kind-demo", "get", "pods"}, kubectlArgs(c, []string{"get", "pods"}))
	assert.Equal(t, []string{"get", "pods", "--context=other"}, kubectlArgs(c, []string{"get", "pods", "--context=other"}))
	assert.Equal(t, []string{"--context", "other", "get"}, kubectlArgs(c, []string{"--context", "other", "get"}))
}

func TestPassthroughConfig_UsesEnvironment(t *testing.T) {
	saved, savedFile := environment, envFile
	environment = envfile.MapEnvironment{"CLUSTER_NAME": "from-env"}
	envFile = "does-not-exist.env"
	defer func() { environment, envFile = saved, savedFile }()

	c, err := passthroughConfig()
	require.NoError(t, err)
	assert.Equal(t, "kind-from-env", c.KubeContext())
}
