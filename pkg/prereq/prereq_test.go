package prereq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeLookPath(installed ...string) func(string) (string, error) {
	set := map[string]bool{}
	for _, n := range installed {
		set[n] = true
	}
	return func(name string) (string, error) {
		if set[name] {
			return "/usr/local/bin/" + name, nil
		}
		return "", errors.New("not found")
	}
}

func staticProbe(name string, r ProbeResult, calls *int) Probe {
	return Probe{Name: name, Run: func(context.Context) ProbeResult {
		if calls != nil {
			*calls++
		}
		return r
	}}
}

func TestChecker_AllPresent(t *testing.T) {
	var passed []string
	c := &Checker{
		Commands: []string{"kind", "kubectl", "helm"},
		Probes:   []Probe{staticProbe("cluster", Success("v1.31.0"), nil)},
		LookPath: fakeLookPath("kind", "kubectl", "helm"),
		OnPass:   func(name, _ string) { passed = append(passed, name) },
	}

	require.NoError(t, c.Check(context.Background()))
	assert.Equal(t, []string{"kind", "kubectl", "helm", "cluster"}, passed)
}

func TestChecker_FirstMissingCommandNamed(t *testing.T) {
	probeCalls := 0
	c := &Checker{
		Commands: []string{"kind", "kubectl", "helm"},
		Probes:   []Probe{staticProbe("cluster", Success(""), &probeCalls)},
		LookPath: fakeLookPath("kind"),
	}

	err := c.Check(context.Background())
	var missing *MissingDependencyError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "kubectl", missing.Name)
	assert.Contains(t, err.Error(), "kubectl")
	assert.Zero(t, probeCalls, "probes must not run after a missing command")
}

func TestChecker_ProbeFailures(t *testing.T) {
	tests := []struct {
		name   string
		result ProbeResult
	}{
		{"Failure", Failure("connection refused")},
		{"Unknown", Unknown("timed out")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			laterCalls := 0
			c := &Checker{
				Probes: []Probe{
					staticProbe("cluster", tt.result, nil),
					staticProbe("aws", Success(""), &laterCalls),
				},
				LookPath: fakeLookPath(),
			}

			err := c.Check(context.Background())
			var failed *ProbeFailedError
			require.ErrorAs(t, err, &failed)
			assert.Equal(t, "cluster", failed.Probe)
			assert.Equal(t, tt.result.Status, failed.Result.Status)
			assert.Zero(t, laterCalls)
		})
	}
}

func TestWithTimeout(t *testing.T) {
	slow := Probe{Name: "slow", Run: func(ctx context.Context) ProbeResult {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return Success("late")
	}}

	start := time.Now()
	r := WithTimeout(20*time.Millisecond, slow).Run(context.Background())
	assert.Equal(t, StatusUnknown, r.Status)
	assert.Less(t, time.Since(start), time.Second)

	fast := WithTimeout(time.Second, staticProbe("fast", Success("ok"), nil))
	assert.Equal(t, Success("ok"), fast.Run(context.Background()))
	assert.Equal(t, "fast", fast.Name)
}
