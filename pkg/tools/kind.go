package tools

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/chalkan3/pko-demo/pkg/prereq"
)

const noClustersMessage = "No kind clusters found."

// Kind manages local clusters through the kind CLI.
type Kind struct {
	Runner Runner
}

// Clusters lists existing kind clusters.
func (k Kind) Clusters(ctx context.Context) ([]string, error) {
	res, err := k.Runner.Run(ctx, "kind", "get", "clusters")
	if err != nil {
		return nil, fmt.Errorf("failed to list kind clusters: %w", err)
	}

	var clusters []string
	for _, line := range strings.Split(res.Stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == noClustersMessage {
			continue
		}
		clusters = append(clusters, line)
	}
	return clusters, nil
}

// Exists reports whether a cluster named name exists.
func (k Kind) Exists(ctx context.Context, name string) (bool, error) {
	clusters, err := k.Clusters(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(clusters, name), nil
}

// Create creates a cluster and waits for its control plane.
func (k Kind) Create(ctx context.Context, name string) error {
	if _, err := k.Runner.Run(ctx, "kind", "create", "cluster", "--name", name, "--wait", "120s"); err != nil {
		return fmt.Errorf("failed to create kind cluster %s: %w", name, err)
	}
	return nil
}

// Delete deletes a cluster. kind treats a missing cluster as success.
func (k Kind) Delete(ctx context.Context, name string) error {
	if _, err := k.Runner.Run(ctx, "kind", "delete", "cluster", "--name", name); err != nil {
		return fmt.Errorf("failed to delete kind cluster %s: %w", name, err)
	}
	return nil
}

// ClusterExistsProbe succeeds when the named kind cluster exists.
func ClusterExistsProbe(k Kind, name string) prereq.Probe {
	return prereq.WithTimeout(prereq.DefaultProbeTimeout, prereq.Probe{
		Name: "kind cluster " + name,
		Run: func(ctx context.Context) prereq.ProbeResult {
			ok, err := k.Exists(ctx, name)
			switch {
			case err != nil:
				return prereq.Unknown(err.Error())
			case !ok:
				return prereq.Failure(fmt.Sprintf("cluster %q not found", name))
			default:
				return prereq.Success("cluster " + name + " exists")
			}
		},
	})
}
