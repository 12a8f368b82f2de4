// Package stack builds the Pulumi Kubernetes Operator Stack resource and the
// secrets it references, and interprets its status.
package stack

import (
	"fmt"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/chalkan3/pko-demo/pkg/config"
)

const (
	Group    = "pulumi.com"
	Version  = "v1"
	Kind     = "Stack"
	Resource = "stacks"

	ServiceAccountName   = "pulumi"
	AWSCredentialsSecret = "aws-credentials"
	PulumiAPISecret      = "pulumi-api-secret"
	PulumiAccessTokenKey = "accessToken"

	// DeletedState is reported once the Stack is gone from the API server.
	DeletedState = "deleted"

	managedByLabel = "app.kubernetes.io/managed-by"
	managedByValue = "pko-demo"

	stateSucceeded   = "succeeded"
	stateFailed      = "failed"
	stateReconciling = "reconciling"
	statePending     = "pending"

	conditionReady       = "Ready"
	conditionStalled     = "Stalled"
	conditionReconciling = "Reconciling"
)

// GVR is the Stack resource.
var GVR = schema.GroupVersionResource{Group: Group, Version: Version, Resource: Resource}

// GVK is the Stack kind.
var GVK = schema.GroupVersionKind{Group: Group, Version: Version, Kind: Kind}

// Terminal values for the monitor.
var (
	SuccessStates = []string{stateSucceeded}
	FailureStates = []string{stateFailed}
	DeletedStates = []string{DeletedState}
)

// Manifest builds the Stack resource for cfg.
func Manifest(cfg config.Config) *unstructured.Unstructured {
	secretRef := func(name, key string) map[string]interface{} {
		return map[string]interface{}{
			"type": "Secret",
			"secret": map[string]interface{}{
				"name": name,
				"key":  key,
			},
		}
	}

	envRefs := map[string]interface{}{
		"AWS_ACCESS_KEY_ID":     secretRef(AWSCredentialsSecret, "AWS_ACCESS_KEY_ID"),
		"AWS_SECRET_ACCESS_KEY": secretRef(AWSCredentialsSecret, "AWS_SECRET_ACCESS_KEY"),
	}
	if cfg.AWSSessionToken != "" {
		envRefs["AWS_SESSION_TOKEN"] = secretRef(AWSCredentialsSecret, "AWS_SESSION_TOKEN")
	}
	if cfg.PulumiAccessToken != "" {
		envRefs["PULUMI_ACCESS_TOKEN"] = secretRef(PulumiAPISecret, PulumiAccessTokenKey)
	}

	spec := map[string]interface{}{
		"serviceAccountName": ServiceAccountName,
		"stack":              cfg.QualifiedStackName(),
		"projectRepo":        cfg.ProjectRepo,
		"branch":             cfg.ProjectBranch,
		"refresh":            true,
		"destroyOnFinalize":  true,
		"envRefs":            envRefs,
		"config": map[string]interface{}{
			"aws:region": cfg.AWSRegion,
		},
	}
	if cfg.RepoDir != "" {
		spec["repoDir"] = cfg.RepoDir
	}

	obj := &unstructured.Unstructured{Object: map[string]interface{}{
		"spec": spec,
	}}
	obj.SetAPIVersion(GVK.GroupVersion().String())
	obj.SetKind(Kind)
	obj.SetName(cfg.StackName)
	obj.SetNamespace(cfg.StackNamespace)
	obj.SetLabels(map[string]string{
		managedByLabel:           managedByValue,
		"pulumi.com/project":     cfg.ProjectName,
		"app.kubernetes.io/name": cfg.ProjectName,
	})

	return obj
}

// CredentialsSecret holds the AWS keys the workspace pod receives.
func CredentialsSecret(cfg config.Config) *corev1.Secret {
	data := map[string]string{
		"AWS_ACCESS_KEY_ID":     cfg.AWSAccessKeyID,
		"AWS_SECRET_ACCESS_KEY": cfg.AWSSecretAccessKey,
	}
	if cfg.AWSSessionToken != "" {
		data["AWS_SESSION_TOKEN"] = cfg.AWSSessionToken
	}
	return secret(cfg.StackNamespace, AWSCredentialsSecret, data)
}

// PulumiTokenSecret holds the Pulumi Cloud access token. Nil without a token.
func PulumiTokenSecret(cfg config.Config) *corev1.Secret {
	if cfg.PulumiAccessToken == "" {
		return nil
	}
	return secret(cfg.StackNamespace, PulumiAPISecret, map[string]string{PulumiAccessTokenKey: cfg.PulumiAccessToken})
}

func secret(namespace, name string, data map[string]string) *corev1.Secret {
	return &corev1.Secret{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Secret"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
			Labels:    map[string]string{managedByLabel: managedByValue},
		},
		Type:       corev1.SecretTypeOpaque,
		StringData: data,
	}
}

// State maps a Stack's status onto succeeded, failed, reconciling or pending.
func State(obj *unstructured.Unstructured) string {
	conditions, found, _ := unstructured.NestedSlice(obj.Object, "status", "conditions")
	lastState, _, _ := unstructured.NestedString(obj.Object, "status", "lastUpdate", "state")
	lastGen, _, _ := unstructured.NestedInt64(obj.Object, "status", "lastUpdate", "generation")

	if found && len(conditions) > 0 {
		gen := obj.GetGeneration()
		statusGen, hasStatusGen, _ := unstructured.NestedInt64(obj.Object, "status", "observedGeneration")
		current := func(c map[string]interface{}) bool {
			if og, ok := asInt64(c["observedGeneration"]); ok {
				return og == gen
			}
			return !hasStatusGen || statusGen == gen
		}

		switch {
		case conditionTrue(conditions, conditionReady, current):
			return stateSucceeded
		case conditionTrue(conditions, conditionStalled, current):
			return stateFailed
		case strings.EqualFold(lastState, stateFailed) && lastGen == obj.GetGeneration():
			return stateFailed
		default:
			return stateReconciling
		}
	}

	if lastState != "" {
		return strings.ToLower(lastState)
	}
	return statePending
}

// Message returns the most useful human-readable status detail.
func Message(obj *unstructured.Unstructured) string {
	conditions, _, _ := unstructured.NestedSlice(obj.Object, "status", "conditions")
	for _, want := range []string{conditionStalled, conditionReconciling, conditionReady} {
		for _, c := range conditions {
			m, ok := c.(map[string]interface{})
			if !ok || m["type"] != want {
				continue
			}
			if msg, _ := m["message"].(string); msg != "" {
				return fmt.Sprintf("%s: %s", want, msg)
			}
		}
	}
	msg, _, _ := unstructured.NestedString(obj.Object, "status", "lastUpdate", "message")
	return msg
}

// conditionTrue reports whether condType is True and passes current, which
// rejects conditions observed for an older generation.
func conditionTrue(conditions []interface{}, condType string, current func(map[string]interface{}) bool) bool {
	for _, c := range conditions {
		m, ok := c.(map[string]interface{})
		if !ok {
			continue
		}
		if m["type"] == condType && m["status"] == "True" && current(m) {
			return true
		}
	}
	return false
}

func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

// Outputs returns status.outputs, or nil.
func Outputs(obj *unstructured.Unstructured) map[string]interface{} {
	out, _, _ := unstructured.NestedMap(obj.Object, "status", "outputs")
	return out
}
