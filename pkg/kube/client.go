// Package kube talks to the cluster API: typed objects through client-go,
// Stack resources through the dynamic client.
package kube

import (
	"context"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/kubectl/pkg/describe"

	"github.com/chalkan3/pko-demo/pkg/locator"
	"github.com/chalkan3/pko-demo/pkg/prereq"
	"github.com/chalkan3/pko-demo/pkg/retry"
	"github.com/chalkan3/pko-demo/pkg/stack"
)

// Kinds understood by Exists and Describe.
const (
	KindDeployment = "Deployment"
	KindStack      = stack.Kind
	KindNamespace  = "Namespace"
	KindSecret     = "Secret"
)

// Client wraps the typed and dynamic clients for one kubeconfig context.
type Client struct {
	clientset  kubernetes.Interface
	dynamic    dynamic.Interface
	restConfig *rest.Config
	retrier    *retry.Retrier
}

// NewClient loads kubeconfig (default loading rules when empty) and selects
// kubeContext (current context when empty).
func NewClient(kubeconfig, kubeContext string) (*Client, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfig != "" {
		rules.ExplicitPath = kubeconfig
	}
	overrides := &clientcmd.ConfigOverrides{CurrentContext: kubeContext}

	restConfig, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load kubeconfig for context %q: %w", kubeContext, err)
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes clientset: %w", err)
	}
	dyn, err := dynamic.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}

	c := NewForClients(clientset, dyn)
	c.restConfig = restConfig
	return c, nil
}

// NewForClients builds a Client from existing clients, as used with fakes.
func NewForClients(clientset kubernetes.Interface, dyn dynamic.Interface) *Client {
	return &Client{
		clientset: clientset,
		dynamic:   dyn,
		retrier:   retry.New(retry.DefaultConfig()),
	}
}

// WithRetrier replaces the retry policy for API writes.
func (c *Client) WithRetrier(r *retry.Retrier) *Client {
	c.retrier = r
	return c
}

// ReachabilityProbe asks the API server for its version.
func (c *Client) ReachabilityProbe() prereq.Probe {
	return prereq.WithTimeout(prereq.DefaultProbeTimeout, prereq.Probe{
		Name: "cluster",
		Run: func(ctx context.Context) prereq.ProbeResult {
			v, err := c.clientset.Discovery().ServerVersion()
			if err != nil {
				return prereq.Failure(err.Error())
			}
			return prereq.Success("Kubernetes " + v.GitVersion)
		},
	})
}

// Exists implements locator.Finder.
func (c *Client) Exists(ctx context.Context, namespace string, r locator.Resource) (bool, error) {
	var err error

	switch r.Kind {
	case KindDeployment:
		_, err = c.clientset.AppsV1().Deployments(namespace).Get(ctx, r.Name, metav1.GetOptions{})
	case KindStack:
		_, err = c.dynamic.Resource(stack.GVR).Namespace(namespace).Get(ctx, r.Name, metav1.GetOptions{})
	case KindSecret:
		_, err = c.clientset.CoreV1().Secrets(namespace).Get(ctx, r.Name, metav1.GetOptions{})
	case KindNamespace:
		_, err = c.clientset.CoreV1().Namespaces().Get(ctx, r.Name, metav1.GetOptions{})
	default:
		return false, fmt.Errorf("unsupported kind %q", r.Kind)
	}

	if apierrors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Describe renders kubectl-style describe output for a resource.
func (c *Client) Describe(namespace, kind, name string) (string, error) {
	if c.restConfig == nil {
		return "", fmt.Errorf("describe needs a live cluster connection")
	}

	var (
		describer describe.ResourceDescriber
		ok        bool
	)
	switch kind {
	case KindStack:
		describer, ok = describe.GenericDescriberFor(&meta.RESTMapping{
			Resource:         stack.GVR,
			GroupVersionKind: stack.GVK,
			Scope:            meta.RESTScopeNamespace,
		}, c.restConfig)
	case KindDeployment:
		describer, ok = describe.DescriberFor(schema.GroupKind{Group: "apps", Kind: KindDeployment}, c.restConfig)
	default:
		describer, ok = describe.DescriberFor(schema.GroupKind{Kind: kind}, c.restConfig)
	}
	if !ok {
		return "", fmt.Errorf("no describer for kind %q", kind)
	}

	return describer.Describe(namespace, name, describe.DescriberSettings{ShowEvents: true, ChunkSize: 500})
}
