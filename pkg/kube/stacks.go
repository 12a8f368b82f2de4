package kube

import (
	"context"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/dynamic"

	"github.com/chalkan3/pko-demo/pkg/stack"
)

func (c *Client) stacks(namespace string) dynamic.ResourceInterface {
	return c.dynamic.Resource(stack.GVR).Namespace(namespace)
}

// ApplyStack creates the Stack or updates its spec, retrying while the CRD
// is not yet served.
func (c *Client) ApplyStack(ctx context.Context, obj *unstructured.Unstructured) error {
	stacks := c.stacks(obj.GetNamespace())

	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		_, err := stacks.Create(ctx, obj, metav1.CreateOptions{})
		if !apierrors.IsAlreadyExists(err) {
			return err
		}

		existing, err := stacks.Get(ctx, obj.GetName(), metav1.GetOptions{})
		if err != nil {
			return err
		}
		updated := obj.DeepCopy()
		updated.SetResourceVersion(existing.GetResourceVersion())
		_, err = stacks.Update(ctx, updated, metav1.UpdateOptions{})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to apply stack %s/%s: %w", obj.GetNamespace(), obj.GetName(), err)
	}
	return nil
}

// GetStack fetches a Stack.
func (c *Client) GetStack(ctx context.Context, namespace, name string) (*unstructured.Unstructured, error) {
	return c.stacks(namespace).Get(ctx, name, metav1.GetOptions{})
}

// StackState returns the Stack's interpreted state.
func (c *Client) StackState(ctx context.Context, namespace, name string) (string, error) {
	obj, err := c.GetStack(ctx, namespace, name)
	if err != nil {
		return "", err
	}
	return stack.State(obj), nil
}

// StackDeletionState reports "deleted" once the Stack is gone, otherwise
// "deleting" or its current state.
func (c *Client) StackDeletionState(ctx context.Context, namespace, name string) (string, error) {
	obj, err := c.GetStack(ctx, namespace, name)
	if apierrors.IsNotFound(err) {
		return stack.DeletedState, nil
	}
	if err != nil {
		return "", err
	}
	if obj.GetDeletionTimestamp() != nil {
		return "deleting", nil
	}
	return stack.State(obj), nil
}

// DeleteStack requests deletion. The operator's finalizer runs the destroy.
func (c *Client) DeleteStack(ctx context.Context, namespace, name string) error {
	err := c.stacks(namespace).Delete(ctx, name, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete stack %s/%s: %w", namespace, name, err)
	}
	return nil
}

// RemoveStackFinalizers clears finalizers so a stuck Stack can be removed.
// The cloud resources it manages are left behind.
func (c *Client) RemoveStackFinalizers(ctx context.Context, namespace, name string) error {
	patch := []byte(`{"metadata":{"finalizers":null}}`)
	_, err := c.stacks(namespace).Patch(ctx, name, types.MergePatchType, patch, metav1.PatchOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to remove finalizers from stack %s/%s: %w", namespace, name, err)
	}
	return nil
}

// StackOutputs returns status.outputs of the Stack.
func (c *Client) StackOutputs(ctx context.Context, namespace, name string) (map[string]interface{}, error) {
	obj, err := c.GetStack(ctx, namespace, name)
	if err != nil {
		return nil, err
	}
	return stack.Outputs(obj), nil
}
