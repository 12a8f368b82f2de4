package kube

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const authDelegatorRole = "system:auth-delegator"

// EnsureNamespace creates the namespace when missing.
func (c *Client) EnsureNamespace(ctx context.Context, name string) (bool, error) {
	ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: name}}
	_, err := c.clientset.CoreV1().Namespaces().Create(ctx, ns, metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create namespace %s: %w", name, err)
	}
	return true, nil
}

// DeleteNamespace removes the namespace. A missing namespace is not an error.
func (c *Client) DeleteNamespace(ctx context.Context, name string) error {
	err := c.clientset.CoreV1().Namespaces().Delete(ctx, name, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete namespace %s: %w", name, err)
	}
	return nil
}

// ApplySecret creates or replaces a secret.
func (c *Client) ApplySecret(ctx context.Context, s *corev1.Secret) error {
	secrets := c.clientset.CoreV1().Secrets(s.Namespace)

	return c.retrier.Do(ctx, func(ctx context.Context) error {
		_, err := secrets.Create(ctx, s, metav1.CreateOptions{})
		if !apierrors.IsAlreadyExists(err) {
			return err
		}

		existing, err := secrets.Get(ctx, s.Name, metav1.GetOptions{})
		if err != nil {
			return err
		}
		updated := s.DeepCopy()
		updated.ResourceVersion = existing.ResourceVersion
		_, err = secrets.Update(ctx, updated, metav1.UpdateOptions{})
		return err
	})
}

// EnsureServiceAccount creates the service account Stack workspaces run as
// and binds it to system:auth-delegator.
func (c *Client) EnsureServiceAccount(ctx context.Context, namespace, name string) error {
	sa := &corev1.ServiceAccount{ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace}}
	_, err := c.clientset.CoreV1().ServiceAccounts(namespace).Create(ctx, sa, metav1.CreateOptions{})
	if err != nil && !apierrors.IsAlreadyExists(err) {
		return fmt.Errorf("failed to create service account %s/%s: %w", namespace, name, err)
	}

	binding := &rbacv1.ClusterRoleBinding{
		ObjectMeta: metav1.ObjectMeta{Name: fmt.Sprintf("%s:%s:%s", namespace, name, authDelegatorRole)},
		RoleRef: rbacv1.RoleRef{
			APIGroup: rbacv1.GroupName,
			Kind:     "ClusterRole",
			Name:     authDelegatorRole,
		},
		Subjects: []rbacv1.Subject{{
			Kind:      rbacv1.ServiceAccountKind,
			Name:      name,
			Namespace: namespace,
		}},
	}
	_, err = c.clientset.RbacV1().ClusterRoleBindings().Create(ctx, binding, metav1.CreateOptions{})
	if err != nil && !apierrors.IsAlreadyExists(err) {
		return fmt.Errorf("failed to bind %s to %s: %w", name, authDelegatorRole, err)
	}

	return nil
}

// DeleteServiceAccountBinding removes the cluster-scoped binding created by EnsureServiceAccount.
func (c *Client) DeleteServiceAccountBinding(ctx context.Context, namespace, name string) error {
	bindingName := fmt.Sprintf("%s:%s:%s", namespace, name, authDelegatorRole)
	err := c.clientset.RbacV1().ClusterRoleBindings().Delete(ctx, bindingName, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete cluster role binding %s: %w", bindingName, err)
	}
	return nil
}
