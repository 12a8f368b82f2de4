package kube

import (
	"context"
	"errors"
	"fmt"
	"io"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// OperatorSelector matches the operator's controller pods.
const OperatorSelector = "app.kubernetes.io/name=pulumi-kubernetes-operator"

// FollowLogs streams the logs of the first running pod matching selector to
// w until ctx is canceled. Cancellation is not an error.
func (c *Client) FollowLogs(ctx context.Context, namespace, selector string, w io.Writer) error {
	pods, err := c.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return fmt.Errorf("failed to list pods for %q: %w", selector, err)
	}

	pod := pickPod(pods.Items)
	if pod == nil {
		return fmt.Errorf("no pods match %q in %s", selector, namespace)
	}

	since := int64(10)
	stream, err := c.clientset.CoreV1().Pods(namespace).GetLogs(pod.Name, &corev1.PodLogOptions{
		Follow:    true,
		TailLines: &since,
	}).Stream(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to stream logs of %s: %w", pod.Name, err)
	}
	defer stream.Close()

	_, err = io.Copy(w, stream)
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func pickPod(pods []corev1.Pod) *corev1.Pod {
	for i := range pods {
		if pods[i].Status.Phase == corev1.PodRunning {
			return &pods[i]
		}
	}
	if len(pods) > 0 {
		return &pods[0]
	}
	return nil
}
