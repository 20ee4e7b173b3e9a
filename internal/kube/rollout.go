package kube

import (
	"context"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
)

// WaitForRollout ждёт, пока все реплики деплоймента обновятся и станут доступны.
//
// Ограничение по времени задаёт ctx. ProgressDeadlineExceeded и отсутствие
// деплоймента прерывают ожидание сразу, прочие ошибки API повторяются.
func (c *Client) WaitForRollout(ctx context.Context, name string) error {
	api := c.cs.AppsV1().Deployments(c.namespace)

	var last string
	err := wait.PollUntilContextCancel(ctx, c.pollInterval, true, func(ctx context.Context) (bool, error) {
		d, err := api.Get(ctx, name, metav1.GetOptions{})
		if apierrors.IsNotFound(err) {
			return false, fmt.Errorf("get deployment %s: %w", name, err)
		}
		if err != nil {
			c.logger.Warn("rollout status unavailable, retrying", "deployment", name, "error", err)
			last = "api error: " + err.Error()
			return false, nil
		}

		done, msg, err := rolloutComplete(d)
		if msg != last {
			c.logger.Info("rollout status", "deployment", name, "status", msg)
			last = msg
		}
		return done, err
	})
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("wait for rollout of %s (%s): %w", name, last, ctx.Err())
		}
		return err
	}
	return nil
}

// rolloutComplete повторяет логику `kubectl rollout status`.
func rolloutComplete(d *appsv1.Deployment) (bool, string, error) {
	if d.Generation > d.Status.ObservedGeneration {
		return false, "waiting for deployment spec update to be observed", nil
	}

	for _, cond := range d.Status.Conditions {
		if cond.Type == appsv1.DeploymentProgressing && cond.Status == corev1.ConditionFalse &&
			cond.Reason == "ProgressDeadlineExceeded" {
			return false, cond.Message, fmt.Errorf("%w: %s", ErrRolloutFailed, cond.Message)
		}
	}

	replicas := int32(1)
	if d.Spec.Replicas != nil {
		replicas = *d.Spec.Replicas
	}

	switch {
	case d.Status.UpdatedReplicas < replicas:
		return false, fmt.Sprintf("%d out of %d new replicas have been updated", d.Status.UpdatedReplicas, replicas), nil
	case d.Status.Replicas > d.Status.UpdatedReplicas:
		return false, fmt.Sprintf("%d old replicas are pending termination", d.Status.Replicas-d.Status.UpdatedReplicas), nil
	case d.Status.AvailableReplicas < d.Status.UpdatedReplicas:
		return false, fmt.Sprintf("%d of %d updated replicas are available", d.Status.AvailableReplicas, d.Status.UpdatedReplicas), nil
	}
	return true, "successfully rolled out", nil
}
