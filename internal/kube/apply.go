package kube

import (
	"context"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// ApplyDeployment создаёт или обновляет Deployment.
func (c *Client) ApplyDeployment(ctx context.Context, d *appsv1.Deployment) error {
	api := c.cs.AppsV1().Deployments(c.ns(d.Namespace))

	existing, err := api.Get(ctx, d.Name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		if _, err := api.Create(ctx, d, metav1.CreateOptions{}); err != nil {
			return fmt.Errorf("create deployment %s: %w", d.Name, err)
		}
		c.logger.Info("deployment created", "name", d.Name, "namespace", c.ns(d.Namespace))
		return nil
	}
	if err != nil {
		return fmt.Errorf("get deployment %s: %w", d.Name, err)
	}

	d.ResourceVersion = existing.ResourceVersion
	if _, err := api.Update(ctx, d, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("update deployment %s: %w", d.Name, err)
	}
	c.logger.Info("deployment updated", "name", d.Name, "namespace", c.ns(d.Namespace))
	return nil
}

// ApplyService создаёт или обновляет Service, сохраняя назначенный ClusterIP.
func (c *Client) ApplyService(ctx context.Context, s *corev1.Service) error {
	api := c.cs.CoreV1().Services(c.ns(s.Namespace))

	existing, err := api.Get(ctx, s.Name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		if _, err := api.Create(ctx, s, metav1.CreateOptions{}); err != nil {
			return fmt.Errorf("create service %s: %w", s.Name, err)
		}
		c.logger.Info("service created", "name", s.Name)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get service %s: %w", s.Name, err)
	}

	s.ResourceVersion = existing.ResourceVersion
	s.Spec.ClusterIP = existing.Spec.ClusterIP
	s.Spec.ClusterIPs = existing.Spec.ClusterIPs
	if _, err := api.Update(ctx, s, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("update service %s: %w", s.Name, err)
	}
	c.logger.Info("service updated", "name", s.Name)
	return nil
}

// ApplyIngress создаёт или обновляет Ingress.
func (c *Client) ApplyIngress(ctx context.Context, ing *networkingv1.Ingress) error {
	api := c.cs.NetworkingV1().Ingresses(c.ns(ing.Namespace))

	existing, err := api.Get(ctx, ing.Name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		if _, err := api.Create(ctx, ing, metav1.CreateOptions{}); err != nil {
			return fmt.Errorf("create ingress %s: %w", ing.Name, err)
		}
		c.logger.Info("ingress created", "name", ing.Name)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get ingress %s: %w", ing.Name, err)
	}

	ing.ResourceVersion = existing.ResourceVersion
	if _, err := api.Update(ctx, ing, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("update ingress %s: %w", ing.Name, err)
	}
	c.logger.Info("ingress updated", "name", ing.Name)
	return nil
}

func (c *Client) ns(objNamespace string) string {
	if objNamespace != "" {
		return objNamespace
	}
	return c.namespace
}
