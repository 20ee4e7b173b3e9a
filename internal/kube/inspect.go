package kube

import (
	"context"
	"fmt"
	"sort"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
)

// PodInfo — краткое состояние пода.
type PodInfo struct {
	Name     string
	Phase    string
	Ready    bool
	Restarts int32
	Node     string
	Reason   string
}

// String форматирует под как строку таблицы.
func (p PodInfo) String() string {
	ready := "0/1"
	if p.Ready {
		ready = "1/1"
	}
	s := fmt.Sprintf("%s\t%s\t%s\trestarts=%d\tnode=%s", p.Name, ready, p.Phase, p.Restarts, p.Node)
	if p.Reason != "" {
		s += "\t" + p.Reason
	}
	return s
}

// Pods возвращает поды по selector.
func (c *Client) Pods(ctx context.Context, selector map[string]string) ([]PodInfo, error) {
	list, err := c.cs.CoreV1().Pods(c.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labels.SelectorFromSet(selector).String(),
	})
	if err != nil {
		return nil, fmt.Errorf("list pods: %w", err)
	}

	pods := make([]PodInfo, 0, len(list.Items))
	for _, p := range list.Items {
		pods = append(pods, podInfo(&p))
	}
	sort.Slice(pods, func(i, j int) bool { return pods[i].Name < pods[j].Name })
	return pods, nil
}

func podInfo(p *corev1.Pod) PodInfo {
	info := PodInfo{
		Name:  p.Name,
		Phase: string(p.Status.Phase),
		Node:  p.Spec.NodeName,
	}
	for _, cond := range p.Status.Conditions {
		if cond.Type == corev1.PodReady {
			info.Ready = cond.Status == corev1.ConditionTrue
		}
	}
	for _, cs := range p.Status.ContainerStatuses {
		info.Restarts += cs.RestartCount
		if cs.State.Waiting != nil && cs.State.Waiting.Reason != "" {
			info.Reason = cs.State.Waiting.Reason
		}
	}
	return info
}

// Events возвращает события namespace, относящиеся к объектам с указанными
// именами (или их производным: подам и replicaset деплоймента).
func (c *Client) Events(ctx context.Context, names ...string) ([]string, error) {
	list, err := c.cs.CoreV1().Events(c.namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	items := list.Items
	sort.Slice(items, func(i, j int) bool {
		return items[i].LastTimestamp.Before(&items[j].LastTimestamp)
	})

	var out []string
	for _, ev := range items {
		if !matchesAny(ev.InvolvedObject.Name, names) {
			continue
		}
		out = append(out, fmt.Sprintf("%s\t%s/%s\t%s\t%s",
			ev.Type, ev.InvolvedObject.Kind, ev.InvolvedObject.Name, ev.Reason, ev.Message))
	}
	return out, nil
}

func matchesAny(name string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if name == p || strings.HasPrefix(name, p+"-") {
			return true
		}
	}
	return false
}

// Logs возвращает последние строки логов пода.
func (c *Client) Logs(ctx context.Context, pod string, tailLines int64) (string, error) {
	opts := &corev1.PodLogOptions{}
	if tailLines > 0 {
		opts.TailLines = &tailLines
	}
	data, err := c.cs.CoreV1().Pods(c.namespace).GetLogs(pod, opts).DoRaw(ctx)
	if err != nil {
		return "", fmt.Errorf("logs %s: %w", pod, err)
	}
	return string(data), nil
}

// AccessURL возвращает адрес NodePort сервиса: http://<node-ip>:<node-port>.
// Для сервиса без NodePort возвращает DNS имя внутри кластера.
func (c *Client) AccessURL(ctx context.Context, service string) (string, error) {
	svc, err := c.cs.CoreV1().Services(c.namespace).Get(ctx, service, metav1.GetOptions{})
	if err != nil {
		return "", fmt.Errorf("get service %s: %w", service, err)
	}
	if len(svc.Spec.Ports) == 0 {
		return "", fmt.Errorf("service %s has no ports", service)
	}
	port := svc.Spec.Ports[0]

	if svc.Spec.Type != corev1.ServiceTypeNodePort || port.NodePort == 0 {
		return fmt.Sprintf("http://%s.%s.svc:%d", svc.Name, svc.Namespace, port.Port), nil
	}

	nodes, err := c.cs.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return "", fmt.Errorf("list nodes: %w", err)
	}
	addr := nodeAddress(nodes.Items)
	if addr == "" {
		return "", ErrNoNodeAddress
	}
	return fmt.Sprintf("http://%s:%d", addr, port.NodePort), nil
}

func nodeAddress(nodes []corev1.Node) string {
	for _, want := range []corev1.NodeAddressType{corev1.NodeExternalIP, corev1.NodeInternalIP} {
		for _, n := range nodes {
			for _, a := range n.Status.Addresses {
				if a.Type == want && a.Address != "" {
					return a.Address
				}
			}
		}
	}
	return ""
}
