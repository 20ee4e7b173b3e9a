package ingress

import (
	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Ingress превращает таблицу в объект networking.k8s.io/v1 Ingress.
//
// Правила группируются по host в порядке первого появления.
func (t *Table) Ingress() *networkingv1.Ingress {
	name := t.Name
	if name == "" {
		name = "shipyard-routes"
	}

	ing := &networkingv1.Ingress{
		TypeMeta: metav1.TypeMeta{APIVersion: "networking.k8s.io/v1", Kind: "Ingress"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: t.Namespace,
		},
	}
	if t.Class != "" {
		class := t.Class
		ing.Spec.IngressClassName = &class
	}

	for _, host := range t.Hosts() {
		var paths []networkingv1.HTTPIngressPath
		for _, r := range t.Rules {
			if r.Host != host {
				continue
			}
			pathType := networkingv1.PathTypePrefix
			if r.PathType == PathExact {
				pathType = networkingv1.PathTypeExact
			}
			paths = append(paths, networkingv1.HTTPIngressPath{
				Path:     r.Path,
				PathType: &pathType,
				Backend: networkingv1.IngressBackend{
					Service: &networkingv1.IngressServiceBackend{
						Name: r.BackendService,
						Port: networkingv1.ServiceBackendPort{Number: r.BackendPort},
					},
				},
			})
		}
		ing.Spec.Rules = append(ing.Spec.Rules, networkingv1.IngressRule{
			Host: host,
			IngressRuleValue: networkingv1.IngressRuleValue{
				HTTP: &networkingv1.HTTPIngressRuleValue{Paths: paths},
			},
		})
	}
	return ing
}
