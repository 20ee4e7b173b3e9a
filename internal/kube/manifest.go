package kube

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"sigs.k8s.io/yaml"
)

// LabelApp — label, по которому сервис и деплоймент находят поды.
const LabelApp = "app"

// AnnotationBuild — номер сборки, выкатившей деплоймент.
const AnnotationBuild = "shipyard.io/build"

// WorkloadSpec — описание рабочей нагрузки для генерации манифестов.
type WorkloadSpec struct {
	Name      string
	Namespace string
	Image     string
	Build     int64
	Replicas  int32
	Port      int32
	NodePort  int32
	Labels    map[string]string
	Env       map[string]string
	Requests  map[string]string
	Limits    map[string]string
}

// Selector возвращает selector подов рабочей нагрузки.
func (w WorkloadSpec) Selector() map[string]string {
	return map[string]string{LabelApp: w.Name}
}

// BuildDeployment генерирует Deployment.
func BuildDeployment(w WorkloadSpec) (*appsv1.Deployment, error) {
	requests, err := resourceList(w.Requests)
	if err != nil {
		return nil, fmt.Errorf("requests: %w", err)
	}
	limits, err := resourceList(w.Limits)
	if err != nil {
		return nil, fmt.Errorf("limits: %w", err)
	}

	podLabels := w.Selector()
	for k, v := range w.Labels {
		if k != LabelApp {
			podLabels[k] = v
		}
	}

	replicas := w.Replicas
	return &appsv1.Deployment{
		TypeMeta: metav1.TypeMeta{APIVersion: "apps/v1", Kind: "Deployment"},
		ObjectMeta: metav1.ObjectMeta{
			Name:        w.Name,
			Namespace:   w.Namespace,
			Labels:      podLabels,
			Annotations: map[string]string{AnnotationBuild: strconv.FormatInt(w.Build, 10)},
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: &replicas,
			Selector: &metav1.LabelSelector{MatchLabels: w.Selector()},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels:      podLabels,
					Annotations: map[string]string{AnnotationBuild: strconv.FormatInt(w.Build, 10)},
				},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{{
						Name:  w.Name,
						Image: w.Image,
						Ports: []corev1.ContainerPort{{
							ContainerPort: w.Port,
							Protocol:      corev1.ProtocolTCP,
						}},
						Env: envVars(w.Env),
						Resources: corev1.ResourceRequirements{
							Requests: requests,
							Limits:   limits,
						},
					}},
				},
			},
		},
	}, nil
}

// BuildService генерирует Service. При заданном NodePort — тип NodePort.
func BuildService(w WorkloadSpec) *corev1.Service {
	svcType := corev1.ServiceTypeClusterIP
	if w.NodePort != 0 {
		svcType = corev1.ServiceTypeNodePort
	}
	return &corev1.Service{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Service"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      w.Name,
			Namespace: w.Namespace,
			Labels:    w.Selector(),
		},
		Spec: corev1.ServiceSpec{
			Type:     svcType,
			Selector: w.Selector(),
			Ports: []corev1.ServicePort{{
				Name:       "http",
				Port:       w.Port,
				TargetPort: intstr.FromInt32(w.Port),
				NodePort:   w.NodePort,
				Protocol:   corev1.ProtocolTCP,
			}},
		},
	}
}

// WriteManifests записывает объекты в один YAML файл (документы через ---).
func WriteManifests(path string, objs ...any) error {
	var buf bytes.Buffer
	for i, obj := range objs {
		data, err := yaml.Marshal(obj)
		if err != nil {
			return fmt.Errorf("marshal manifest: %w", err)
		}
		if i > 0 {
			buf.WriteString("---\n")
		}
		buf.Write(data)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create manifest dir: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

func resourceList(m map[string]string) (corev1.ResourceList, error) {
	if len(m) == 0 {
		return nil, nil
	}
	list := make(corev1.ResourceList, len(m))
	for name, value := range m {
		q, err := resource.ParseQuantity(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidResource, name, value)
		}
		list[corev1.ResourceName(name)] = q
	}
	return list, nil
}

func envVars(m map[string]string) []corev1.EnvVar {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	vars := make([]corev1.EnvVar, 0, len(keys))
	for _, k := range keys {
		vars = append(vars, corev1.EnvVar{Name: k, Value: m[k]})
	}
	return vars
}
