package config

import "time"

// File — структура YAML файла pipeline.
type File struct {
	Name       string            `yaml:"name"`
	Workspace  string            `yaml:"workspace"`
	Dockerfile string            `yaml:"dockerfile"`
	Image      ImageFile         `yaml:"image"`
	Source     SourceFile        `yaml:"source"`
	Cluster    ClusterFile       `yaml:"cluster"`
	Deploy     DeployFile        `yaml:"deploy"`
	Validate   ValidateFile      `yaml:"validate"`
	Cleanup    CleanupFile       `yaml:"cleanup"`
	Stages     map[string]Guard  `yaml:"stages"`
	Access     string            `yaml:"accessMessage"`
	Ingress    string            `yaml:"ingress"`
	Env        map[string]string `yaml:"env"`

	// Credentials — именованные ссылки на секреты ("scheme:key").
	Credentials map[string]string `yaml:"credentials"`
}

type ImageFile struct {
	Registry   string `yaml:"registry"`
	Repository string `yaml:"repository"`
	Tag        string `yaml:"tag"`
}

type SourceFile struct {
	URL      string `yaml:"url"`
	Revision string `yaml:"revision"`
	Depth    int    `yaml:"depth"`
}

type ClusterFile struct {
	Name          string `yaml:"name"`
	Namespace     string `yaml:"namespace"`
	Kubeconfig    string `yaml:"kubeconfig"`
	KubeconfigRef string `yaml:"kubeconfigRef"`
	Context       string `yaml:"context"`
}

type DeployFile struct {
	Name      string            `yaml:"name"`
	Replicas  int32             `yaml:"replicas"`
	Port      int32             `yaml:"port"`
	NodePort  int32             `yaml:"nodePort"`
	Timeout   time.Duration     `yaml:"timeout"`
	Labels    map[string]string `yaml:"labels"`
	Env       map[string]string `yaml:"env"`
	Resources ResourcesFile     `yaml:"resources"`
}

type ResourcesFile struct {
	Requests map[string]string `yaml:"requests"`
	Limits   map[string]string `yaml:"limits"`
}

type ValidateFile struct {
	Tools  []string `yaml:"tools"`
	Checks []string `yaml:"checks"`
}

type CleanupFile struct {
	// RemoveImages — удалять локальные образы, собранные в run.
	// nil трактуется как true.
	RemoveImages *bool `yaml:"removeImages"`
}

// Guard — охранные условия стадии.
type Guard struct {
	Timeout      time.Duration `yaml:"timeout"`
	AllowFailure bool          `yaml:"allowFailure"`
	When         string        `yaml:"when"`
}
