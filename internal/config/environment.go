package config

import (
	"maps"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/shaiso/Shipyard/internal/domain"
)

// Имена ссылок на секреты, которые понимают стадии.
const (
	CredRegistryUser     = "registry_user"
	CredRegistryPassword = "registry_password"
	CredKubeconfig       = "kubeconfig"
	CredGitToken         = "git_token"
)

// DefaultDeployTimeout — бюджет времени стадии deploy-to-cluster.
const DefaultDeployTimeout = 10 * time.Minute

// Image — координаты образа в registry.
type Image struct {
	Registry   string
	Repository string
	Tag        string
}

// Name возвращает имя образа без тега: registry/repository.
func (i Image) Name() string {
	if i.Registry == "" {
		return i.Repository
	}
	return i.Registry + "/" + i.Repository
}

// Ref возвращает полную ссылку name:tag.
func (i Image) Ref() string {
	return i.Name() + ":" + i.Tag
}

// Latest возвращает ссылку name:latest.
func (i Image) Latest() string {
	return i.Name() + ":latest"
}

// Source — репозиторий исходников.
type Source struct {
	URL      string
	Revision string
	Depth    int
}

// Cluster — целевой кластер.
type Cluster struct {
	Name       string
	Namespace  string
	Kubeconfig string
	Context    string
}

// Resources — requests/limits контейнера ("cpu" → "100m").
type Resources struct {
	requests map[string]string
	limits   map[string]string
}

func (r Resources) Requests() map[string]string { return maps.Clone(r.requests) }
func (r Resources) Limits() map[string]string   { return maps.Clone(r.limits) }

// Deploy — описание деплоймента и сервиса.
type Deploy struct {
	Name     string
	Replicas int32
	Port     int32
	NodePort int32
	Timeout  time.Duration

	labels    map[string]string
	env       map[string]string
	resources Resources
}

func (d Deploy) Labels() map[string]string { return maps.Clone(d.labels) }
func (d Deploy) Env() map[string]string    { return maps.Clone(d.env) }
func (d Deploy) Resources() Resources      { return d.resources }

// StageGuard — охранные условия стадии.
type StageGuard struct {
	Timeout      time.Duration
	AllowFailure bool
	When         string
}

// Environment — неизменяемая конфигурация одного run.
//
// Все поля закрыты; геттеры возвращают копии map и slice.
// Передаётся по значению.
type Environment struct {
	pipeline     string
	build        int64
	workspace    string
	dockerfile   string
	image        Image
	source       Source
	cluster      Cluster
	deploy       Deploy
	credentials  map[string]domain.CredentialRef
	tools        []string
	checks       []string
	removeImages bool
	guards       map[domain.StageName]StageGuard
	access       string
	ingress      string
	values       map[string]string
}

func (e Environment) Pipeline() string      { return e.pipeline }
func (e Environment) BuildNumber() int64    { return e.build }
func (e Environment) Workspace() string     { return e.workspace }
func (e Environment) Dockerfile() string    { return e.dockerfile }
func (e Environment) Image() Image          { return e.image }
func (e Environment) Source() Source        { return e.source }
func (e Environment) Cluster() Cluster      { return e.cluster }
func (e Environment) Deploy() Deploy        { return e.deploy }
func (e Environment) RemoveImages() bool    { return e.removeImages }
func (e Environment) AccessMessage() string { return e.access }
func (e Environment) IngressFile() string   { return e.ingress }
func (e Environment) RequiredTools() []string {
	return slices.Clone(e.tools)
}
func (e Environment) Checks() []string {
	return slices.Clone(e.checks)
}

// Values возвращает произвольные именованные значения из секции env.
func (e Environment) Values() map[string]string {
	return maps.Clone(e.values)
}

// Credential возвращает ссылку на секрет по имени.
func (e Environment) Credential(name string) domain.CredentialRef {
	return e.credentials[name]
}

// Credentials возвращает ссылки для указанных имён; неизвестные имена пропускаются.
func (e Environment) Credentials(names ...string) map[string]domain.CredentialRef {
	out := make(map[string]domain.CredentialRef, len(names))
	for _, n := range names {
		if ref, ok := e.credentials[n]; ok {
			out[n] = ref
		}
	}
	return out
}

// Guard возвращает охранные условия стадии.
func (e Environment) Guard(stage domain.StageName) StageGuard {
	return e.guards[stage]
}

// Redacted возвращает именованные значения для сохранения в run.
// Секреты представлены только ссылками, userinfo из URL удаляется.
func (e Environment) Redacted() map[string]string {
	out := map[string]string{
		"pipeline":     e.pipeline,
		"build":        strconv.FormatInt(e.build, 10),
		"registry":     e.image.Registry,
		"repository":   e.image.Repository,
		"tag":          e.image.Tag,
		"image":        e.image.Ref(),
		"cluster":      e.cluster.Name,
		"namespace":    e.cluster.Namespace,
		"kubeconfig":   e.cluster.Kubeconfig,
		"kube_context": e.cluster.Context,
		"source_url":   stripUserinfo(e.source.URL),
		"revision":     e.source.Revision,
	}
	for name, ref := range e.credentials {
		out["credential."+name] = ref.String()
	}
	for k, v := range e.values {
		if _, exists := out[k]; !exists {
			out[k] = v
		}
	}
	for k, v := range out {
		if v == "" {
			delete(out, k)
		}
	}
	return out
}

func stripUserinfo(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = nil
	return u.String()
}
