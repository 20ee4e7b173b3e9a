package stages

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shaiso/Shipyard/internal/config"
	"github.com/shaiso/Shipyard/internal/container"
	"github.com/shaiso/Shipyard/internal/domain"
	"github.com/shaiso/Shipyard/internal/engine"
	"github.com/shaiso/Shipyard/internal/kube"
)

// DefaultAccessMessage — сообщение о доступе, если accessMessage не задан.
const DefaultAccessMessage = "{{ .Service }} is available at {{ .NodeURL }} (build {{ .Build }}, image {{ .Image }})"

// ReportAccess выводит адрес приложения и текущее состояние подов.
type ReportAccess struct {
	Kube kube.Connector
}

func (s *ReportAccess) Name() domain.StageName { return domain.StageReportAccess }

func (s *ReportAccess) Credentials() []string { return []string{config.CredKubeconfig} }

func (s *ReportAccess) Execute(ctx context.Context, exec *Execution) (*Output, error) {
	var out output
	d := exec.Env.Deploy()

	cluster, err := connect(ctx, s.Kube, exec)
	if err != nil {
		return out.result(), err
	}

	url := exec.State.AccessURL()
	if url == "" {
		url, err = cluster.AccessURL(ctx, d.Name)
		if err != nil {
			return out.result(), err
		}
		exec.State.SetAccessURL(url)
	}

	msgTmpl := exec.Env.AccessMessage()
	if msgTmpl == "" {
		msgTmpl = DefaultAccessMessage
	}
	tctx := engine.NewContext(exec.Env.Pipeline(), exec.Env.BuildNumber())
	if exec.Template != nil {
		copied := *exec.Template
		tctx = &copied
	}
	tctx.NodeURL = url
	msg, err := engine.Render(msgTmpl, tctx)
	if err != nil {
		return out.result(), err
	}
	out.write(msg)

	pods, err := cluster.Pods(ctx, map[string]string{kube.LabelApp: d.Name})
	if err != nil {
		return out.result(), err
	}
	for _, p := range pods {
		out.write(p.String())
	}
	return out.result(), nil
}

// CollectDiagnostics собирает состояние подов, события и логи после неудачного run.
//
// Ошибки сбора не возвращаются: они попадают в вывод, чтобы не маскировать
// причину падения run.
type CollectDiagnostics struct {
	Kube      kube.Connector
	TailLines int64
}

func (s *CollectDiagnostics) Name() domain.StageName { return domain.StageCollectDiagnostics }

func (s *CollectDiagnostics) Credentials() []string { return []string{config.CredKubeconfig} }

func (s *CollectDiagnostics) Execute(ctx context.Context, exec *Execution) (*Output, error) {
	var out output
	d := exec.Env.Deploy()

	tailLines := s.TailLines
	if tailLines == 0 {
		tailLines = 100
	}

	cluster, err := connect(ctx, s.Kube, exec)
	if err != nil {
		out.printf("diagnostics unavailable: %v", err)
		return out.result(), nil
	}

	out.printf("== pods")
	pods, err := cluster.Pods(ctx, map[string]string{kube.LabelApp: d.Name})
	if err != nil {
		out.printf("error: %v", err)
	}
	for _, p := range pods {
		out.write(p.String())
	}

	out.printf("== events")
	events, err := cluster.Events(ctx, d.Name)
	if err != nil {
		out.printf("error: %v", err)
	}
	for _, e := range events {
		out.write(e)
	}

	for _, p := range pods {
		out.printf("== logs %s", p.Name)
		logs, err := cluster.Logs(ctx, p.Name, tailLines)
		if err != nil {
			out.printf("error: %v", err)
			continue
		}
		out.write(logs)
	}
	return out.result(), nil
}

// Cleanup удаляет образы, собранные в run, и рабочую директорию.
//
// Образы удаляются только локально; registry остаётся источником истины.
// Отключается через cleanup.removeImages: false.
type Cleanup struct {
	Images container.ImageService
}

func (s *Cleanup) Name() domain.StageName { return domain.StageCleanup }

func (s *Cleanup) Credentials() []string { return nil }

func (s *Cleanup) Execute(ctx context.Context, exec *Execution) (*Output, error) {
	var out output
	var errs []error

	if exec.Env.RemoveImages() {
		for _, ref := range exec.State.Images() {
			if err := s.Images.Remove(ctx, ref); err != nil {
				out.printf("image %s: %v", ref, err)
				errs = append(errs, err)
				continue
			}
			out.printf("removed image %s", ref)
		}
	} else {
		out.printf("keeping images %v", exec.State.Images())
	}

	workspace, owned := exec.State.Workspace()
	var dirs []string
	if owned {
		dirs = []string{workspace}
	} else {
		dirs = []string{filepath.Join(workspace, "src"), filepath.Join(workspace, "deploy")}
	}
	for _, dir := range dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			out.printf("workspace %s: %v", dir, err)
			errs = append(errs, err)
			continue
		}
		out.printf("removed %s", dir)
	}

	if len(errs) > 0 {
		return out.result(), fmt.Errorf("%w: %w", ErrCleanupFailed, errors.Join(errs...))
	}
	return out.result(), nil
}
