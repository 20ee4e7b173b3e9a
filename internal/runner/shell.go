// Package runner выполняет shell-команды проверок окружения.
package runner

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
)

// ErrToolMissing — инструмент не найден в PATH.
var ErrToolMissing = errors.New("required tool not found in PATH")

// Result — результат выполнения команды.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Output объединяет stdout и stderr.
func (r *Result) Output() string {
	return strings.TrimSpace(r.Stdout + r.Stderr)
}

// Runner выполняет команды и ищет инструменты.
type Runner interface {
	Run(ctx context.Context, command, workDir string, env []string) *Result
	LookPath(tool string) (string, error)
}

// Shell выполняет команды через sh -c.
type Shell struct{}

// Run выполняет команду и захватывает вывод. Отмена ctx убивает процесс.
func (Shell) Run(ctx context.Context, command, workDir string, env []string) *Result {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	if workDir != "" {
		cmd.Dir = workDir
	}
	if len(env) > 0 {
		cmd.Env = append(cmd.Environ(), env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = 1
			stderr.WriteString(err.Error())
		}
	}

	return &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
	}
}

// LookPath ищет инструмент в PATH.
func (Shell) LookPath(tool string) (string, error) {
	path, err := exec.LookPath(tool)
	if err != nil {
		return "", errors.Join(ErrToolMissing, err)
	}
	return path, nil
}
