package infrastructure

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"

	"knn-ocr/internal/domain"

	"go.uber.org/zap"
)

const (
	// WorkerInFD и WorkerOutFD номера дескрипторов в дочернем процессе:
	// ExtraFiles[i] становится дескриптором 3+i
	WorkerInFD  = 3
	WorkerOutFD = 4
)

// ProcessLauncher запускает каждый воркер отдельным процессом ОС.
// Дочерний процесс получает только свои два конца каналов: все прочие
// дескрипторы Go открывает с close-on-exec.
type ProcessLauncher struct {
	logger *zap.Logger
	path   string
	args   []string
	env    []string
	stdout io.Writer
	stderr io.Writer
}

func NewProcessLauncher(logger *zap.Logger, path string, args, env []string, stdout, stderr io.Writer) *ProcessLauncher {
	return &ProcessLauncher{
		logger: logger,
		path:   path,
		args:   args,
		env:    env,
		stdout: stdout,
		stderr: stderr,
	}
}

func (l *ProcessLauncher) Launch(ordinal int, in, out *os.File) (domain.WorkerHandle, error) {
	args := append(append([]string{}, l.args...), "-ordinal", strconv.Itoa(ordinal))
	cmd := exec.Command(l.path, args...)
	cmd.ExtraFiles = []*os.File{in, out}
	cmd.Env = append(os.Environ(), l.env...)
	cmd.Stdout = l.stdout
	cmd.Stderr = l.stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn worker %d: %w", ordinal, err)
	}

	l.logger.Debug("worker process started",
		zap.Int("worker", ordinal),
		zap.Int("pid", cmd.Process.Pid))

	return &processHandle{ordinal: ordinal, cmd: cmd}, nil
}

type processHandle struct {
	ordinal int
	cmd     *exec.Cmd
}

func (h *processHandle) Ordinal() int { return h.ordinal }
func (h *processHandle) PID() int     { return h.cmd.Process.Pid }
func (h *processHandle) Wait() error  { return h.cmd.Wait() }

// WorkerFunc тело воркера для InProcessLauncher
type WorkerFunc func(ordinal int, in io.Reader, out io.Writer) error

// InProcessLauncher запускает воркеры горутинами в текущем процессе, но
// поверх тех же каналов ОС. Каждый воркер получает собственные копии
// дескрипторов и закрывает их по завершении.
type InProcessLauncher struct {
	logger *zap.Logger
	run    WorkerFunc
}

func NewInProcessLauncher(logger *zap.Logger, run WorkerFunc) *InProcessLauncher {
	return &InProcessLauncher{logger: logger, run: run}
}

func (l *InProcessLauncher) Launch(ordinal int, in, out *os.File) (domain.WorkerHandle, error) {
	inDup, err := DupFile(in)
	if err != nil {
		return nil, fmt.Errorf("spawn worker %d: %w", ordinal, err)
	}
	outDup, err := DupFile(out)
	if err != nil {
		inDup.Close()
		return nil, fmt.Errorf("spawn worker %d: %w", ordinal, err)
	}

	h := &goroutineHandle{ordinal: ordinal, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		h.err = l.run(ordinal, inDup, outDup)
		if err := inDup.Close(); err != nil && h.err == nil {
			h.err = err
		}
		if err := outDup.Close(); err != nil && h.err == nil {
			h.err = err
		}
		if h.err != nil {
			l.logger.Error("worker failed", zap.Int("worker", ordinal), zap.Error(h.err))
		}
	}()

	return h, nil
}

type goroutineHandle struct {
	ordinal int
	done    chan struct{}
	err     error
}

func (h *goroutineHandle) Ordinal() int { return h.ordinal }
func (h *goroutineHandle) PID() int     { return os.Getpid() }

func (h *goroutineHandle) Wait() error {
	<-h.done
	return h.err
}
