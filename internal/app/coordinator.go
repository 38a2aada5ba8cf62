package app

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"knn-ocr/internal/domain"
	"knn-ocr/internal/infrastructure"
	"knn-ocr/pkg/knn"
	"knn-ocr/pkg/wire"

	"go.uber.org/zap"
)

// Coordinator раздаёт тестовые образцы воркерам и собирает результаты
type Coordinator struct {
	logger   *zap.Logger
	config   *domain.Config
	launcher domain.WorkerLauncher
	stdout   io.Writer

	output  *infrastructure.Channel
	inputs  []*infrastructure.Channel
	workers []domain.WorkerHandle
}

func NewCoordinator(logger *zap.Logger, config *domain.Config, launcher domain.WorkerLauncher, stdout io.Writer) *Coordinator {
	return &Coordinator{
		logger:   logger,
		config:   config,
		launcher: launcher,
		stdout:   stdout,
	}
}

// Run выполняет полный цикл: запуск воркеров, раздача запросов, сбор
// результатов, отчёт и ожидание завершения всех воркеров. Любая ошибка
// фатальна для всего прогона, но воркеры всё равно дожидаются.
func (c *Coordinator) Run(train, test *domain.Dataset) (*Report, error) {
	n, err := c.validate(train, test)
	if err != nil {
		return nil, err
	}

	if err := c.spawn(); err != nil {
		return nil, c.abort(err)
	}

	codec := wire.NewCodec(test.FeatureLen())
	if err := c.stream(codec, test, n); err != nil {
		return nil, c.abort(err)
	}

	report := NewReport(train, test, n)
	drainErr := c.drain(report)
	if drainErr == nil {
		c.printSummary(report)
		if report.Missing() > 0 {
			drainErr = fmt.Errorf("%w: %d of %d results missing", domain.ErrWorkerFailed, report.Missing(), n)
		}
	}

	if err := errors.Join(drainErr, c.closeAll(), c.reap()); err != nil {
		return report, err
	}
	return report, nil
}

// validate возвращает число классифицируемых тестовых образцов
func (c *Coordinator) validate(train, test *domain.Dataset) (int, error) {
	if err := knn.ValidateK(train, c.config.K); err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}
	if c.config.Workers < 1 {
		return 0, fmt.Errorf("%w: n_workers must be positive", domain.ErrInvalidConfig)
	}
	if train.FeatureLen() != test.FeatureLen() {
		return 0, fmt.Errorf("%w: training images are %dx%d, test images are %dx%d",
			domain.ErrInvalidConfig, train.Rows, train.Cols, test.Rows, test.Cols)
	}

	n := test.Len()
	if c.config.NTests > 0 {
		if c.config.NTests > n {
			return 0, fmt.Errorf("%w: %d tests requested, %d available", domain.ErrInvalidConfig, c.config.NTests, n)
		}
		n = c.config.NTests
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: no test samples", domain.ErrInvalidConfig)
	}
	return n, nil
}

// spawn создаёт каналы и запускает воркеры, затем закрывает свои копии
// концов, которыми координатор не пользуется
func (c *Coordinator) spawn() error {
	var err error
	if c.output, err = infrastructure.NewChannel(); err != nil {
		return fmt.Errorf("create output channel: %w", err)
	}
	for i := range c.config.Workers {
		ch, err := infrastructure.NewChannel()
		if err != nil {
			return fmt.Errorf("create input channel %d: %w", i, err)
		}
		c.inputs = append(c.inputs, ch)
	}

	for i, in := range c.inputs {
		h, err := c.launcher.Launch(i, in.Reader(), c.output.Writer())
		if err != nil {
			return err
		}
		c.workers = append(c.workers, h)
		c.logger.Info("Starting worker", zap.Int("id", i), zap.Int("pid", h.PID()))
	}

	for i, in := range c.inputs {
		if err := in.CloseReader(); err != nil {
			return fmt.Errorf("close input channel %d: %w", i, err)
		}
	}
	if err := c.output.CloseWriter(); err != nil {
		return fmt.Errorf("close output channel: %w", err)
	}
	return nil
}

// stream отправляет каждому воркеру его группу одной записью и закрывает
// канал: закрытие - единственный признак конца запросов для воркера
func (c *Coordinator) stream(codec wire.Codec, test *domain.Dataset, n int) error {
	for i, r := range Partition(n, c.config.Workers) {
		buf := make([]byte, 0, r.Len()*codec.WorkItemSize())
		for idx := r.Start; idx < r.End; idx++ {
			var err error
			buf, err = codec.AppendWorkItem(buf, domain.WorkItem{
				Index:    uint64(idx),
				Features: test.Samples[idx].Features,
			})
			if err != nil {
				return err
			}
		}

		if _, err := c.inputs[i].Writer().Write(buf); err != nil {
			return fmt.Errorf("write requests to worker %d: %w", i, err)
		}
		if err := c.inputs[i].CloseWriter(); err != nil {
			return fmt.Errorf("close input channel %d: %w", i, err)
		}

		c.logger.Debug("requests sent",
			zap.Int("worker", i),
			zap.Int("from", r.Start),
			zap.Int("to", r.End))
	}
	return nil
}

// drain читает результаты до конца потока, то есть пока все воркеры не
// закроют свои концы записи
func (c *Coordinator) drain(report *Report) error {
	reader := bufio.NewReader(c.output.Reader())
	var buf [wire.ResultSize]byte
	for {
		if _, err := io.ReadFull(reader, buf[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return fmt.Errorf("%w: %w", domain.ErrProtocol, wire.ErrShortRecord)
			}
			return fmt.Errorf("read results: %w", err)
		}

		res, err := wire.DecodeResult(buf[:])
		if err != nil {
			return err
		}
		m, mismatch, err := report.Add(res)
		if err != nil {
			return err
		}
		if mismatch {
			fmt.Fprintln(c.stdout, FormatMismatch(m))
		}
	}
}

func (c *Coordinator) printSummary(report *Report) {
	fmt.Fprintln(c.stdout, FormatSuccess(report.Accuracy()))

	for label := range domain.NumLabels {
		c.logger.Debug("label recall",
			zap.Int("label", label),
			zap.Float64("recall", report.Recall(label)))
	}
	c.logger.Info("classification finished",
		zap.Int("tests", report.Total),
		zap.Int("correct", report.Correct),
		zap.Int("mismatches", len(report.Mismatches)))
}

// reap ждёт завершения всех запущенных воркеров независимо от их статуса
func (c *Coordinator) reap() error {
	var errs []error
	for _, h := range c.workers {
		if err := h.Wait(); err != nil {
			c.logger.Error("worker exited with error",
				zap.Int("worker", h.Ordinal()),
				zap.Int("pid", h.PID()),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%w: worker %d: %w", domain.ErrWorkerFailed, h.Ordinal(), err))
		}
	}
	c.workers = nil
	return errors.Join(errs...)
}

func (c *Coordinator) closeAll() error {
	var errs []error
	for _, in := range c.inputs {
		errs = append(errs, in.Close())
	}
	if c.output != nil {
		errs = append(errs, c.output.Close())
	}
	return errors.Join(errs...)
}

// abort закрывает все оставшиеся концы каналов, чтобы воркеры увидели конец
// потока или ошибку записи, и дожидается их
func (c *Coordinator) abort(err error) error {
	c.logger.Error("run aborted", zap.Error(err))
	return errors.Join(err, c.closeAll(), c.reap())
}
