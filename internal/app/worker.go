package app

import (
	"fmt"
	"io"
	"os"

	"knn-ocr/internal/domain"
	"knn-ocr/pkg/knn"
	"knn-ocr/pkg/wire"

	"go.uber.org/zap"
)

// Worker классифицирует свою порцию тестовых образцов против всей
// обучающей выборки
type Worker struct {
	logger     *zap.Logger
	classifier *knn.Classifier
	codec      wire.Codec
	stdout     io.Writer
}

func NewWorker(logger *zap.Logger, train *domain.Dataset, k int, stdout io.Writer) (*Worker, error) {
	classifier, err := knn.NewClassifier(logger, train, k)
	if err != nil {
		return nil, err
	}
	return &Worker{
		logger:     logger,
		classifier: classifier,
		codec:      wire.NewCodec(train.FeatureLen()),
		stdout:     stdout,
	}, nil
}

// Run вычитывает in до конца потока, классифицирует записи в порядке
// поступления и пишет по одной записи результата за вызов Write.
// Закрытие in и out остаётся за вызывающим.
func (w *Worker) Run(ordinal int, in io.Reader, out io.Writer) error {
	logger := w.logger.With(zap.Int("worker", ordinal))
	fmt.Fprintf(w.stdout, "Worker #%d PID: %d\n", ordinal+1, os.Getpid())

	// Границы записей неявные: разбирать можно только весь поток целиком
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("worker %d: read requests: %w", ordinal, err)
	}
	items, err := w.codec.DecodeWorkItems(data)
	if err != nil {
		return fmt.Errorf("worker %d: %w", ordinal, err)
	}
	logger.Info("requests received", zap.Int("items", len(items)))

	results := make([]domain.ResultRecord, 0, len(items))
	for _, item := range items {
		nearest, err := w.classifier.Classify(item.Features)
		if err != nil {
			return fmt.Errorf("worker %d: item %d: %w", ordinal, item.Index, err)
		}
		results = append(results, domain.ResultRecord{Index: item.Index, Nearest: uint64(nearest)})
	}

	// Запись меньше PIPE_BUF, поэтому записи разных воркеров не перемешиваются
	for _, r := range results {
		buf := wire.EncodeResult(r)
		if _, err := out.Write(buf[:]); err != nil {
			return fmt.Errorf("worker %d: write result: %w", ordinal, err)
		}
	}

	logger.Info("results flushed", zap.Int("results", len(results)))
	return nil
}
