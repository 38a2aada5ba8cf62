package app

import (
	"fmt"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"knn-ocr/internal/domain"
)

// Report сопоставляет результаты воркеров с эталонными метками
type Report struct {
	Total      int
	Correct    int
	Received   int
	Mismatches []domain.Mismatch
	// Confusion строки - ожидаемая метка, столбцы - предсказанная
	Confusion *mat.Dense

	train, test *domain.Dataset
	seen        []bool
}

func NewReport(train, test *domain.Dataset, n int) *Report {
	return &Report{
		Total:     n,
		Confusion: mat.NewDense(domain.NumLabels, domain.NumLabels, nil),
		train:     train,
		test:      test,
		seen:      make([]bool, n),
	}
}

// Add учитывает один результат. Результаты приходят в произвольном
// порядке, поэтому сопоставление идёт только по вложенному индексу.
func (r *Report) Add(res domain.ResultRecord) (domain.Mismatch, bool, error) {
	if res.Index >= uint64(r.Total) {
		return domain.Mismatch{}, false, fmt.Errorf("%w: test index %d out of range [0, %d)", domain.ErrProtocol, res.Index, r.Total)
	}
	if res.Nearest >= uint64(r.train.Len()) {
		return domain.Mismatch{}, false, fmt.Errorf("%w: training index %d out of range [0, %d)", domain.ErrProtocol, res.Nearest, r.train.Len())
	}
	if r.seen[res.Index] {
		return domain.Mismatch{}, false, fmt.Errorf("%w: duplicate result for test index %d", domain.ErrProtocol, res.Index)
	}
	r.seen[res.Index] = true
	r.Received++

	expected := r.test.Samples[res.Index].Label
	predicted := r.train.Samples[res.Nearest].Label
	r.Confusion.Set(int(expected), int(predicted), r.Confusion.At(int(expected), int(predicted))+1)

	if predicted == expected {
		r.Correct++
		return domain.Mismatch{}, false, nil
	}

	m := domain.Mismatch{
		TestIndex:  res.Index,
		TrainIndex: res.Nearest,
		Predicted:  predicted,
		Expected:   expected,
	}
	r.Mismatches = append(r.Mismatches, m)
	return m, true, nil
}

// Missing количество тестовых образцов без результата
func (r *Report) Missing() int {
	return r.Total - r.Received
}

// Accuracy доля верных ответов в процентах от Total
func (r *Report) Accuracy() float64 {
	return float64(r.Correct) / float64(r.Total) * 100.0
}

// Recall доля верно распознанных образцов с ожидаемой меткой label
func (r *Report) Recall(label int) float64 {
	row := r.Confusion.RawRowView(label)
	total := mat.Sum(mat.NewVecDense(len(row), row))
	if total == 0 {
		return 0
	}
	return row[label] / total
}

func FormatMismatch(m domain.Mismatch) string {
	return fmt.Sprintf("%d[%d] %d[%d]", m.Predicted, m.TrainIndex, m.Expected, m.TestIndex)
}

func FormatSuccess(accuracy float64) string {
	return strconv.FormatFloat(accuracy, 'f', -1, 64) + "% success"
}
