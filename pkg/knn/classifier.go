package knn

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"knn-ocr/internal/domain"

	"go.uber.org/zap"
)

var (
	ErrInvalidK      = errors.New("k must be in 1..len(training set)")
	ErrFeatureLength = errors.New("feature vector length mismatch")
)

// Neighbor расстояние от запроса до одного обучающего образца
type Neighbor struct {
	Distance uint64
	Label    uint8
	Index    int
}

type Classifier struct {
	logger *zap.Logger
	train  *domain.Dataset
	k      int
}

// NewClassifier проверяет k до начала любой работы
func NewClassifier(logger *zap.Logger, train *domain.Dataset, k int) (*Classifier, error) {
	if err := ValidateK(train, k); err != nil {
		return nil, err
	}
	return &Classifier{logger: logger, train: train, k: k}, nil
}

func ValidateK(train *domain.Dataset, k int) error {
	if k < 1 || k > train.Len() {
		return fmt.Errorf("%w: k=%d, training samples=%d", ErrInvalidK, k, train.Len())
	}
	return nil
}

// Classify returns the index of a training sample that is among the k
// nearest neighbors of query and carries their majority label.
func (c *Classifier) Classify(query []byte) (int, error) {
	if len(query) != c.train.FeatureLen() {
		return 0, fmt.Errorf("%w: query has %d, training set has %d",
			ErrFeatureLength, len(query), c.train.FeatureLen())
	}

	nearest := Neighbors(c.train, query)[:c.k]
	label, index := Vote(nearest)

	c.logger.Debug("classified",
		zap.Uint8("label", label),
		zap.Int("nearest", index),
		zap.Uint64("distance", nearest[0].Distance))

	return index, nil
}

// Neighbors считает расстояния до всех обучающих образцов и сортирует их
// по (distance, label, index)
func Neighbors(train *domain.Dataset, query []byte) []Neighbor {
	neighbors := make([]Neighbor, len(train.Samples))
	for i, s := range train.Samples {
		neighbors[i] = Neighbor{
			Distance: Distance(s.Features, query),
			Label:    s.Label,
			Index:    i,
		}
	}

	slices.SortFunc(neighbors, func(a, b Neighbor) int {
		return cmp.Or(
			cmp.Compare(a.Distance, b.Distance),
			cmp.Compare(a.Label, b.Label),
			cmp.Compare(a.Index, b.Index),
		)
	})
	return neighbors
}

// Vote выбирает метку большинства (при равенстве - наименьшую метку) и
// возвращает индекс ближайшего соседа с этой меткой. nearest должен быть
// отсортирован и непуст.
func Vote(nearest []Neighbor) (uint8, int) {
	var tally [256]int
	for _, n := range nearest {
		tally[n.Label]++
	}

	label := 0
	for l := 1; l < len(tally); l++ {
		if tally[l] > tally[label] {
			label = l
		}
	}

	for _, n := range nearest {
		if int(n.Label) == label {
			return n.Label, n.Index
		}
	}
	// недостижимо: метка большинства встречается хотя бы раз
	return uint8(label), nearest[0].Index
}

// Distance квадрат евклидова расстояния
func Distance(a, b []byte) uint64 {
	var sum uint64
	for i := range a {
		d := int64(a[i]) - int64(b[i])
		sum += uint64(d * d)
	}
	return sum
}
