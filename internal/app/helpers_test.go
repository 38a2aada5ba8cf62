package app

import (
	"bytes"
	"sync"

	"knn-ocr/internal/domain"
)

// syncBuffer буфер, в который пишут несколько горутин
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// synthetic строит выборки 2x2: у каждой метки три обучающих образца
// со значениями label*25+{0,1,2}, тестовый образец i имеет метку i%10 и
// значение label*25+1, то есть совпадает с обучающим образцом label*3+1.
func synthetic(nTest int) (train, test *domain.Dataset) {
	train = &domain.Dataset{Rows: 2, Cols: 2}
	for label := range domain.NumLabels {
		for j := range 3 {
			v := byte(label*25 + j)
			train.Samples = append(train.Samples, domain.Sample{
				Features: []byte{v, v, v, v},
				Label:    uint8(label),
			})
		}
	}

	test = &domain.Dataset{Rows: 2, Cols: 2}
	for i := range nTest {
		label := i % domain.NumLabels
		v := byte(label*25 + 1)
		test.Samples = append(test.Samples, domain.Sample{
			Features: []byte{v, v, v, v},
			Label:    uint8(label),
		})
	}
	return train, test
}
