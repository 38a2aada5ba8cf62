package wire

import (
	"encoding/binary"
	"errors"
	"fmt"

	"knn-ocr/internal/domain"
)

const (
	// WordSize ширина целого числа в байтах на проводе
	WordSize = 8
	// ResultSize размер ResultRecord: [index][nearest]
	ResultSize = 2 * WordSize
)

var ErrShortRecord = errors.New("short record")

// Codec кодирует записи фиксированной длины для передачи по каналам.
// Обе стороны канала должны использовать один и тот же FeatureLen.
type Codec struct {
	FeatureLen int
}

func NewCodec(featureLen int) Codec {
	return Codec{FeatureLen: featureLen}
}

// WorkItemSize размер WorkItem: [index][features]
func (c Codec) WorkItemSize() int {
	return WordSize + c.FeatureLen
}

func PutWord(b []byte, v uint64) {
	binary.BigEndian.PutUint64(b, v)
}

func Word(b []byte) (uint64, error) {
	if len(b) < WordSize {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrShortRecord, WordSize, len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

// AppendWorkItem дописывает закодированный WorkItem в dst
func (c Codec) AppendWorkItem(dst []byte, item domain.WorkItem) ([]byte, error) {
	if len(item.Features) != c.FeatureLen {
		return dst, fmt.Errorf("work item %d: %d features, codec expects %d",
			item.Index, len(item.Features), c.FeatureLen)
	}
	dst = binary.BigEndian.AppendUint64(dst, item.Index)
	return append(dst, item.Features...), nil
}

func (c Codec) DecodeWorkItem(b []byte) (domain.WorkItem, error) {
	if len(b) < c.WorkItemSize() {
		return domain.WorkItem{}, fmt.Errorf("%w: need %d bytes, have %d", ErrShortRecord, c.WorkItemSize(), len(b))
	}
	features := make([]byte, c.FeatureLen)
	copy(features, b[WordSize:c.WorkItemSize()])
	return domain.WorkItem{
		Index:    binary.BigEndian.Uint64(b),
		Features: features,
	}, nil
}

// DecodeWorkItems разбирает полностью вычитанный поток. Границы записей
// неявные, поэтому длина буфера обязана быть кратна размеру записи.
func (c Codec) DecodeWorkItems(b []byte) ([]domain.WorkItem, error) {
	size := c.WorkItemSize()
	if len(b)%size != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrShortRecord, len(b)%size)
	}

	items := make([]domain.WorkItem, 0, len(b)/size)
	for off := 0; off < len(b); off += size {
		item, err := c.DecodeWorkItem(b[off : off+size])
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func EncodeResult(r domain.ResultRecord) [ResultSize]byte {
	var buf [ResultSize]byte
	PutWord(buf[:WordSize], r.Index)
	PutWord(buf[WordSize:], r.Nearest)
	return buf
}

func DecodeResult(b []byte) (domain.ResultRecord, error) {
	if len(b) < ResultSize {
		return domain.ResultRecord{}, fmt.Errorf("%w: need %d bytes, have %d", ErrShortRecord, ResultSize, len(b))
	}
	return domain.ResultRecord{
		Index:   binary.BigEndian.Uint64(b),
		Nearest: binary.BigEndian.Uint64(b[WordSize:]),
	}, nil
}
