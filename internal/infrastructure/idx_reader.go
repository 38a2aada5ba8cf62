package infrastructure

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"knn-ocr/internal/domain"

	"go.uber.org/zap"
)

const (
	// ImagesMagic магическое число файла изображений MNIST
	ImagesMagic uint32 = 0x803
	// LabelsMagic магическое число файла меток MNIST
	LabelsMagic uint32 = 0x801

	imagesHeaderSize = 16
	labelsHeaderSize = 8
)

type IDXReader struct {
	logger *zap.Logger
}

func NewIDXReader(logger *zap.Logger) *IDXReader {
	return &IDXReader{logger: logger}
}

// ReadDataset читает пару файлов dir/imagesFile и dir/labelsFile
func (r *IDXReader) ReadDataset(dir, imagesFile, labelsFile string) (*domain.Dataset, error) {
	imagesPath := filepath.Join(dir, imagesFile)
	labelsPath := filepath.Join(dir, labelsFile)

	images, err := os.ReadFile(imagesPath)
	if err != nil {
		return nil, err
	}
	labels, err := os.ReadFile(labelsPath)
	if err != nil {
		return nil, err
	}

	if len(images) < imagesHeaderSize || len(labels) < labelsHeaderSize {
		return nil, fmt.Errorf("%s: %w", dir, domain.ErrInvalidFileFormat)
	}
	if magic := binary.BigEndian.Uint32(images); magic != ImagesMagic {
		return nil, fmt.Errorf("%s: %w: expected %#x, found %#x", imagesPath, domain.ErrBadMagic, ImagesMagic, magic)
	}
	if magic := binary.BigEndian.Uint32(labels); magic != LabelsMagic {
		return nil, fmt.Errorf("%s: %w: expected %#x, found %#x", labelsPath, domain.ErrBadMagic, LabelsMagic, magic)
	}

	n := int(binary.BigEndian.Uint32(images[4:]))
	if nl := int(binary.BigEndian.Uint32(labels[4:])); nl != n {
		return nil, fmt.Errorf("%w: %d images, %d labels", domain.ErrCountMismatch, n, nl)
	}
	rows := int(binary.BigEndian.Uint32(images[8:]))
	cols := int(binary.BigEndian.Uint32(images[12:]))
	if rows != cols {
		return nil, fmt.Errorf("%w: %d rows, %d columns", domain.ErrNotSquare, rows, cols)
	}

	// Размеры из заголовка сверяем с длиной файлов до умножения,
	// иначе rows*cols*n переполняет int
	if n > len(labels)-labelsHeaderSize {
		return nil, fmt.Errorf("%s: %w", labelsPath, domain.ErrTruncated)
	}
	payload := len(images) - imagesHeaderSize
	if rows > payload || (rows > 0 && cols > payload/rows) {
		return nil, fmt.Errorf("%s: %w: %dx%d images", imagesPath, domain.ErrTruncated, rows, cols)
	}
	size := rows * cols
	if size > 0 && n > payload/size {
		return nil, fmt.Errorf("%s: %w", imagesPath, domain.ErrTruncated)
	}

	samples := make([]domain.Sample, n)
	for i := range n {
		label := labels[labelsHeaderSize+i]
		if label >= domain.NumLabels {
			return nil, fmt.Errorf("%s: sample %d: %w: %d", labelsPath, i, domain.ErrInvalidLabel, label)
		}
		off := imagesHeaderSize + i*size
		samples[i] = domain.Sample{
			Features: images[off : off+size : off+size],
			Label:    label,
		}
	}

	r.logger.Info("dataset loaded",
		zap.String("images", imagesPath),
		zap.Int("samples", n),
		zap.Int("rows", rows),
		zap.Int("cols", cols))

	return &domain.Dataset{Samples: samples, Rows: rows, Cols: cols}, nil
}
