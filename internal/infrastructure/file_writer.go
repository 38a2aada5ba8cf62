package infrastructure

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"knn-ocr/internal/domain"
)

type TXTFileWriter struct {
	logger *zap.Logger
}

func NewTXTFileWriter(logger *zap.Logger) *TXTFileWriter {
	return &TXTFileWriter{logger: logger}
}

// WriteConfusion записывает матрицу ошибок: строки - ожидаемые метки,
// столбцы - предсказанные
func (w *TXTFileWriter) WriteConfusion(filename string, confusion mat.Matrix) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	rows, cols := confusion.Dims()

	// Заголовок с предсказанными метками
	header := make([]string, cols)
	for j := range cols {
		header[j] = strconv.Itoa(j)
	}
	fmt.Fprintf(writer, "Exp/Pred\t%s\n", strings.Join(header, "\t"))

	for i := range rows {
		row := make([]string, cols)
		for j := range cols {
			row[j] = strconv.FormatFloat(confusion.At(i, j), 'f', 0, 64)
		}
		fmt.Fprintf(writer, "%d\t%s\n", i, strings.Join(row, "\t"))
	}

	if err := writer.Flush(); err != nil {
		return err
	}
	w.logger.Info("confusion matrix written", zap.String("file", filename))
	return nil
}

// IDXWriter пишет выборку в формате, который читает IDXReader
type IDXWriter struct {
	logger *zap.Logger
}

func NewIDXWriter(logger *zap.Logger) *IDXWriter {
	return &IDXWriter{logger: logger}
}

func (w *IDXWriter) WriteDataset(dir, imagesFile, labelsFile string, ds *domain.Dataset) error {
	size := ds.FeatureLen()

	images := make([]byte, 0, imagesHeaderSize+ds.Len()*size)
	images = binary.BigEndian.AppendUint32(images, ImagesMagic)
	images = binary.BigEndian.AppendUint32(images, uint32(ds.Len()))
	images = binary.BigEndian.AppendUint32(images, uint32(ds.Rows))
	images = binary.BigEndian.AppendUint32(images, uint32(ds.Cols))

	labels := make([]byte, 0, labelsHeaderSize+ds.Len())
	labels = binary.BigEndian.AppendUint32(labels, LabelsMagic)
	labels = binary.BigEndian.AppendUint32(labels, uint32(ds.Len()))

	for i, s := range ds.Samples {
		if len(s.Features) != size {
			return fmt.Errorf("sample %d: %d features, expected %d", i, len(s.Features), size)
		}
		images = append(images, s.Features...)
		labels = append(labels, s.Label)
	}

	if err := os.WriteFile(filepath.Join(dir, imagesFile), images, 0o644); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, labelsFile), labels, 0o644); err != nil {
		return err
	}

	w.logger.Debug("dataset written",
		zap.String("dir", dir),
		zap.Int("samples", ds.Len()))
	return nil
}
