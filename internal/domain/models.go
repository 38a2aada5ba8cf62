package domain

import (
	"errors"
)

const (
	// NumLabels размер алфавита меток (цифры 0-9)
	NumLabels = 10

	ModeProcess   = "process"
	ModeInProcess = "inprocess"
)

// Config представляет конфигурацию приложения
type Config struct {
	DataDir       string `yaml:"data_dir"`
	NTests        int    `yaml:"n_tests"`
	K             int    `yaml:"k"`
	Workers       int    `yaml:"workers"`
	Mode          string `yaml:"mode"`
	LogLevel      string `yaml:"log_level"`
	LogFile       string `yaml:"log_file"`
	ConfusionFile string `yaml:"confusion_file"`
	Files         Files  `yaml:"files"`
}

// Files имена файлов обучающей и тестовой выборок внутри DataDir
type Files struct {
	TrainImages string `yaml:"train_images"`
	TrainLabels string `yaml:"train_labels"`
	TestImages  string `yaml:"test_images"`
	TestLabels  string `yaml:"test_labels"`
}

// Sample одно изображение с меткой
type Sample struct {
	Features []byte
	Label    uint8
}

// Dataset упорядоченный набор образцов; индекс образца - его идентификатор
type Dataset struct {
	Samples    []Sample
	Rows, Cols int
}

func (d *Dataset) Len() int {
	return len(d.Samples)
}

// FeatureLen длина вектора признаков (rows*cols)
func (d *Dataset) FeatureLen() int {
	return d.Rows * d.Cols
}

// WorkItem тестовый образец, отправляемый воркеру
type WorkItem struct {
	Index    uint64
	Features []byte
}

// ResultRecord результат классификации одного WorkItem
type ResultRecord struct {
	Index   uint64
	Nearest uint64
}

// Mismatch неверно классифицированный образец
type Mismatch struct {
	TestIndex  uint64
	TrainIndex uint64
	Predicted  uint8
	Expected   uint8
}

var (
	ErrInvalidFileFormat = errors.New("invalid file format")
	ErrBadMagic          = errors.New("bad magic number")
	ErrCountMismatch     = errors.New("image and label counts differ")
	ErrNotSquare         = errors.New("image rows and columns differ")
	ErrTruncated         = errors.New("file shorter than its header declares")
	ErrInvalidLabel      = errors.New("label outside of alphabet")

	ErrInvalidConfig = errors.New("invalid configuration")
	ErrWorkerFailed  = errors.New("worker failed")
	ErrProtocol      = errors.New("protocol violation")
)
