package infrastructure

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"knn-ocr/internal/domain"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const usageLine = "usage: %s [-config FILE] [-log-level LEVEL] [-mode process|inprocess] [-confusion FILE] DATA_DIR [N_TESTS [K [N_WORKERS]]]"

// ErrUsage ошибка разбора командной строки; вызывающий печатает Usage
var ErrUsage = errors.New("usage error")

type YAMLConfigReader struct {
	logger *zap.Logger
	prog   string
}

func NewYAMLConfigReader(logger *zap.Logger, prog string) *YAMLConfigReader {
	return &YAMLConfigReader{logger: logger, prog: prog}
}

// Usage печатает сообщение об ошибке и строку использования
func (r *YAMLConfigReader) Usage(w io.Writer, err error) {
	fmt.Fprintf(w, "%v\n"+usageLine+"\n", err, r.prog)
}

// ReadConfig разбирает флаги и позиционные аргументы args (без имени
// программы). Значения из файла -config перекрываются командной строкой.
func (r *YAMLConfigReader) ReadConfig(path string, args []string) (*domain.Config, error) {
	fs := flag.NewFlagSet(r.prog, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configPath := fs.String("config", path, "Path to config file")
	logLevel := fs.String("log-level", "", "Log level")
	mode := fs.String("mode", "", "Worker mode: process or inprocess")
	confusion := fs.String("confusion", "", "Write confusion matrix to file")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUsage, err)
	}

	var config domain.Config
	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, err
		}
		r.logger.Debug("config file loaded", zap.String("path", *configPath))
	}

	// Применяем аргументы командной строки
	if *logLevel != "" {
		config.LogLevel = *logLevel
	}
	if *mode != "" {
		config.Mode = *mode
	}
	if *confusion != "" {
		config.ConfusionFile = *confusion
	}
	if err := r.applyPositional(&config, fs.Args()); err != nil {
		return nil, err
	}

	// Устанавливаем значения по умолчанию
	r.setDefaults(&config)

	if err := Validate(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// applyPositional DATA_DIR [N_TESTS [K [N_WORKERS]]]
func (r *YAMLConfigReader) applyPositional(config *domain.Config, pos []string) error {
	if len(pos) > 4 || (len(pos) == 0 && config.DataDir == "") {
		return fmt.Errorf("%w: must be called with 1 ... 4 args", ErrUsage)
	}
	if len(pos) > 0 {
		config.DataDir = pos[0]
	}
	if len(pos) > 1 {
		n, err := strconv.Atoi(pos[1])
		if err != nil {
			return fmt.Errorf("%w: N_TESTS: %v", ErrUsage, err)
		}
		config.NTests = n
	}
	if len(pos) > 2 {
		k, err := strconv.Atoi(pos[2])
		if err != nil {
			return fmt.Errorf("%w: K: %v", ErrUsage, err)
		}
		if k <= 0 {
			return fmt.Errorf("%w: k must be positive", ErrUsage)
		}
		config.K = k
	}
	if len(pos) > 3 {
		n, err := strconv.Atoi(pos[3])
		if err != nil {
			return fmt.Errorf("%w: N_WORKERS: %v", ErrUsage, err)
		}
		if n <= 0 {
			return fmt.Errorf("%w: n_workers must be positive", ErrUsage)
		}
		config.Workers = n
	}
	return nil
}

func (r *YAMLConfigReader) setDefaults(config *domain.Config) {
	if config.K == 0 {
		config.K = 3
	}
	if config.Workers == 0 {
		config.Workers = 4
	}
	if config.NTests < 0 {
		config.NTests = 0
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.Mode == "" {
		config.Mode = domain.ModeProcess
	}
	if config.Files.TrainImages == "" {
		config.Files.TrainImages = "train-images-idx3-ubyte"
	}
	if config.Files.TrainLabels == "" {
		config.Files.TrainLabels = "train-labels-idx1-ubyte"
	}
	if config.Files.TestImages == "" {
		config.Files.TestImages = "t10k-images-idx3-ubyte"
	}
	if config.Files.TestLabels == "" {
		config.Files.TestLabels = "t10k-labels-idx1-ubyte"
	}
}

// Validate проверки, не требующие загруженных выборок
func Validate(config *domain.Config) error {
	if config.K < 1 {
		return fmt.Errorf("%w: k must be positive", domain.ErrInvalidConfig)
	}
	if config.Workers < 1 {
		return fmt.Errorf("%w: n_workers must be positive", domain.ErrInvalidConfig)
	}
	if config.Mode != domain.ModeProcess && config.Mode != domain.ModeInProcess {
		return fmt.Errorf("%w: unknown mode %q", domain.ErrInvalidConfig, config.Mode)
	}
	return nil
}
