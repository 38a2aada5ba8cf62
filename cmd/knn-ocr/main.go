package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"knn-ocr/internal/app"
	"knn-ocr/internal/domain"
	"knn-ocr/internal/infrastructure"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	workerCommand = "worker"
	runIDEnv      = "KNN_OCR_RUN_ID"
)

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

// run разбирает argv и возвращает код завершения
func run(argv []string, stdout, stderr io.Writer) int {
	if len(argv) > 1 && argv[1] == workerCommand {
		return runWorker(argv[2:], stdout)
	}
	return runCoordinator(filepath.Base(argv[0]), argv[1:], stdout, stderr)
}

func runCoordinator(prog string, args []string, stdout, stderr io.Writer) int {
	runID := uuid.NewString()

	// Инициализация логгера
	logger := initLogger("info").With(zap.String("run", runID))
	defer func() { logger.Sync() }()

	// Чтение конфигурации
	configReader := infrastructure.NewYAMLConfigReader(logger, prog)
	config, err := configReader.ReadConfig("", args)
	if errors.Is(err, infrastructure.ErrUsage) || errors.Is(err, domain.ErrInvalidConfig) {
		configReader.Usage(stderr, err)
		return 1
	}
	if err != nil {
		logger.Error("Failed to read config", zap.Error(err))
		return 1
	}

	// Обновляем уровень логирования
	logger = initLogger(config.LogLevel, logFiles(config.LogFile)...).With(zap.String("run", runID))

	// Чтение выборок
	train, test, err := loadDatasets(infrastructure.NewIDXReader(logger), config)
	if err != nil {
		logger.Error("Failed to read dataset", zap.Error(err))
		return 1
	}

	var launcher domain.WorkerLauncher
	switch config.Mode {
	case domain.ModeInProcess:
		worker, err := app.NewWorker(logger, train, config.K, stdout)
		if err != nil {
			configReader.Usage(stderr, err)
			return 1
		}
		launcher = infrastructure.NewInProcessLauncher(logger, worker.Run)
	default:
		exe, err := os.Executable()
		if err != nil {
			logger.Error("Failed to locate executable", zap.Error(err))
			return 1
		}
		launcher = infrastructure.NewProcessLauncher(logger, exe,
			workerArgs(config),
			[]string{runIDEnv + "=" + runID},
			stdout, stderr)
	}

	logger.Info("Starting classification",
		zap.Int("train", train.Len()),
		zap.Int("test", test.Len()),
		zap.Int("k", config.K),
		zap.Int("workers", config.Workers),
		zap.String("mode", config.Mode))

	coordinator := app.NewCoordinator(logger, config, launcher, stdout)
	report, err := coordinator.Run(train, test)
	if errors.Is(err, domain.ErrInvalidConfig) {
		configReader.Usage(stderr, err)
		return 1
	}

	if report != nil && config.ConfusionFile != "" {
		writer := infrastructure.NewTXTFileWriter(logger)
		if werr := writer.WriteConfusion(config.ConfusionFile, report.Confusion); werr != nil {
			logger.Error("Failed to write confusion matrix",
				zap.String("file", config.ConfusionFile),
				zap.Error(werr))
			err = errors.Join(err, werr)
		}
	}

	if err != nil {
		logger.Error("Classification failed", zap.Error(err))
		return 1
	}
	return 0
}

func loadDatasets(reader domain.DatasetReader, config *domain.Config) (train, test *domain.Dataset, err error) {
	train, err = reader.ReadDataset(config.DataDir, config.Files.TrainImages, config.Files.TrainLabels)
	if err != nil {
		return nil, nil, fmt.Errorf("training set: %w", err)
	}
	test, err = reader.ReadDataset(config.DataDir, config.Files.TestImages, config.Files.TestLabels)
	if err != nil {
		return nil, nil, fmt.Errorf("test set: %w", err)
	}
	return train, test, nil
}

// workerArgs аргументы подкоманды worker; номер воркера добавляет лаунчер
func workerArgs(config *domain.Config) []string {
	return []string{
		workerCommand,
		"-data-dir", config.DataDir,
		"-train-images", config.Files.TrainImages,
		"-train-labels", config.Files.TrainLabels,
		"-k", strconv.Itoa(config.K),
		"-log-level", config.LogLevel,
		"-log-file", config.LogFile,
	}
}

// runWorker точка входа дочернего процесса. Входной канал приходит
// дескриптором 3, общий выходной - дескриптором 4.
func runWorker(args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet(workerCommand, flag.ContinueOnError)
	dataDir := fs.String("data-dir", "", "Data directory")
	trainImages := fs.String("train-images", "", "Training images file")
	trainLabels := fs.String("train-labels", "", "Training labels file")
	k := fs.Int("k", 3, "Number of neighbors")
	ordinal := fs.Int("ordinal", 0, "Worker ordinal")
	logLevel := fs.String("log-level", "info", "Log level")
	logFile := fs.String("log-file", "", "Log file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger := initLogger(*logLevel, logFiles(*logFile)...).With(
		zap.String("run", os.Getenv(runIDEnv)),
		zap.Int("worker", *ordinal))
	defer logger.Sync()

	in := os.NewFile(infrastructure.WorkerInFD, "in")
	out := os.NewFile(infrastructure.WorkerOutFD, "out")
	defer in.Close()

	train, err := infrastructure.NewIDXReader(logger).ReadDataset(*dataDir, *trainImages, *trainLabels)
	if err != nil {
		logger.Error("Failed to read training set", zap.Error(err))
		out.Close()
		return 1
	}

	worker, err := app.NewWorker(logger, train, *k, stdout)
	if err != nil {
		logger.Error("Failed to create worker", zap.Error(err))
		out.Close()
		return 1
	}

	if err := worker.Run(*ordinal, in, out); err != nil {
		logger.Error("Worker failed", zap.Error(err))
		out.Close()
		return 1
	}
	if err := out.Close(); err != nil {
		logger.Error("Failed to close output channel", zap.Error(err))
		return 1
	}
	return 0
}

func logFiles(file string) []string {
	if file == "" {
		return nil
	}
	return []string{file}
}

// initLogger initializes the logger with the specified level and log file name.
func initLogger(level string, logfileName ...string) *zap.Logger {
	config := zap.NewProductionConfig()

	switch level {
	case "debug":
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		config.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	outputPath := []string{"stderr"}
	if len(logfileName) > 0 {
		outputPath = logfileName
	}

	config.OutputPaths = outputPath
	config.ErrorOutputPaths = outputPath
	config.EncoderConfig.TimeKey = "t"
	config.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	config.DisableCaller = false

	logger, err := config.Build()
	if err != nil {
		// лог-файл недоступен: пишем в stderr, чтобы не потерять диагностику
		core := zapcore.NewCore(zapcore.NewJSONEncoder(config.EncoderConfig), zapcore.Lock(os.Stderr), config.Level)
		logger = zap.New(core, zap.AddCaller())
		logger.Warn("Failed to open log output, using stderr",
			zap.Strings("paths", outputPath),
			zap.Error(err))
	}
	return logger
}
