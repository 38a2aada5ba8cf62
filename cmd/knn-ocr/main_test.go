package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"knn-ocr/internal/app"
	"knn-ocr/internal/domain"
	"knn-ocr/internal/infrastructure"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

const helperEnv = "KNN_OCR_HELPER_PROCESS"

// TestMain позволяет тестовому бинарнику выступать в роли воркера:
// ProcessLauncher перезапускает os.Executable() с подкомандой worker.
func TestMain(m *testing.M) {
	if os.Getenv(helperEnv) == "1" {
		os.Exit(run(os.Args, os.Stdout, os.Stderr))
	}
	os.Exit(m.Run())
}

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

// writeMNIST пишет выборки 3x3 с файлами под стандартными именами
func writeMNIST(t *testing.T, nTest int, mislabel ...int) string {
	t.Helper()
	train := &domain.Dataset{Rows: 3, Cols: 3}
	for label := range domain.NumLabels {
		for j := range 3 {
			train.Samples = append(train.Samples, domain.Sample{
				Features: bytes.Repeat([]byte{byte(label*25 + j)}, 9),
				Label:    uint8(label),
			})
		}
	}
	test := &domain.Dataset{Rows: 3, Cols: 3}
	for i := range nTest {
		label := i % domain.NumLabels
		test.Samples = append(test.Samples, domain.Sample{
			Features: bytes.Repeat([]byte{byte(label*25 + 1)}, 9),
			Label:    uint8(label),
		})
	}
	for _, i := range mislabel {
		test.Samples[i].Label = (test.Samples[i].Label + 1) % domain.NumLabels
	}

	dir := t.TempDir()
	w := infrastructure.NewIDXWriter(zaptest.NewLogger(t))
	if err := w.WriteDataset(dir, "train-images-idx3-ubyte", "train-labels-idx1-ubyte", train); err != nil {
		t.Fatalf("write training set: %v", err)
	}
	if err := w.WriteDataset(dir, "t10k-images-idx3-ubyte", "t10k-labels-idx1-ubyte", test); err != nil {
		t.Fatalf("write test set: %v", err)
	}
	return dir
}

func TestRunProcessMode(t *testing.T) {
	t.Setenv(helperEnv, "1")
	dir := writeMNIST(t, 12, 7)

	// настоящий файл: воркеры пишут в общий дескриптор напрямую, как с os.Stdout
	stdoutPath := filepath.Join(t.TempDir(), "stdout")
	stdout, err := os.Create(stdoutPath)
	if err != nil {
		t.Fatalf("create stdout: %v", err)
	}
	defer stdout.Close()

	stderr := &syncBuffer{}
	code := run([]string{"knn-ocr", "-log-level", "error", dir, "0", "3", "3"}, stdout, stderr)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d; stderr: %s", code, stderr.String())
	}

	data, err := os.ReadFile(stdoutPath)
	if err != nil {
		t.Fatalf("read stdout: %v", err)
	}
	out := string(data)
	for i := 1; i <= 3; i++ {
		if !strings.Contains(out, fmt.Sprintf("Worker #%d PID: ", i)) {
			t.Fatalf("missing announcement for worker %d in %q", i, out)
		}
	}
	if strings.Contains(out, fmt.Sprintf("PID: %d\n", os.Getpid())) {
		t.Fatalf("workers must run in separate processes: %q", out)
	}
	// образец 7 похож на "7" (обучающий индекс 22), но помечен как "8"
	if !strings.Contains(out, "7[22] 8[7]\n") {
		t.Fatalf("missing mismatch line in %q", out)
	}
	want := app.FormatSuccess(float64(11) / float64(12) * 100.0)
	if !strings.HasSuffix(out, want+"\n") {
		t.Fatalf("expected %q at the end of %q", want, out)
	}
}

func TestRunInProcessModeWithConfusion(t *testing.T) {
	dir := writeMNIST(t, 20)
	confusion := filepath.Join(t.TempDir(), "confusion.tsv")

	stdout, stderr := &syncBuffer{}, &syncBuffer{}
	code := run([]string{"knn-ocr", "-mode", "inprocess", "-log-level", "error", "-confusion", confusion, dir, "10"}, stdout, stderr)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d; stderr: %s", code, stderr.String())
	}
	if !strings.HasSuffix(stdout.String(), "100% success\n") {
		t.Fatalf("unexpected output %q", stdout.String())
	}

	data, err := os.ReadFile(confusion)
	if err != nil {
		t.Fatalf("read confusion matrix: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != domain.NumLabels+1 || lines[1] != "0\t1\t0\t0\t0\t0\t0\t0\t0\t0\t0" {
		t.Fatalf("unexpected confusion matrix %q", data)
	}
}

func TestRunUsageErrors(t *testing.T) {
	dir := writeMNIST(t, 5)
	tests := []struct {
		name string
		args []string
	}{
		{"no data dir", []string{"knn-ocr"}},
		{"zero k", []string{"knn-ocr", dir, "5", "0"}},
		{"zero workers", []string{"knn-ocr", dir, "5", "3", "0"}},
		{"unparsable n_tests", []string{"knn-ocr", dir, "five"}},
		{"too many tests", []string{"knn-ocr", "-log-level", "error", dir, "6"}},
		{"k larger than training set", []string{"knn-ocr", "-log-level", "error", dir, "5", "31"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, stderr := &syncBuffer{}, &syncBuffer{}
			if code := run(tt.args, stdout, stderr); code != 1 {
				t.Fatalf("expected exit 1, got %d", code)
			}
			if !strings.Contains(stderr.String(), "usage: knn-ocr ") {
				t.Fatalf("expected usage on stderr, got %q", stderr.String())
			}
		})
	}
}

func TestRunMissingDataset(t *testing.T) {
	stdout, stderr := &syncBuffer{}, &syncBuffer{}
	if code := run([]string{"knn-ocr", "-log-level", "error", t.TempDir()}, stdout, stderr); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if stdout.String() != "" {
		t.Fatalf("expected no report, got %q", stdout.String())
	}
}

func TestInitLoggerFallsBackToStderr(t *testing.T) {
	logger := initLogger("info", filepath.Join(t.TempDir(), "missing", "knn-ocr.log"))
	if !logger.Core().Enabled(zap.InfoLevel) {
		t.Fatalf("expected a working logger when the log file cannot be opened")
	}
	if logger.Core().Enabled(zap.DebugLevel) {
		t.Fatalf("expected configured level to be kept")
	}
}
