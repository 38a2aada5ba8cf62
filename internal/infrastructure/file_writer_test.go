package infrastructure

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"
	"gonum.org/v1/gonum/mat"
)

func TestWriteConfusion(t *testing.T) {
	confusion := mat.NewDense(2, 2, []float64{
		5, 1,
		0, 3,
	})
	path := filepath.Join(t.TempDir(), "confusion.tsv")

	if err := NewTXTFileWriter(zaptest.NewLogger(t)).WriteConfusion(path, confusion); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := strings.Join([]string{
		"Exp/Pred\t0\t1",
		"0\t5\t1",
		"1\t0\t3",
		"",
	}, "\n")
	if string(data) != want {
		t.Fatalf("expected %q, got %q", want, data)
	}
}
