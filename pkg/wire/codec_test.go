package wire

import (
	"bytes"
	"errors"
	"testing"

	"knn-ocr/internal/domain"
)

func TestWordIsBigEndian(t *testing.T) {
	buf := make([]byte, WordSize)
	PutWord(buf, 0x0102030405060708)
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if !bytes.Equal(buf, want) {
		t.Fatalf("expected %v, got %v", want, buf)
	}

	v, err := Word(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 0x0102030405060708 {
		t.Fatalf("expected 0x0102030405060708, got %#x", v)
	}
}

func TestWorkItemRoundTrip(t *testing.T) {
	c := NewCodec(4)
	item := domain.WorkItem{Index: 258, Features: []byte{0, 17, 128, 255}}

	buf, err := c.AppendWorkItem(nil, item)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(buf) != c.WorkItemSize() {
		t.Fatalf("expected %d bytes, got %d", c.WorkItemSize(), len(buf))
	}
	if !bytes.Equal(buf[:WordSize], []byte{0, 0, 0, 0, 0, 0, 1, 2}) {
		t.Fatalf("unexpected index encoding %v", buf[:WordSize])
	}

	got, err := c.DecodeWorkItem(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Index != item.Index || !bytes.Equal(got.Features, item.Features) {
		t.Fatalf("expected %+v, got %+v", item, got)
	}
}

func TestDecodeWorkItemsBackToBack(t *testing.T) {
	c := NewCodec(3)
	var buf []byte
	for i := range 5 {
		var err error
		buf, err = c.AppendWorkItem(buf, domain.WorkItem{Index: uint64(10 + i), Features: []byte{byte(i), byte(i), byte(i)}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	items, err := c.DecodeWorkItems(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 5 {
		t.Fatalf("expected 5 items, got %d", len(items))
	}
	for i, item := range items {
		if item.Index != uint64(10+i) || item.Features[0] != byte(i) {
			t.Fatalf("item %d decoded as %+v", i, item)
		}
	}
}

func TestDecodeWorkItemsEmptyStream(t *testing.T) {
	items, err := NewCodec(784).DecodeWorkItems(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no items, got %d", len(items))
	}
}

func TestAppendWorkItemRejectsWrongLength(t *testing.T) {
	if _, err := NewCodec(4).AppendWorkItem(nil, domain.WorkItem{Features: []byte{1, 2}}); err == nil {
		t.Fatalf("expected error for short feature vector")
	}
}

func TestResultRoundTrip(t *testing.T) {
	r := domain.ResultRecord{Index: 9999, Nearest: 59999}
	buf := EncodeResult(r)

	got, err := DecodeResult(buf[:])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != r {
		t.Fatalf("expected %+v, got %+v", r, got)
	}
}

func TestShortRecords(t *testing.T) {
	c := NewCodec(4)
	tests := []struct {
		name string
		err  error
	}{
		{"word", func() error { _, err := Word(make([]byte, WordSize-1)); return err }()},
		{"work item", func() error { _, err := c.DecodeWorkItem(make([]byte, c.WorkItemSize()-1)); return err }()},
		{"work item stream", func() error { _, err := c.DecodeWorkItems(make([]byte, c.WorkItemSize()+1)); return err }()},
		{"result", func() error { _, err := DecodeResult(make([]byte, ResultSize-1)); return err }()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, ErrShortRecord) {
				t.Fatalf("expected ErrShortRecord, got %v", tt.err)
			}
		})
	}
}
