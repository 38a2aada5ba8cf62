package app

import "testing"

func TestPartitionTenOverThree(t *testing.T) {
	got := Partition(10, 3)
	want := []Range{{0, 4}, {4, 7}, {7, 10}}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestPartitionCoversEveryIndexOnce(t *testing.T) {
	for n := 0; n <= 40; n++ {
		for workers := 1; workers <= 9; workers++ {
			ranges := Partition(n, workers)
			if len(ranges) != workers {
				t.Fatalf("n=%d workers=%d: expected %d ranges, got %d", n, workers, workers, len(ranges))
			}

			seen := make([]int, n)
			for i, r := range ranges {
				want := n / workers
				if i < n%workers {
					want++
				}
				if r.Len() != want {
					t.Fatalf("n=%d workers=%d: range %d has %d items, expected %d", n, workers, i, r.Len(), want)
				}
				for idx := r.Start; idx < r.End; idx++ {
					seen[idx]++
				}
			}
			for idx, c := range seen {
				if c != 1 {
					t.Fatalf("n=%d workers=%d: index %d covered %d times", n, workers, idx, c)
				}
			}
		}
	}
}
