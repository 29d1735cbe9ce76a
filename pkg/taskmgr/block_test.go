package taskmgr

import "testing"

func TestSplitInBlocks_RespectsKeyBoundary(t *testing.T) {
	items := []Item{"a1", "a2", "b1", "b2", "b3"}
	keyFn := func(it Item) string { return it.(string)[:1] }
	weightFn := func(it Item) float64 { return 1 }

	blocks := SplitInBlocks(items, 2, weightFn, keyFn)

	for _, b := range blocks {
		k := keyFn(b.Items[0])
		for _, it := range b.Items {
			if keyFn(it) != k {
				t.Fatalf("block mixes keys: %v", b.Items)
			}
		}
	}
}

func TestSplitInBlocks_WeightBound(t *testing.T) {
	items := make([]Item, 10)
	for i := range items {
		items[i] = i
	}
	weightFn := func(it Item) float64 { return 1 }
	concurrentTasks := 3

	blocks := SplitInBlocks(items, concurrentTasks, weightFn, nil)

	total := 0.0
	for _, it := range items {
		total += weightFn(it)
	}
	maxWeight := total / float64(concurrentTasks)
	if maxWeight < 1 {
		maxWeight = 1
	}
	for _, b := range blocks {
		if b.TotalWeight > maxWeight {
			t.Errorf("block weight %v exceeds bound %v", b.TotalWeight, maxWeight)
		}
	}
}

func TestSplitInBlocks_Empty(t *testing.T) {
	if blocks := SplitInBlocks(nil, 4, nil, nil); blocks != nil {
		t.Errorf("expected nil blocks for empty input, got %v", blocks)
	}
}
