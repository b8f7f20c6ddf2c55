package recommend

import "container/heap"

// Neighbor is a co-purchased product and its edge weight.
type Neighbor struct {
	ID     string
	Weight int
}

// topK selects the k heaviest neighbors with a bounded min-heap, then
// returns them heaviest first with ties by ascending ID.
func topK(neighbors map[string]int, k int, keep func(string) bool) []Neighbor {
	h := &neighborHeap{}
	for id, weight := range neighbors {
		if keep != nil && !keep(id) {
			continue
		}
		heap.Push(h, Neighbor{ID: id, Weight: weight})
		if h.Len() > k {
			heap.Pop(h)
		}
	}
	result := make([]Neighbor, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(Neighbor)
	}
	return result
}

// neighborHeap keeps the weakest candidate at the root. Among equal weights
// the larger ID is weaker.
type neighborHeap []Neighbor

func (h neighborHeap) Len() int { return len(h) }

func (h neighborHeap) Less(i, j int) bool {
	if h[i].Weight != h[j].Weight {
		return h[i].Weight < h[j].Weight
	}
	return h[i].ID > h[j].ID
}

func (h neighborHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *neighborHeap) Push(x any) {
	*h = append(*h, x.(Neighbor))
}

func (h *neighborHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
