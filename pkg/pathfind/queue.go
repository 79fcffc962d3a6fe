package pathfind

// openItem is one entry of the open set. A node can appear several times
// after its g improves; stale entries are skipped when popped.
type openItem struct {
	cell int     // row-major cell index
	g    float64 // cost from start when pushed
	f    float64 // g + h
	h    float64 // heuristic to goal
	seq  uint64  // insertion order
}

// openSet is a min-heap of *openItem ordered by f, then h, then seq.
type openSet []*openItem

// Len returns the number of items in the heap.
func (pq openSet) Len() int { return len(pq) }

// Less orders by total cost with deterministic tie-breaks.
func (pq openSet) Less(i, j int) bool {
	a, b := pq[i], pq[j]
	if a.f != b.f {
		return a.f < b.f
	}
	if a.h != b.h {
		return a.h < b.h
	}
	return a.seq < b.seq
}

// Swap swaps two elements in the heap.
func (pq openSet) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }

// Push adds x onto the heap; called by heap.Push.
func (pq *openSet) Push(x interface{}) { *pq = append(*pq, x.(*openItem)) }

// Pop removes and returns the last element; called by heap.Pop.
func (pq *openSet) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]

	return item
}
