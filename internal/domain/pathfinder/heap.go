package pathfinder

import "github.com/simcore/simcore/internal/domain/mapmodel"

type searchNode struct {
	lane mapmodel.LaneID
	g    float64
	f    float64
}

// nodeHeap is a binary min-heap over searchNode.f, the A* open set.
type nodeHeap []*searchNode

func (h nodeHeap) Len() int            { return len(h) }
func (h nodeHeap) Less(i, j int) bool  { return h[i].f < h[j].f }
func (h nodeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x interface{}) { *h = append(*h, x.(*searchNode)) }
func (h *nodeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
