package orderbook

import "container/heap"

// orderHeap implements heap.Interface over resting orders. Each order records
// its own slot (via pos) so that removal by id is O(log n).
// Use container/heap package to manipulate this heap (Init, Push, Pop, Remove)
type orderHeap struct {
	orders []*Order
	less   func(a, b *Order) bool
	pos    func(o *Order) *int
}

func newSideHeap() *orderHeap {
	return &orderHeap{less: better, pos: func(o *Order) *int { return &o.sidePos }}
}

func newExpiryHeap() *orderHeap {
	return &orderHeap{less: expiresFirst, pos: func(o *Order) *int { return &o.expiryPos }}
}

func (h *orderHeap) Len() int           { return len(h.orders) }
func (h *orderHeap) Less(i, j int) bool { return h.less(h.orders[i], h.orders[j]) }

func (h *orderHeap) Swap(i, j int) {
	h.orders[i], h.orders[j] = h.orders[j], h.orders[i]
	*h.pos(h.orders[i]) = i
	*h.pos(h.orders[j]) = j
}

func (h *orderHeap) Push(x interface{}) {
	o := x.(*Order)
	*h.pos(o) = len(h.orders)
	h.orders = append(h.orders, o)
}

func (h *orderHeap) Pop() interface{} {
	old := h.orders
	n := len(old)
	o := old[n-1]
	old[n-1] = nil
	*h.pos(o) = -1
	h.orders = old[:n-1]
	return o
}

// Peek returns the top element without removing it
func (h *orderHeap) Peek() *Order {
	if len(h.orders) == 0 {
		return nil
	}
	return h.orders[0]
}

func (h *orderHeap) add(o *Order) { heap.Push(h, o) }

func (h *orderHeap) remove(o *Order) {
	if i := *h.pos(o); i >= 0 && i < len(h.orders) && h.orders[i] == o {
		heap.Remove(h, i)
	}
}
