package kernel

import (
	"container/heap"
	"log/slog"
	"sync"
	"time"
)

// ResponseHandler is invoked when a reply with matching inReplyTo arrives,
// or with a timeout error if the deadline passes first.
type ResponseHandler func(reply *Message, err error)

type pendingResponse struct {
	correlationID string
	replyTo       string
	deadline      time.Time
	handler       ResponseHandler
	heapIndex     int
}

// deadlineHeap is a min-heap over pendingResponse.deadline, letting
// ResponseManagerSubsystem keep exactly one timer armed for the earliest
// outstanding deadline instead of one timer per pending response.
type deadlineHeap []*pendingResponse

func (h deadlineHeap) Len() int            { return len(h) }
func (h deadlineHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h deadlineHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].heapIndex = i; h[j].heapIndex = j }
func (h *deadlineHeap) Push(x any) {
	p := x.(*pendingResponse)
	p.heapIndex = len(*h)
	*h = append(*h, p)
}
func (h *deadlineHeap) Pop() any {
	old := *h
	n := len(old)
	p := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return p
}

// ResponseManagerSubsystem correlates replies to the sends that requested
// them, firing a timeout handler if no reply arrives before the deadline —
// §4.13.
type ResponseManagerSubsystem struct {
	mu      sync.Mutex
	pending map[string]*pendingResponse
	heap    deadlineHeap
	timer   *time.Timer
	logger  *slog.Logger
}

func NewResponseManagerSubsystem(logger *slog.Logger) *ResponseManagerSubsystem {
	return &ResponseManagerSubsystem{
		pending: map[string]*pendingResponse{},
		logger:  logger,
	}
}

// RegisterPending records a correlation id awaiting a reply within timeout.
func (rm *ResponseManagerSubsystem) RegisterPending(correlationID, replyTo string, timeout time.Duration, handler ResponseHandler) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	p := &pendingResponse{
		correlationID: correlationID,
		replyTo:       replyTo,
		deadline:      time.Now().Add(timeout),
		handler:       handler,
	}
	rm.pending[correlationID] = p
	heap.Push(&rm.heap, p)
	rm.rearm()
}

// OnIngress dispatches reply to its waiting handler by reply.Meta().InReplyTo,
// if still pending. Returns true if a handler consumed the reply.
func (rm *ResponseManagerSubsystem) OnIngress(reply *Message) bool {
	corrID, ok := reply.Meta().InReplyTo()
	if !ok {
		return false
	}
	rm.mu.Lock()
	p, ok := rm.pending[corrID]
	if ok {
		rm.remove(p)
	}
	rm.mu.Unlock()
	if !ok {
		return false
	}
	p.handler(reply, nil)
	return true
}

// remove deletes p from both the map and the heap. Caller holds rm.mu.
func (rm *ResponseManagerSubsystem) remove(p *pendingResponse) {
	delete(rm.pending, p.correlationID)
	if p.heapIndex >= 0 && p.heapIndex < len(rm.heap) && rm.heap[p.heapIndex] == p {
		heap.Remove(&rm.heap, p.heapIndex)
	}
}

// rearm resets the single timer to fire at the earliest outstanding
// deadline. Caller holds rm.mu.
func (rm *ResponseManagerSubsystem) rearm() {
	if rm.timer != nil {
		rm.timer.Stop()
	}
	if rm.heap.Len() == 0 {
		return
	}
	earliest := rm.heap[0]
	d := time.Until(earliest.deadline)
	if d < 0 {
		d = 0
	}
	rm.timer = time.AfterFunc(d, rm.fireExpired)
}

// fireExpired times out every pending whose deadline has passed, then
// rearms for the next one.
func (rm *ResponseManagerSubsystem) fireExpired() {
	rm.mu.Lock()
	now := time.Now()
	var expired []*pendingResponse
	for rm.heap.Len() > 0 && !rm.heap[0].deadline.After(now) {
		p := heap.Pop(&rm.heap).(*pendingResponse)
		delete(rm.pending, p.correlationID)
		expired = append(expired, p)
	}
	rm.rearm()
	rm.mu.Unlock()

	for _, p := range expired {
		p.handler(nil, NewError(ErrTimeout, p.correlationID))
	}
}

// Pending reports how many correlations are still awaiting a reply.
func (rm *ResponseManagerSubsystem) Pending() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.pending)
}
