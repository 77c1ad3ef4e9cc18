package kernel

import (
	"sync"
	"time"
)

// queueItem pairs a message with the options it was accepted under.
type queueItem struct {
	msg  *Message
	opts SendOptions
}

// QueueStats mirrors the processed/errors/queueFull counters §4.10 asks
// for in prose.
type QueueStats struct {
	Processed uint64
	Errors    uint64
	QueueFull uint64
}

// Queue is a bounded FIFO mailbox for one subsystem. Push backpressures by
// returning queue_full rather than blocking or growing unbounded — the
// teacher's actor mailbox is an unbounded Go channel; Mycelia's subsystems
// need the explicit bound §4.10 calls for.
type Queue struct {
	mu       sync.Mutex
	items    []queueItem
	capacity int
	stats    QueueStats
}

func NewQueue(capacity int) *Queue {
	return &Queue{capacity: capacity}
}

func (q *Queue) Push(msg *Message, opts SendOptions) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.capacity {
		q.stats.QueueFull++
		return NewError(ErrQueueFull, msg.Path())
	}
	q.items = append(q.items, queueItem{msg: msg, opts: opts})
	return nil
}

// pop removes and returns the oldest item, FIFO.
func (q *Queue) pop() (queueItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return queueItem{}, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}

// MessageProcessor drains a BaseSubsystem's Queue tick by tick, tracking
// per-tick success/error counts.
type MessageProcessor struct {
	owner *BaseSubsystem
}

func NewMessageProcessor(owner *BaseSubsystem) *MessageProcessor {
	return &MessageProcessor{owner: owner}
}

// processTick pops and routes exactly one message, reporting whether a
// message was actually processed (false when the queue was empty).
func (p *MessageProcessor) processTick() bool {
	item, ok := p.owner.queue.pop()
	if !ok {
		return false
	}
	_, err := p.owner.ProcessImmediately(item.msg)
	p.owner.queue.mu.Lock()
	if err != nil {
		p.owner.queue.stats.Errors++
	} else {
		p.owner.queue.stats.Processed++
	}
	p.owner.queue.mu.Unlock()
	if err != nil {
		p.owner.Logger.Warn("message processing failed", "subsystem", p.owner.Name, "path", item.msg.Path(), "err", err)
	}
	return true
}

// Process drains the queue for up to timeSlice, returning how many messages
// were processed. Returns early once the queue empties.
func (p *MessageProcessor) Process(timeSlice time.Duration) int {
	deadline := time.Now().Add(timeSlice)
	n := 0
	for time.Now().Before(deadline) {
		if !p.processTick() {
			break
		}
		n++
	}
	return n
}
