// Package ingress implements the bounded, priority- and TTL-ordered
// command buffer the tick engine drains once per tick.
package ingress

import (
	"math"
	"sort"

	"github.com/behrlich/simcore/arena"
	"github.com/behrlich/simcore/contract"
	"github.com/behrlich/simcore/errs"
)

// seqSentinel stands in for an absent source_id or source_seq in the
// composite sort key, so anonymous commands sort after source-keyed ones
// at equal priority.
const seqSentinel = math.MaxUint64

// Kind distinguishes the built-in command variants. Kind values beyond
// KindCustom are an open extension point; whether a given Kind is
// understood is up to the CommandApplier configured on the world.
type Kind int

const (
	KindSetParameter Kind = iota
	KindSetField
	KindCustom
)

// Command is one caller-submitted mutation request.
type Command struct {
	Kind Kind

	ParameterKey   string
	ParameterValue float64

	Coord      contract.Coord
	FieldID    arena.FieldID
	FieldValue float32

	CustomPayload any

	PriorityClass int
	SourceID      *uint64
	SourceSeq     *uint64

	// ExpiresAfterTick is the last tick at which this command is still
	// valid to apply; expires_after_tick == current_tick survives drain.
	ExpiresAfterTick uint64

	arrivalSeq uint64
	batchIndex int
}

// Receipt reports the outcome of one submitted command, correlated back
// to its original batch-local index.
type Receipt struct {
	BatchIndex  int
	Accepted    bool
	AppliedTick *uint64
	Reason      errs.Kind
}

// Queue is a bounded command buffer with a monotonic arrival-sequence
// counter that persists across submissions.
type Queue struct {
	capacity int
	items    []Command
	nextSeq  uint64
}

// NewQueue returns an empty queue with the given capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{capacity: capacity}
}

// Len returns the number of currently buffered commands.
func (q *Queue) Len() int { return len(q.items) }

// Submit stamps and buffers each command in batch, in order, and returns
// one receipt per command. If tickDisabled, every command is rejected
// with a tick-disabled reason without consuming queue capacity.
func (q *Queue) Submit(batch []Command, tickDisabled bool) []Receipt {
	receipts := make([]Receipt, len(batch))
	for i, cmd := range batch {
		switch {
		case tickDisabled:
			receipts[i] = Receipt{BatchIndex: i, Accepted: false, Reason: errs.IngressTickDisabled}
		case len(q.items) >= q.capacity:
			receipts[i] = Receipt{BatchIndex: i, Accepted: false, Reason: errs.IngressQueueFull}
		default:
			cmd.arrivalSeq = q.nextSeq
			q.nextSeq++
			cmd.batchIndex = i
			q.items = append(q.items, cmd)
			receipts[i] = Receipt{BatchIndex: i, Accepted: true}
		}
	}
	return receipts
}

// Drain removes every buffered command, partitions it by expiry against
// currentTick, and returns the survivors sorted by the composite key
// (priority_class, source_id-or-MAX, source_seq-or-MAX, arrival_seq)
// ascending, plus stale receipts for expired commands.
func (q *Queue) Drain(currentTick uint64) (valid []Command, stale []Receipt) {
	items := q.items
	q.items = nil

	valid = make([]Command, 0, len(items))
	for _, cmd := range items {
		if cmd.ExpiresAfterTick < currentTick {
			stale = append(stale, Receipt{BatchIndex: cmd.batchIndex, Accepted: false, Reason: errs.IngressStale})
			continue
		}
		valid = append(valid, cmd)
	}

	sort.SliceStable(valid, func(i, j int) bool {
		return sortKey(valid[i]).less(sortKey(valid[j]))
	})

	return valid, stale
}

// BatchIndex returns the original batch-local index a drained command
// was submitted with, for correlating applied/not-applied receipts.
func (c Command) BatchIndex() int { return c.batchIndex }

type key struct {
	priority  int
	sourceID  uint64
	sourceSeq uint64
	arrival   uint64
}

func (a key) less(b key) bool {
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	if a.sourceID != b.sourceID {
		return a.sourceID < b.sourceID
	}
	if a.sourceSeq != b.sourceSeq {
		return a.sourceSeq < b.sourceSeq
	}
	return a.arrival < b.arrival
}

func sortKey(c Command) key {
	k := key{priority: c.PriorityClass, sourceID: seqSentinel, sourceSeq: seqSentinel, arrival: c.arrivalSeq}
	if c.SourceID != nil {
		k.sourceID = *c.SourceID
	}
	if c.SourceSeq != nil {
		k.sourceSeq = *c.SourceSeq
	}
	return k
}
