package taskmgr

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/semaphore"

	sharederrors "github.com/tandemseis/hazengine/pkg/shared/errors"
	"github.com/tandemseis/hazengine/pkg/shared/logging"
)

// TaskFunc is a pure function taking a Block (the weighted work item) plus
// any additional broadcast arguments, and returning a serializable result.
// spec.md §4.2: workers are pure, communication is by serialized messages;
// in-process, "serialized" just means the caller must not mutate shared
// state from inside fn.
type TaskFunc func(ctx context.Context, block Block, rest ...interface{}) (interface{}, error)

// AggFunc folds one task's result into the running accumulator. It must be
// commutative and associative (spec.md §4.2/§5): results complete in
// arbitrary order.
type AggFunc func(acc, val interface{}) interface{}

// Result is one task's outcome, paired with its originating block so
// callers needing failure context (spec.md's `source_chunks`) can recover
// it.
type Result struct {
	Block Block
	Value interface{}
	Err   error
}

// ChunkInfo records one task's sent/received byte counts for the
// `source_chunks` reporting table (spec.md §6).
type ChunkInfo struct {
	TaskName      string
	BlockKey      string
	SentBytes     int64
	ReceivedBytes int64
	Failed        bool
}

// Options configures a TaskManager.
type Options struct {
	ConcurrentTasks int
	Log             logr.Logger
	MemoryGuard     *MemoryGuard
	Metrics         *Metrics
}

// TaskManager submits weighted work items to a bounded worker pool,
// collects results, and reduces them with a caller-supplied aggregation
// function (spec.md §4.2).
type TaskManager struct {
	concurrentTasks int
	log             logr.Logger
	memGuard        *MemoryGuard
	metrics         *Metrics
	breaker         *gobreaker.CircuitBreaker

	sentBytes     int64
	receivedBytes int64

	chunksMu sync.Mutex
	chunks   []ChunkInfo
}

// New builds a TaskManager. concurrentTasks bounds the number of
// in-flight goroutines (the in-process analog of a worker pool size).
func New(opts Options) *TaskManager {
	if opts.ConcurrentTasks < 1 {
		opts.ConcurrentTasks = 1
	}
	if opts.MemoryGuard == nil {
		opts.MemoryGuard = NewMemoryGuard(0, 90, 100)
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics("hazengine")
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "taskmgr",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &TaskManager{
		concurrentTasks: opts.ConcurrentTasks,
		log:             opts.Log,
		memGuard:        opts.MemoryGuard,
		metrics:         opts.Metrics,
		breaker:         breaker,
	}
}

// SentBytes/ReceivedBytes report the accumulated byte counters spec.md
// §4.2 requires for the `source_chunks` reporting table.
func (m *TaskManager) SentBytes() int64     { return m.sentBytes }
func (m *TaskManager) ReceivedBytes() int64 { return m.receivedBytes }

// Chunks returns the recorded per-task sent/received byte rows for the
// `source_chunks` table (spec.md §6), in completion order.
func (m *TaskManager) Chunks() []ChunkInfo {
	m.chunksMu.Lock()
	defer m.chunksMu.Unlock()
	out := make([]ChunkInfo, len(m.chunks))
	copy(out, m.chunks)
	return out
}

func (m *TaskManager) recordChunk(c ChunkInfo) {
	m.chunksMu.Lock()
	m.chunks = append(m.chunks, c)
	m.chunksMu.Unlock()
}

// Starmap submits one task per block eagerly and returns the raw result
// channel, draining of which is the caller's responsibility via Reduce or
// Wait.
func (m *TaskManager) Starmap(ctx context.Context, fn TaskFunc, blocks []Block, name string, rest ...interface{}) <-chan Result {
	out := make(chan Result, len(blocks))
	if len(blocks) == 0 {
		close(out)
		return out
	}
	sem := semaphore.NewWeighted(int64(m.concurrentTasks))
	go func() {
		defer close(out)
		for i, b := range blocks {
			if err := sem.Acquire(ctx, 1); err != nil {
				out <- Result{Block: b, Err: sharederrors.Wrapf(err, "acquire worker slot for %s", name)}
				continue
			}
			block := b
			idx := i
			go func() {
				defer sem.Release(1)
				logging.WithFields(m.log, logging.TaskFields(name, fmt.Sprintf("%s-%d", name, idx))).V(1).Info("submitting task")
				m.metrics.TaskSubmitted(name)
				if err := m.memGuard.Check(); err != nil {
					out <- Result{Block: block, Err: err}
					return
				}
				sent := estimateSize(block)
				m.sentBytes += sent
				m.metrics.BytesSent(name, sent)
				raw, err := m.breaker.Execute(func() (interface{}, error) {
					return func() (val interface{}, err error) {
						defer func() {
							if r := recover(); r != nil {
								err = sharederrors.NewTaskError(name, fmt.Sprintf("%v", r))
							}
						}()
						return fn(ctx, block, rest...)
					}()
				})
				if err != nil {
					m.metrics.TaskFailed(name)
					m.recordChunk(ChunkInfo{TaskName: name, BlockKey: block.Key, SentBytes: sent, Failed: true})
					out <- Result{Block: block, Err: sharederrors.NewTaskError(name, err.Error())}
					return
				}
				v := raw
				recv := estimateSize(v)
				m.receivedBytes += recv
				m.metrics.BytesReceived(name, recv)
				m.metrics.TaskCompleted(name)
				m.recordChunk(ChunkInfo{TaskName: name, BlockKey: block.Key, SentBytes: sent, ReceivedBytes: recv})
				out <- Result{Block: block, Value: v}
			}()
		}
	}()
	return out
}

// Reduce drains results, folding each into acc via agg with a
// running-count progress log line. If any task reports an error, Reduce
// re-raises it as a driver-side TaskError, aborting the fold
// (spec.md §4.2/§7).
func (m *TaskManager) Reduce(results <-chan Result, agg AggFunc, acc0 interface{}, posthook func(interface{})) (interface{}, error) {
	acc := acc0
	total := 0
	done := 0
	// results is unbuffered-safe to range only once; callers needing the
	// total count up front should len() the blocks slice before calling
	// Starmap. Progress logging here is best-effort (percent of what has
	// arrived so far relative to nothing known in advance is meaningless,
	// so we just log a running count).
	for r := range results {
		total++
		if r.Err != nil {
			return acc, r.Err
		}
		if err := m.memGuard.Check(); err != nil {
			return acc, err
		}
		acc = agg(acc, r.Value)
		done++
		m.log.V(1).Info("reduced task result", "done", done)
	}
	if posthook != nil {
		posthook(acc)
	}
	return acc, nil
}

// Wait drains results counting completions only, discarding values; used
// when the caller only cares that every task finished without error.
func (m *TaskManager) Wait(results <-chan Result) error {
	for r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}

// ApplyReduce splits items into weighted blocks via SplitInBlocks (never
// crossing a keyFn boundary; the block count can exceed concurrentTasks),
// submits one task per block, then reduces (spec.md §4.2).
func (m *TaskManager) ApplyReduce(ctx context.Context, fn TaskFunc, items []Item, rest []interface{}, agg AggFunc, acc0 interface{}, concurrentTasks int, weightFn func(Item) float64, keyFn func(Item) string, name string, posthook func(interface{})) (interface{}, error) {
	if len(items) == 0 {
		return acc0, nil
	}
	blocks := SplitInBlocks(items, concurrentTasks, weightFn, keyFn)
	results := m.Starmap(ctx, fn, blocks, name, rest...)
	return m.Reduce(results, agg, acc0, posthook)
}

// estimateSize is a crude stand-in for spec.md §4.2's serialized message
// size accounting: in-process execution never actually serializes, so we
// approximate with 64 bytes per unit of weight for values that report a
// Weight, and 256 bytes for any other non-nil value.
func estimateSize(v interface{}) int64 {
	if v == nil {
		return 0
	}
	if sz, ok := v.(interface{ Weight() float64 }); ok {
		return int64(sz.Weight()) * 64
	}
	return 256
}
