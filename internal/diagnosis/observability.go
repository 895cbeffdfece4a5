package diagnosis

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// LatencyObserver receives per-operation engine latencies.
type LatencyObserver interface {
	ObserveDiagnosisLatency(op string, duration time.Duration)
}

// StatusRecorder is optionally implemented by observers that also want
// the outcome status of each diagnosis.
type StatusRecorder interface {
	RecordDiagnosisStatus(status string)
}

// ZapLatencyObserver logs latencies through a zap logger.
type ZapLatencyObserver struct {
	logger *zap.Logger
}

func NewZapLatencyObserver(logger *zap.Logger) *ZapLatencyObserver {
	return &ZapLatencyObserver{logger: logger}
}

func (o *ZapLatencyObserver) ObserveDiagnosisLatency(op string, duration time.Duration) {
	if o == nil || o.logger == nil {
		return
	}
	o.logger.Info("diagnosis_latency",
		zap.String("op", op),
		zap.Float64("duration_ms", float64(duration.Microseconds())/1000.0))
}

// AsyncObserver decouples observation from the hot path. Latency and
// status events share one buffered channel drained by a single goroutine,
// so an observer sees them in the order the engine emitted them. Events
// overflowing the buffer are dropped and counted, never blocked on.
type AsyncObserver struct {
	next     LatencyObserver
	statuses StatusRecorder // nil when next does not record statuses
	events   chan observation
	once     sync.Once
	mu       sync.RWMutex
	closed   bool
	wg       sync.WaitGroup
	dropped  atomic.Uint64
}

type observation struct {
	op       string
	duration time.Duration
	status   string
	isStatus bool
}

func NewAsyncObserver(next LatencyObserver, buffer int) *AsyncObserver {
	if buffer <= 0 {
		buffer = 1
	}

	o := &AsyncObserver{
		next:   next,
		events: make(chan observation, buffer),
	}
	if sr, ok := next.(StatusRecorder); ok {
		o.statuses = sr
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		for ev := range o.events {
			switch {
			case ev.isStatus:
				o.statuses.RecordDiagnosisStatus(ev.status)
			case o.next != nil:
				o.next.ObserveDiagnosisLatency(ev.op, ev.duration)
			}
		}
	}()

	return o
}

func (o *AsyncObserver) ObserveDiagnosisLatency(op string, duration time.Duration) {
	if o == nil {
		return
	}
	o.enqueue(observation{op: op, duration: duration})
}

// RecordDiagnosisStatus forwards statuses when the wrapped observer
// records them; otherwise it is a no-op rather than buffer pressure.
func (o *AsyncObserver) RecordDiagnosisStatus(status string) {
	if o == nil || o.statuses == nil {
		return
	}
	o.enqueue(observation{status: status, isStatus: true})
}

func (o *AsyncObserver) enqueue(ev observation) {
	o.mu.RLock()
	if o.closed {
		o.mu.RUnlock()
		o.dropped.Add(1)
		return
	}
	select {
	case o.events <- ev:
	default:
		o.dropped.Add(1)
	}
	o.mu.RUnlock()
}

func (o *AsyncObserver) Dropped() uint64 {
	if o == nil {
		return 0
	}
	return o.dropped.Load()
}

func (o *AsyncObserver) Close() {
	if o == nil {
		return
	}
	o.once.Do(func() {
		o.mu.Lock()
		o.closed = true
		close(o.events)
		o.mu.Unlock()
		o.wg.Wait()
	})
}
