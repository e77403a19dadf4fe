package threatguard

import (
	"sync"
	"sync/atomic"

	"github.com/oarkflow/log"
)

// AlertCallback receives every recorded event. Callbacks run on the
// dispatcher goroutine, isolated from each other: one panicking callback
// neither stops the others nor reaches the recorder.
type AlertCallback func(event *SecurityEvent)

// DefaultAlertQueueSize bounds the dispatch backlog.
const DefaultAlertQueueSize = 1024

// AlertDispatcher fans recorded events out to registered observers.
// Dispatch is asynchronous through a bounded queue with drop-oldest
// backpressure, so a slow observer cannot add latency to the request that
// triggered the event. Synchronous mode exists for deterministic tests.
type AlertDispatcher struct {
	mu        sync.RWMutex
	callbacks []AlertCallback
	queue     chan *SecurityEvent
	sync      bool
	dropped   atomic.Int64
	logger    *log.Logger
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewAlertDispatcher(queueSize int, synchronous bool, logger *log.Logger) *AlertDispatcher {
	if queueSize <= 0 {
		queueSize = DefaultAlertQueueSize
	}
	if logger == nil {
		logger = &log.DefaultLogger
	}
	d := &AlertDispatcher{
		queue:  make(chan *SecurityEvent, queueSize),
		sync:   synchronous,
		logger: logger,
	}
	if !synchronous {
		d.wg.Add(1)
		go d.consume()
	}
	return d
}

// RegisterCallback adds an observer for every subsequent event.
func (d *AlertDispatcher) RegisterCallback(fn AlertCallback) {
	if fn == nil {
		return
	}
	d.mu.Lock()
	d.callbacks = append(d.callbacks, fn)
	d.mu.Unlock()
}

// Dispatch hands one finalized event to the observers. High and critical
// events are additionally logged unconditionally.
func (d *AlertDispatcher) Dispatch(event *SecurityEvent) {
	if event == nil {
		return
	}
	if event.Severity.AtLeast(SeverityHigh) {
		d.logger.Warn().
			Str("event_id", event.ID).
			Str("type", string(event.Type)).
			Str("severity", string(event.Severity)).
			Str("ip", event.SourceAddress).
			Msg("security alert")
	}
	if d.sync {
		d.deliver(event)
		return
	}
	for {
		select {
		case d.queue <- event:
			return
		default:
		}
		// Queue full: drop the oldest pending alert and retry.
		select {
		case <-d.queue:
			d.dropped.Add(1)
		default:
		}
	}
}

func (d *AlertDispatcher) consume() {
	defer d.wg.Done()
	for event := range d.queue {
		d.deliver(event)
	}
}

func (d *AlertDispatcher) deliver(event *SecurityEvent) {
	d.mu.RLock()
	callbacks := make([]AlertCallback, len(d.callbacks))
	copy(callbacks, d.callbacks)
	d.mu.RUnlock()
	for _, fn := range callbacks {
		d.safeInvoke(fn, event)
	}
}

func (d *AlertDispatcher) safeInvoke(fn AlertCallback, event *SecurityEvent) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().
				Str("event_id", event.ID).
				Msgf("alert callback panicked: %v", r)
		}
	}()
	fn(event)
}

// Dropped returns how many alerts were discarded under backpressure.
func (d *AlertDispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Close stops the consumer after draining pending alerts.
func (d *AlertDispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.queue)
		if !d.sync {
			d.wg.Wait()
		}
	})
}
