package goSession

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

type notifyDispatcher struct {
	cfg       NotifyConfig
	sink      NotificationSink
	logger    *zap.Logger
	ch        chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	failed    atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

func newNotifyDispatcher(cfg NotifyConfig, sink NotificationSink, logger *zap.Logger) *notifyDispatcher {
	if !cfg.Enabled || sink == nil {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &notifyDispatcher{
		cfg:    cfg,
		sink:   sink,
		logger: logger,
		ch:     make(chan Event, cfg.BufferSize),
		done:   make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *notifyDispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.ch:
			d.deliver(event)
		case <-d.done:
			for {
				select {
				case event := <-d.ch:
					d.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (d *notifyDispatcher) deliver(event Event) {
	defer func() {
		if r := recover(); r != nil {
			d.failed.Add(1)
			d.logger.Warn("notification sink panicked",
				zap.String("type", event.Type),
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()

	if err := d.sink.Emit(context.Background(), event); err != nil {
		d.failed.Add(1)
		d.logger.Warn("notification sink failed",
			zap.String("type", event.Type),
			zap.String("subject_id", event.SubjectID),
			zap.Error(err),
		)
	}
}

// Emit queues event for delivery. A full buffer drops the event and counts it,
// so Emit never blocks. With BlockWhenFull it instead waits for buffer space
// until ctx is done or the dispatcher closes.
func (d *notifyDispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if !d.cfg.BlockWhenFull {
		select {
		case d.ch <- event:
		case <-d.done:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.ch <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.done:
	}
}

// Close stops accepting events and drains the buffer into the sink.
func (d *notifyDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

func (d *notifyDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

func (d *notifyDispatcher) Failed() uint64 {
	if d == nil {
		return 0
	}
	return d.failed.Load()
}
