package alert

import (
	"context"
	"log"
	"sync"
	"time"
)

// Engine owns the two alert loops for the whole process.
//
// The new-order loop is edge-triggered: it starts when a genuinely new order
// arrives and repeats on a cadence until someone acknowledges the backlog.
// The pending alarm is level-triggered: it plays exactly while unacknowledged
// pending orders exist and alerts are enabled, and stops the instant the
// condition clears.
//
// Both loop handles are singleton state: at most one of each runs regardless
// of how many views are attached.
type Engine struct {
	session *AudioSession
	cadence time.Duration

	newOrderBuf []byte
	alarmBuf    []byte

	mu          sync.Mutex
	enabled     bool
	lastPending int
	stopNew     context.CancelFunc
	stopAlarm   context.CancelFunc
}

func NewEngine(session *AudioSession, cadence time.Duration) *Engine {
	e := &Engine{session: session, cadence: cadence, enabled: true}
	var err error
	if e.newOrderBuf, err = session.Load("sounds/new-order.wav"); err != nil {
		log.Printf("load new-order sound: %v", err)
	}
	if e.alarmBuf, err = session.Load("sounds/pending-alarm.wav"); err != nil {
		log.Printf("load pending-alarm sound: %v", err)
	}
	return e
}

// NotifyNewOrder starts the edge-triggered loop. If one is already running
// it keeps running; loops never stack.
func (e *Engine) NotifyNewOrder() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopNew != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.stopNew = cancel
	go e.loop(ctx, e.newOrderBuf)
}

// Acknowledge stops the new-order loop. Any staff action on the backlog
// counts; calling it with no loop running is a no-op.
func (e *Engine) Acknowledge() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopNew != nil {
		e.stopNew()
		e.stopNew = nil
	}
}

// NewOrderLoopActive reports whether the edge-triggered loop is running.
func (e *Engine) NewOrderLoopActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopNew != nil
}

// SetEnabled toggles alerting and re-evaluates the pending alarm right away.
func (e *Engine) SetEnabled(v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = v
	e.evalAlarmLocked()
}

func (e *Engine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

// ObservePending feeds the level input; called on every snapshot.
func (e *Engine) ObservePending(count int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastPending = count
	e.evalAlarmLocked()
}

// AlarmActive reports whether the level-triggered alarm is running.
func (e *Engine) AlarmActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopAlarm != nil
}

// alarm runs iff pending > 0 and alerts are enabled; no tail repetitions
func (e *Engine) evalAlarmLocked() {
	active := e.lastPending > 0 && e.enabled
	switch {
	case active && e.stopAlarm == nil:
		ctx, cancel := context.WithCancel(context.Background())
		e.stopAlarm = cancel
		go e.loop(ctx, e.alarmBuf)
	case !active && e.stopAlarm != nil:
		e.stopAlarm()
		e.stopAlarm = nil
	}
}

func (e *Engine) loop(ctx context.Context, buf []byte) {
	e.session.Play(buf)
	t := time.NewTicker(e.cadence)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			e.session.Play(buf)
		}
	}
}
