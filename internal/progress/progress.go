// Package progress carries advisory completion percentages out of the
// pipeline. Reports never influence control flow.
package progress

import "sync"

// Reporter receives completion percentages in the range 0..100.
type Reporter interface {
	Report(percent int)
}

// Func adapts a function to a Reporter.
type Func func(percent int)

// Report calls f.
func (f Func) Report(percent int) {
	f(percent)
}

// Nop discards every report.
var Nop Reporter = Func(func(int) {})

// Async decouples a slow renderer from the reporting goroutine. Report
// never blocks: a value the renderer has not picked up yet is replaced by
// the newer one. The last reported value is always rendered before Close
// returns.
type Async struct {
	mu      sync.Mutex
	pending int
	has     bool
	closed  bool
	wake    chan struct{}
	done    chan struct{}
}

// NewAsync starts a goroutine that calls render for reported values.
func NewAsync(render func(percent int)) *Async {
	a := &Async{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go a.loop(render)
	return a
}

// Report implements Reporter.
func (a *Async) Report(percent int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.pending = percent
	a.has = true

	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// Close renders the last report and stops the renderer goroutine.
func (a *Async) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.wake)
	}
	a.mu.Unlock()
	<-a.done
}

func (a *Async) loop(render func(int)) {
	defer close(a.done)
	for range a.wake {
		a.drain(render)
	}
	a.drain(render)
}

func (a *Async) drain(render func(int)) {
	a.mu.Lock()
	v, ok := a.pending, a.has
	a.has = false
	a.mu.Unlock()
	if ok {
		render(v)
	}
}
