package render

import (
	"sync"
	"time"
)

// Loop runs a frame callback at a fixed rate between Start and Stop.
type Loop struct {
	interval time.Duration
	frame    func()

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewLoop creates a stopped loop calling frame fps times per second.
func NewLoop(fps float64, frame func()) *Loop {
	if fps <= 0 {
		fps = 30
	}
	return &Loop{
		interval: time.Duration(float64(time.Second) / fps),
		frame:    frame,
	}
}

// Start begins scheduling frames. Starting a running loop does nothing.
func (l *Loop) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stop != nil {
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	l.stop, l.done = stop, done
	go l.run(stop, done)
}

// Stop cancels scheduling. A frame already in progress completes; no new
// frame starts afterwards. Stop does not wait, so it may be called from code
// the frame callback itself blocks on.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stop == nil {
		return
	}
	close(l.stop)
	l.stop = nil
}

// Running reports whether frames are being scheduled.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stop != nil
}

// Wait blocks until the most recently started goroutine has exited.
func (l *Loop) Wait() {
	l.mu.Lock()
	done := l.done
	l.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (l *Loop) run(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		select {
		case <-stop:
			return
		default:
		}
		l.frame()
	}
}
