// Package status carries the engine's notifications to whoever displays them.
package status

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// ReportPrefix starts the text published once a report file is written.
// Callers match on it to offer opening the file.
const ReportPrefix = "HTML report generated: "

type Kind int

const (
	KindText Kind = iota
	KindState
	KindReport
	KindFailure
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindState:
		return "state"
	case KindReport:
		return "report"
	case KindFailure:
		return "failure"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

type Message struct {
	Seq        int64     `json:"seq"`
	Time       time.Time `json:"time"`
	Kind       Kind      `json:"kind"`
	Text       string    `json:"text"`
	CanStart   bool      `json:"can_start"`
	CanStop    bool      `json:"can_stop"`
	ReportPath string    `json:"report_path,omitempty"`
}

// ParseReportPath extracts the path from a report message text.
func ParseReportPath(text string) (string, bool) {
	if !strings.HasPrefix(text, ReportPrefix) {
		return "", false
	}
	return strings.TrimPrefix(text, ReportPrefix), true
}

// Feed fans messages out to subscribers. Every subscriber has its own
// unbounded queue drained by one goroutine, so Publish never blocks and each
// subscriber sees messages in publish order.
type Feed struct {
	mu     sync.Mutex
	seq    int64
	subs   map[*subscriber]struct{}
	closed bool
	now    func() time.Time
}

func NewFeed() *Feed {
	return &Feed{
		subs: make(map[*subscriber]struct{}),
		now:  time.Now,
	}
}

type subscriber struct {
	ch      chan Message
	mu      sync.Mutex
	pending []Message
	wake    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// Subscribe returns a channel receiving every message published from now on,
// and a function that detaches it. The channel is closed once detached.
func (f *Feed) Subscribe() (<-chan Message, func()) {
	s := &subscriber{
		ch:   make(chan Message),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		close(s.ch)
		return s.ch, func() {}
	}
	f.subs[s] = struct{}{}
	f.mu.Unlock()

	go s.pump()

	cancel := func() {
		f.detach(s)
		s.stop()
	}
	return s.ch, cancel
}

// SubscribeDrained is like Subscribe, but its detach function lets the channel
// deliver every message published before the call, then closes it. The
// caller must keep reading until the channel is closed.
func (f *Feed) SubscribeDrained() (<-chan Message, func()) {
	s := &subscriber{
		ch:   make(chan Message),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		close(s.ch)
		return s.ch, func() {}
	}
	f.subs[s] = struct{}{}
	f.mu.Unlock()

	go s.pump()

	var once sync.Once
	detach := func() {
		once.Do(func() {
			if f.detach(s) {
				s.drainAndStop()
			}
		})
	}
	return s.ch, detach
}

// detach reports whether s was still subscribed; Close drains the others.
func (f *Feed) detach(s *subscriber) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.subs[s]
	delete(f.subs, s)
	return ok
}

func (f *Feed) Publish(msg Message) Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return msg
	}
	f.seq++
	msg.Seq = f.seq
	if msg.Time.IsZero() {
		msg.Time = f.now()
	}
	for s := range f.subs {
		s.push(msg)
	}
	return msg
}

func (f *Feed) Text(format string, args ...any) {
	f.Publish(Message{Kind: KindText, Text: fmt.Sprintf(format, args...)})
}

func (f *Feed) Failure(err error) {
	f.Publish(Message{Kind: KindFailure, Text: err.Error()})
}

func (f *Feed) State(canStart, canStop bool) {
	f.Publish(Message{
		Kind:     KindState,
		Text:     fmt.Sprintf("can start: %t, can stop: %t", canStart, canStop),
		CanStart: canStart,
		CanStop:  canStop,
	})
}

func (f *Feed) Report(path string) {
	f.Publish(Message{Kind: KindReport, Text: ReportPrefix + path, ReportPath: path})
}

// Close detaches every subscriber. Messages already queued are still delivered.
func (f *Feed) Close() {
	f.mu.Lock()
	subs := f.subs
	f.subs = map[*subscriber]struct{}{}
	f.closed = true
	f.mu.Unlock()
	for s := range subs {
		s.drainAndStop()
	}
}

func (s *subscriber) push(msg Message) {
	s.mu.Lock()
	s.pending = append(s.pending, msg)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

// drainAndStop lets the pump flush what is pending before it exits.
func (s *subscriber) drainAndStop() {
	s.mu.Lock()
	s.pending = append(s.pending, Message{Kind: -1})
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) pump() {
	defer close(s.ch)
	for {
		select {
		case <-s.wake:
		case <-s.done:
			return
		}
		s.mu.Lock()
		batch := s.pending
		s.pending = nil
		s.mu.Unlock()

		for _, msg := range batch {
			if msg.Kind < 0 {
				return
			}
			select {
			case s.ch <- msg:
			case <-s.done:
				return
			}
		}
	}
}
