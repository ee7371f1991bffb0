package probe

import (
	"context"
	"errors"
	"sync"
)

// ErrScriptExhausted is returned by Scripted once every sample was handed out.
var ErrScriptExhausted = errors.New("scripted probe exhausted")

// Scripted replays a fixed list of samples, one per call. Afterwards every call
// fails with a probe Error, which the tracker treats as a skipped poll.
type Scripted struct {
	mu        sync.Mutex
	samples   []Sample
	next      int
	exhausted chan struct{}
}

func NewScripted(samples ...Sample) *Scripted {
	s := &Scripted{samples: samples, exhausted: make(chan struct{})}
	if len(samples) == 0 {
		close(s.exhausted)
	}
	return s
}

// Titles builds a script where program is the title followed by ".exe".
func Titles(titles ...string) *Scripted {
	samples := make([]Sample, len(titles))
	for i, t := range titles {
		samples[i] = Sample{Title: t, Program: t + ".exe"}
	}
	return NewScripted(samples...)
}

func (s *Scripted) Sample(ctx context.Context) (Sample, error) {
	if err := ctx.Err(); err != nil {
		return Sample{}, &Error{Op: "scripted", Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.samples) {
		return Sample{}, &Error{Op: "scripted", Err: ErrScriptExhausted}
	}
	smp := s.samples[s.next]
	s.next++
	if s.next == len(s.samples) {
		close(s.exhausted)
	}
	return smp, nil
}

// Exhausted is closed once the last sample was returned.
func (s *Scripted) Exhausted() <-chan struct{} {
	return s.exhausted
}
