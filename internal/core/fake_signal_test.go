package core_test

import (
	"encoding/json"
	"sync"

	"github.com/dkeye/Prompter/internal/core"
)

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// fakeSignal records frames. Setting full simulates a saturated queue.
type fakeSignal struct {
	mu     sync.Mutex
	frames []frame
	full   bool
	closed bool
}

func (f *fakeSignal) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return core.ErrConnectionClosed
	}
	if f.full {
		return core.ErrBackpressure
	}
	var msg frame
	if err := json.Unmarshal(fr, &msg); err != nil {
		return err
	}
	f.frames = append(f.frames, msg)
	return nil
}

func (f *fakeSignal) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeSignal) setFull(v bool) {
	f.mu.Lock()
	f.full = v
	f.mu.Unlock()
}

func (f *fakeSignal) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeSignal) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.frames))
	for _, fr := range f.frames {
		out = append(out, fr.Type)
	}
	return out
}

func (f *fakeSignal) count(typ string) int {
	n := 0
	for _, t := range f.types() {
		if t == typ {
			n++
		}
	}
	return n
}

// last decodes the payload of the most recent frame of typ into v.
func (f *fakeSignal) last(typ string, v any) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.frames) - 1; i >= 0; i-- {
		if f.frames[i].Type == typ {
			return json.Unmarshal(f.frames[i].Payload, v) == nil
		}
	}
	return false
}

func (f *fakeSignal) reset() {
	f.mu.Lock()
	f.frames = nil
	f.mu.Unlock()
}
