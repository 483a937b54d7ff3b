package events

import (
	"sync"

	"github.com/ariefcatur/go-diner-live.git/internal/diner"
)

type Recorded struct {
	Topic    string
	Key      string
	Envelope diner.Envelope
}

// Recorder menampung event untuk test dan dev tanpa broker.
type Recorder struct {
	mu     sync.Mutex
	events []Recorded
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Emit(topic string, key []byte, env diner.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Recorded{Topic: topic, Key: string(key), Envelope: env})
}

func (r *Recorder) All() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Recorded, len(r.events))
	copy(out, r.events)
	return out
}

// ByType memfilter event berdasarkan event_type.
func (r *Recorder) ByType(eventType string) []Recorded {
	var out []Recorded
	for _, e := range r.All() {
		if e.Envelope.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}
