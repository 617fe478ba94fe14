package events

import (
	"sync"

	"github.com/openbuilders/wine-minter/internal/types"
)

type Kind string

const (
	KindProgress Kind = "progress"
	KindStatus   Kind = "status"
	KindComplete Kind = "complete"
)

// Event is emitted by the minting pipelines. Progress carries a detached
// snapshot; Status a single transition; Complete the statuses of the run.
type Event struct {
	Kind     Kind                        `json:"kind"`
	RunID    string                      `json:"runId"`
	Mode     string                      `json:"mode"`
	Progress *types.BatchMintingProgress `json:"progress,omitempty"`
	Status   *types.MintingStatus        `json:"status,omitempty"`
	Results  []types.MintingStatus       `json:"results,omitempty"`
	Error    string                      `json:"error,omitempty"`
}

// Observer receives pipeline events. Implementations must not block the
// pipeline for long.
type Observer interface {
	Notify(Event)
}

type ObserverFunc func(Event)

func (f ObserverFunc) Notify(e Event) {
	f(e)
}

// Nop discards every event.
var Nop Observer = ObserverFunc(func(Event) {})

// Broadcaster fans events out to every registered observer in order.
type Broadcaster struct {
	mu        sync.RWMutex
	observers []Observer
}

func NewBroadcaster(observers ...Observer) *Broadcaster {
	return &Broadcaster{observers: observers}
}

func (b *Broadcaster) Add(o Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.observers = append(b.observers, o)
}

func (b *Broadcaster) Notify(e Event) {
	b.mu.RLock()
	observers := append([]Observer(nil), b.observers...)
	b.mu.RUnlock()

	for _, o := range observers {
		o.Notify(e)
	}
}
