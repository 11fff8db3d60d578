package registry

import (
	"sync"
	"time"

	"github.com/designforge/mimicry/internal/types"
)

// broadcaster fans registry events out to watcher channels.
type broadcaster struct {
	mu       sync.Mutex
	watchers []chan types.RegistryEvent
}

// Watch returns a channel that receives registry events
func (b *broadcaster) Watch() <-chan types.RegistryEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan types.RegistryEvent, 100)
	b.watchers = append(b.watchers, ch)
	return ch
}

// Unwatch removes a watcher channel and closes it
func (b *broadcaster) Unwatch(ch <-chan types.RegistryEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, watcher := range b.watchers {
		if watcher == ch {
			close(watcher)
			b.watchers = append(b.watchers[:i], b.watchers[i+1:]...)
			break
		}
	}
}

func (b *broadcaster) emit(t types.EventType, entry *types.ComponentEntry, at time.Time) {
	event := types.RegistryEvent{Type: t, Timestamp: at}
	if entry != nil {
		c := *entry
		event.Component = &c
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, watcher := range b.watchers {
		select {
		case watcher <- event:
		default:
			// Skip if channel is full
		}
	}
}

func (b *broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, watcher := range b.watchers {
		close(watcher)
	}
	b.watchers = nil
}
