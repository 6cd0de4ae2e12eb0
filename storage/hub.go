package storage

import (
	"context"
	"sync"

	"restrobook/pkg/models"
)

// Hub fans change hints out to subscribers. Publish never blocks: every subscriber
// channel holds one pending hint, and further hints are dropped until it is drained.
type Hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]*subscriber
}

type subscriber struct {
	filter ChangeFilter
	ch     chan models.OrderChange
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]*subscriber)}
}

func (h *Hub) Subscribe(ctx context.Context, filter ChangeFilter) (<-chan models.OrderChange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := &subscriber{filter: filter, ch: make(chan models.OrderChange, 1)}

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = s
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, id)
		close(s.ch)
		h.mu.Unlock()
	}()
	return s.ch, nil
}

func (h *Hub) Publish(c models.OrderChange) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		if !s.filter.Match(c) {
			continue
		}
		select {
		case s.ch <- c:
		default:
		}
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
