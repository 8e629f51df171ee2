package router

import "sync"

// History is an in-memory navigation stack. The empty location means no
// route has resolved yet.
type History struct {
	mu        sync.Mutex
	stack     []string
	nextSub   int
	listeners map[int]func(string)
}

func NewHistory() *History {
	return &History{listeners: make(map[int]func(string))}
}

// Location returns the current route.
func (h *History) Location() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.stack) == 0 {
		return ""
	}
	return h.stack[len(h.stack)-1]
}

// Push opens route on top of the current one.
func (h *History) Push(route string) {
	h.mu.Lock()
	h.stack = append(h.stack, route)
	h.mu.Unlock()
	h.publish(route)
}

// Replace swaps the current route for route.
func (h *History) Replace(route string) {
	h.mu.Lock()
	if len(h.stack) == 0 {
		h.stack = append(h.stack, route)
	} else {
		h.stack[len(h.stack)-1] = route
	}
	h.mu.Unlock()
	h.publish(route)
}

// Back pops the current route. It reports false when there is nothing to go
// back to.
func (h *History) Back() bool {
	h.mu.Lock()
	if len(h.stack) < 2 {
		h.mu.Unlock()
		return false
	}
	h.stack = h.stack[:len(h.stack)-1]
	route := h.stack[len(h.stack)-1]
	h.mu.Unlock()
	h.publish(route)
	return true
}

// Subscribe registers fn to be called with every new location.
func (h *History) Subscribe(fn func(route string)) (cancel func()) {
	h.mu.Lock()
	id := h.nextSub
	h.nextSub++
	h.listeners[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}

func (h *History) publish(route string) {
	h.mu.Lock()
	fns := make([]func(string), 0, len(h.listeners))
	for _, fn := range h.listeners {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(route)
	}
}

var _ LocationSource = (*History)(nil)
