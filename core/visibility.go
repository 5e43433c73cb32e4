package core

import "sync"

// Visibility tracks whether the front-end is in the foreground. Live channel
// reconnects wait while it is hidden.
type Visibility struct {
	mu      sync.Mutex
	visible bool
	subs    map[int]func(visible bool)
	nextID  int
}

func NewVisibility() *Visibility {
	return &Visibility{visible: true, subs: map[int]func(bool){}}
}

func (v *Visibility) Visible() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.visible
}

// SetVisible records the new state and calls the listeners when it changed.
func (v *Visibility) SetVisible(visible bool) {
	v.mu.Lock()
	if v.visible == visible {
		v.mu.Unlock()
		return
	}
	v.visible = visible
	listeners := make([]func(bool), 0, len(v.subs))
	for i := 0; i < v.nextID; i++ {
		if fn, ok := v.subs[i]; ok {
			listeners = append(listeners, fn)
		}
	}
	v.mu.Unlock()

	for _, fn := range listeners {
		fn(visible)
	}
}

// OnChange registers fn and returns the function that removes it.
func (v *Visibility) OnChange(fn func(visible bool)) func() {
	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.subs[id] = fn
	v.mu.Unlock()

	return func() {
		v.mu.Lock()
		delete(v.subs, id)
		v.mu.Unlock()
	}
}
