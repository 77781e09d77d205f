package kscan

// Listener receives key edges. Either callback may be nil.
//
// Callbacks run on the scanning goroutine that detected the edge, so they
// must return quickly: queue the event and get out.
type Listener struct {
	OnPress   func(index uint16)
	OnRelease func(index uint16)
}

// Registry is the fixed set of listeners every backend broadcasts to.
// It is built once before scanning starts and never changes afterwards,
// so scanning goroutines read it without locking.
type Registry struct {
	listeners []Listener
}

// NewRegistry returns a registry holding listeners in call order.
func NewRegistry(listeners ...Listener) *Registry {
	return &Registry{listeners: append([]Listener(nil), listeners...)}
}

// Len returns the number of registered listeners.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.listeners)
}

// Press notifies every listener of a press, in registration order.
func (r *Registry) Press(index uint16) {
	if r == nil {
		return
	}
	for _, l := range r.listeners {
		if l.OnPress != nil {
			l.OnPress(index)
		}
	}
}

// Release notifies every listener of a release, in registration order.
func (r *Registry) Release(index uint16) {
	if r == nil {
		return
	}
	for _, l := range r.listeners {
		if l.OnRelease != nil {
			l.OnRelease(index)
		}
	}
}
