// Package notifier fans dashboard change events out to SSE listeners.
package notifier

import "sync"

// Event describes a dashboard change. An empty DashboardID means the
// dashboard list changed as a whole, for example after an import.
type Event struct {
	DashboardID string
}

// Concerns reports whether a listener watching dashboardID should react to e.
// Listeners on the list page pass "" and react to every event.
func (e Event) Concerns(dashboardID string) bool {
	return dashboardID == "" || e.DashboardID == "" || e.DashboardID == dashboardID
}

// Notifier broadcasts events to all subscribed listeners.
// Each listener keeps only the latest pending event; a slow listener
// re-renders from the store, so intermediate events can be dropped.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[chan Event]struct{}
}

// New creates a new Notifier instance.
func New() *Notifier {
	return &Notifier{
		listeners: make(map[chan Event]struct{}),
	}
}

// Subscribe returns a channel that receives events.
// The caller must call Unsubscribe when done.
func (n *Notifier) Subscribe() chan Event {
	ch := make(chan Event, 1)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it.
func (n *Notifier) Unsubscribe(ch chan Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.listeners[ch]; !ok {
		return
	}
	delete(n.listeners, ch)
	close(ch)
}

// Broadcast delivers e to every listener without blocking. A listener with a
// pending event has it widened to a list-wide event when the two differ.
func (n *Notifier) Broadcast(e Event) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.listeners {
		select {
		case ch <- e:
			continue
		default:
		}

		// Buffer full: merge with the pending event.
		select {
		case pending := <-ch:
			if pending != e {
				pending = Event{}
			}
			select {
			case ch <- pending:
			default:
			}
		default:
			select {
			case ch <- e:
			default:
			}
		}
	}
}

// BroadcastAll signals a list-wide change.
func (n *Notifier) BroadcastAll() {
	n.Broadcast(Event{})
}

// Len returns the number of listeners.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}
