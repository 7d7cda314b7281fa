package dispatcher

// Subscription detaches a handler from the bus.
type Subscription interface {
	Unsubscribe()
}

type subscription struct {
	dispatcher *Dispatcher
	msgType    string
	handler    any
}

func (s *subscription) Unsubscribe() {
	d := s.dispatcher
	d.mu.Lock()
	defer d.mu.Unlock()

	handlers := d.handlers[s.msgType]
	kept := make([]any, 0, len(handlers))
	for _, h := range handlers {
		if h != s.handler {
			kept = append(kept, h)
		}
	}
	d.handlers[s.msgType] = kept
}
