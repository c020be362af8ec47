package handler

import "github.com/supermancell/chatprobe/internal/common"

// Chain fans an event out to every non-nil handler, in order
func Chain(handlers ...common.EventHandler) common.EventHandler {
	active := make([]common.EventHandler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			active = append(active, h)
		}
	}
	return func(evt common.Event) {
		for _, h := range active {
			h(evt)
		}
	}
}
