package tui

import (
	"github.com/cgonzaleza9671/estampas/internal/domain"
	"github.com/cgonzaleza9671/estampas/internal/narration"
)

// progressObserver forwards sync progress to the UI, dropping events when
// the UI is behind
type progressObserver chan<- domain.SyncProgress

func (ch progressObserver) OnProgress(progress domain.SyncProgress) {
	select {
	case ch <- progress:
	default:
	}
}

// NarrationObserver hands sync states to the UI. It never blocks the sync
// loop: a state the UI has not picked up yet is replaced by the newer one.
type NarrationObserver struct {
	ch chan narration.SyncState
}

// NewNarrationObserver creates an observer holding at most one pending state
func NewNarrationObserver() *NarrationObserver {
	return &NarrationObserver{ch: make(chan narration.SyncState, 1)}
}

// OnSync implements narration.Observer
func (o *NarrationObserver) OnSync(state narration.SyncState) {
	for {
		select {
		case o.ch <- state:
			return
		default:
			select {
			case <-o.ch:
			default:
			}
		}
	}
}

// Updates returns the pending-state channel
func (o *NarrationObserver) Updates() <-chan narration.SyncState {
	return o.ch
}
