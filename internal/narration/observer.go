package narration

// LoopState is the sync loop state
type LoopState int

const (
	Idle LoopState = iota
	Running
)

func (s LoopState) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// SyncState is the highlighted position exposed to the presentation layer
type SyncState struct {
	ActiveTokenIndex int // -1 = none
	ProgressPercent  int // 0-100
	Loop             LoopState
}

// ResetState is the state on open and after stop
func ResetState() SyncState {
	return SyncState{ActiveTokenIndex: -1}
}

// Observer receives sync state changes in order.
// Implementations must not call back into the Syncer's blocking methods.
type Observer interface {
	OnSync(state SyncState)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(SyncState)

func (f ObserverFunc) OnSync(state SyncState) { f(state) }

// NoOpObserver discards updates
type NoOpObserver struct{}

func (NoOpObserver) OnSync(SyncState) {}
