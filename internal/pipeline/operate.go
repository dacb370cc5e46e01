package pipeline

import (
	"sync"

	"github.com/Iron-Ham/testrun/internal/store"
)

// Operate is the control surface handed to hooks.
type Operate struct {
	store     *store.Store
	once      sync.Once
	cancelled chan struct{}
}

func newOperate(s *store.Store) *Operate {
	return &Operate{store: s, cancelled: make(chan struct{})}
}

// Cancel moves the run to cancelled. Calling it more than once, or after
// the run has ended, has no further effect.
func (o *Operate) Cancel() {
	o.store.Terminate(store.StatusCancelled)
	o.once.Do(func() { close(o.cancelled) })
}

// Update merges partial into the run's data. It does not change the status
// and is a no-op once the run has ended.
func (o *Operate) Update(partial map[string]any) bool {
	return o.store.SetData(partial)
}

// Cancelled is closed once Cancel has been called.
func (o *Operate) Cancelled() <-chan struct{} {
	return o.cancelled
}
