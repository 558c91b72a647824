package workspace

import (
	"time"

	"go.uber.org/zap"

	"github.com/gridwright/gridwright/pkg/entity"
)

// scheduleRevalidateLocked arranges re-validation of one row.
//
// With no debounce configured the row validates inline. Otherwise a
// per-(entity,row) timer is (re)armed: a new edit to the same row cancels
// the previous timer and restarts the window, so only the final state
// after quiescence is validated. Bulk operations never go through here;
// they validate synchronously as one logical action.
func (w *Workspace) scheduleRevalidateLocked(kind entity.Kind, index int) {
	if w.debounce <= 0 {
		w.revalidateRowLocked(kind, index)
		return
	}

	key := timerKey{kind: kind, row: index}
	w.cancelTimerLocked(key)
	w.timerGen++
	rt := &rowTimer{gen: w.timerGen}
	rt.timer = time.AfterFunc(w.debounce, func() {
		w.fireRevalidate(key, rt.gen)
	})
	w.timers[key] = rt
}

// rowTimer pairs a per-row timer with the generation it was armed under.
// Stop on a timer whose callback is already blocked on the mutex is a
// no-op, so key presence alone cannot tell a stale firing from a live
// one; the generation can.
type rowTimer struct {
	timer *time.Timer
	gen   uint64
}

func (w *Workspace) fireRevalidate(key timerKey, gen uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	// A re-armed timer for the same row supersedes this firing.
	rt, ok := w.timers[key]
	if !ok || rt.gen != gen {
		return
	}
	delete(w.timers, key)
	w.revalidateRowLocked(key.kind, key.row)
	w.logger.Debug("debounced row revalidated",
		zap.String("entity", string(key.kind)),
		zap.Int("row", key.row))
}

func (w *Workspace) cancelTimerLocked(key timerKey) {
	if rt, ok := w.timers[key]; ok {
		rt.timer.Stop()
		delete(w.timers, key)
	}
}

func (w *Workspace) cancelTimersLocked(kind entity.Kind) {
	for key, rt := range w.timers {
		if key.kind == kind {
			rt.timer.Stop()
			delete(w.timers, key)
		}
	}
}
