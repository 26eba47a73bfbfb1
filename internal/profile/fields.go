package profile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/stagehandhq/stagehand/internal/draft"
)

// FieldWriter debounces per-field draft writes. Each editable text field
// gets its own timer; a new value for a field cancels the pending write and
// restarts the delay, so only the final value of a typing burst reaches the
// store. Flush forces everything pending out immediately, which save-and-exit
// uses so no debounced edit survives the session.
type FieldWriter struct {
	log       *slog.Logger
	store     draft.Store
	profileID string
	delay     time.Duration

	mu      sync.Mutex
	pending map[string]any
	timers  map[string]*time.Timer
	closed  bool
}

func NewFieldWriter(log *slog.Logger, store draft.Store, profileID string, delay time.Duration) *FieldWriter {
	return &FieldWriter{
		log:       log.With(slog.String("service", "fieldwriter")),
		store:     store,
		profileID: profileID,
		delay:     delay,
		pending:   make(map[string]any),
		timers:    make(map[string]*time.Timer),
	}
}

// Write schedules a debounced write of one field. A newer value for the
// same field supersedes the scheduled one.
func (w *FieldWriter) Write(field string, value any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.pending[field] = value
	if t, ok := w.timers[field]; ok {
		t.Stop()
	}
	w.timers[field] = time.AfterFunc(w.delay, func() {
		w.flushField(field)
	})
}

func (w *FieldWriter) flushField(field string) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	value, ok := w.pending[field]
	if !ok {
		w.mu.Unlock()
		return
	}
	delete(w.pending, field)
	delete(w.timers, field)
	w.mu.Unlock()

	if err := w.store.WriteDraft(context.Background(), w.profileID, draft.Fields{field: value}); err != nil {
		w.log.Warn("debounced field write failed",
			slog.String("field", field), slog.Any("error", err))
	}
}

// Flush writes every pending field immediately in one store call.
func (w *FieldWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return nil
	}
	fields := make(draft.Fields, len(w.pending))
	for k, v := range w.pending {
		fields[k] = v
	}
	w.pending = make(map[string]any)
	for _, t := range w.timers {
		t.Stop()
	}
	w.timers = make(map[string]*time.Timer)
	w.mu.Unlock()

	return w.store.WriteDraft(ctx, w.profileID, fields)
}

// Close cancels all pending writes without flushing them.
func (w *FieldWriter) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	for _, t := range w.timers {
		t.Stop()
	}
	w.timers = make(map[string]*time.Timer)
	w.pending = make(map[string]any)
}
