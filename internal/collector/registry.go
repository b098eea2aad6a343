// SPDX-License-Identifier: MIT

package collector

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/telepost-bot/telepost/internal/dashboard"
	"github.com/telepost-bot/telepost/internal/log"
	"github.com/telepost-bot/telepost/internal/metrics"
	"github.com/telepost-bot/telepost/internal/similarity"
)

// retryInterval is how long a close-timer backs off when it fires while the
// owner is mid-finalization or the gateway is cooling down.
const retryInterval = time.Second

// Routing says where Add placed a file.
type Routing int

const (
	// RoutedNew opened a fresh window.
	RoutedNew Routing = iota
	// RoutedExisting joined an open window.
	RoutedExisting
	// RoutedPending was parked because the owner is being finalized.
	RoutedPending
	// RoutedDropped was discarded because the pending queue is full.
	RoutedDropped
)

// AddResult reports the routing decision plus a consistent snapshot of the
// target window's size, title and progress message, taken under the registry
// lock. Callers must not read Window.Files themselves while the window is
// open.
type AddResult struct {
	Routing   Routing
	Window    *Window
	FileCount int
	Title     string
	Report    *dashboard.Reporter
}

// Drained describes one window Release created, snapshotted under the lock.
type Drained struct {
	Window *Window
	Title  string
	Count  int
}

// Stats is a point-in-time view for the status endpoint.
type Stats struct {
	OpenWindows  int `json:"open_windows"`
	PendingFiles int `json:"pending_files"`
	LockedOwners int `json:"locked_owners"`
}

// Config wires a Registry.
type Config struct {
	// Inactivity is how long a window waits after its last file before
	// closing.
	Inactivity time.Duration
	// PendingMax caps the per-owner pending queue; 0 means unbounded.
	PendingMax int
	// Suspended, when it returns true, defers timer-driven closes. Shared
	// with the gateway's flood-wait suppressor.
	Suspended func() bool
	// OnClose receives every closed window. It runs on its own goroutine
	// and must end with a Release for the owner.
	OnClose func(ownerID int64, w *Window)
}

// Registry holds every open window, the per-owner processing locks and the
// pending queues. All mutation goes through one mutex so that check-then-act
// sequences (route, append, re-arm) are atomic with respect to timer fires.
type Registry struct {
	mu             sync.Mutex
	windows        map[int64]map[string]*Window
	locks          map[int64]struct{}
	pending        map[int64][]*File
	pendingSkipped map[int64][]string
	skipped        map[int64][]string

	inactivity time.Duration
	pendingMax int
	suspended  func() bool
	onClose    func(int64, *Window)
	logger     zerolog.Logger
}

// NewRegistry builds an empty registry.
func NewRegistry(cfg Config) *Registry {
	suspended := cfg.Suspended
	if suspended == nil {
		suspended = func() bool { return false }
	}
	return &Registry{
		windows:        make(map[int64]map[string]*Window),
		locks:          make(map[int64]struct{}),
		pending:        make(map[int64][]*File),
		pendingSkipped: make(map[int64][]string),
		skipped:        make(map[int64][]string),
		inactivity:     cfg.Inactivity,
		pendingMax:     cfg.PendingMax,
		suspended:      suspended,
		onClose:        cfg.OnClose,
		logger:         log.WithComponent("collector"),
	}
}

// Add routes one parsed file: to the pending queue when the owner is locked,
// otherwise into a matching open window (creating one if none matches). The
// window's inactivity timer is re-armed on every append.
func (r *Registry) Add(f *File) AddResult {
	owner := f.Record.OwnerID

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, locked := r.locks[owner]; locked {
		q := r.pending[owner]
		if r.pendingMax > 0 && len(q) >= r.pendingMax {
			r.logger.Warn().
				Int64(log.FieldOwnerID, owner).
				Str(log.FieldFilename, f.Record.FileName).
				Str(log.FieldEvent, "pending.drop").
				Msg("pending queue full, dropping file")
			return AddResult{Routing: RoutedDropped}
		}
		r.pending[owner] = append(q, f)
		metrics.RecordPendingQueued()
		r.logger.Debug().
			Int64(log.FieldOwnerID, owner).
			Str(log.FieldEvent, "pending.queue").
			Int("depth", len(q)+1).
			Msg("owner locked, file queued")
		return AddResult{Routing: RoutedPending}
	}

	w, created := r.routeLocked(owner, f.Title.GroupingKey)
	w.Files = append(w.Files, f)
	r.armLocked(w)

	routing := RoutedExisting
	if created {
		routing = RoutedNew
	}
	return AddResult{
		Routing:   routing,
		Window:    w,
		FileCount: len(w.Files),
		Title:     displayLocked(w),
		Report:    w.Report,
	}
}

// AttachReport binds a progress message to a window, refusing once the window
// has left StateOpen. The caller must discard the message on false, because
// the window is already owned by a finalizer that will never see it.
func (r *Registry) AttachReport(w *Window, rep *dashboard.Reporter) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w.state != StateOpen {
		return false
	}
	w.Report = rep
	return true
}

// AddSkipped records a filename the title oracle rejected. It surfaces in the
// next window the owner closes.
func (r *Registry) AddSkipped(owner int64, filename string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, locked := r.locks[owner]; locked {
		r.pendingSkipped[owner] = append(r.pendingSkipped[owner], filename)
		return
	}
	r.skipped[owner] = append(r.skipped[owner], filename)
}

// Locked reports whether the owner is currently being finalized.
func (r *Registry) Locked(owner int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.locks[owner]
	return ok
}

// CloseNow expires the timers of every open window for the owner, forcing
// each of them through the normal close path. Returns how many windows were
// scheduled.
func (r *Registry) CloseNow(owner int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, w := range r.windows[owner] {
		if w.timer != nil {
			w.timer.Stop()
		}
		w.gen++
		gen := w.gen
		key := w.Key
		w.timer = time.AfterFunc(0, func() { r.timerFired(owner, key, gen) })
		n++
	}
	return n
}

// Release drops the owner's processing lock and drains the pending queue
// into fresh windows, preserving arrival order. The returned slice describes
// the windows Release created, so the caller can attach progress messages.
func (r *Registry) Release(owner int64) []Drained {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.locks, owner)

	if sk := r.pendingSkipped[owner]; len(sk) > 0 {
		r.skipped[owner] = append(r.skipped[owner], sk...)
		delete(r.pendingSkipped, owner)
	}

	files := r.pending[owner]
	delete(r.pending, owner)

	var fresh []*Window
	for _, f := range files {
		w, isNew := r.routeLocked(owner, f.Title.GroupingKey)
		w.Files = append(w.Files, f)
		r.armLocked(w)
		if isNew {
			fresh = append(fresh, w)
		}
	}
	created := make([]Drained, len(fresh))
	for i, w := range fresh {
		created[i] = Drained{Window: w, Title: displayLocked(w), Count: len(w.Files)}
	}
	if len(files) > 0 {
		r.logger.Info().
			Int64(log.FieldOwnerID, owner).
			Str(log.FieldEvent, "pending.drain").
			Int("files", len(files)).
			Int("windows", len(created)).
			Msg("pending queue drained into new windows")
	}
	return created
}

// Stats snapshots registry occupancy.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Stats{LockedOwners: len(r.locks)}
	for _, byKey := range r.windows {
		s.OpenWindows += len(byKey)
	}
	for _, q := range r.pending {
		s.PendingFiles += len(q)
	}
	return s
}

// Shutdown stops every pending close timer. Open windows are abandoned;
// their files remain archived and retrievable.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, byKey := range r.windows {
		for _, w := range byKey {
			if w.timer != nil {
				w.timer.Stop()
			}
			w.gen++
			if w.Report != nil {
				w.Report.Stop()
			}
		}
	}
}

// displayLocked picks the caption title for a window's progress message.
// Caller holds r.mu.
func displayLocked(w *Window) string {
	if len(w.Files) > 0 {
		return w.Files[0].Title.DisplayTitle
	}
	return w.Key
}

// routeLocked finds the open window a grouping key belongs to, preferring an
// exact key match and falling back to the best fuzzy score above the
// thresholds. Caller holds r.mu.
func (r *Registry) routeLocked(owner int64, key string) (*Window, bool) {
	byKey := r.windows[owner]
	if byKey == nil {
		byKey = make(map[string]*Window)
		r.windows[owner] = byKey
	}

	if w, ok := byKey[key]; ok {
		return w, false
	}

	var best *Window
	bestScore := 0
	for _, w := range byKey {
		score := similarity.Score(key, w.Key)
		if score <= MatchThreshold && similarity.PartialScore(key, w.Key) < PartialThreshold {
			continue
		}
		if score > bestScore {
			best = w
			bestScore = score
		}
	}
	if best != nil {
		return best, false
	}

	w := &Window{
		Key:     key,
		OwnerID: owner,
		Opened:  time.Now(),
	}
	byKey[key] = w
	metrics.RecordWindowOpened()
	r.logger.Info().
		Int64(log.FieldOwnerID, owner).
		Str(log.FieldWindowKey, key).
		Str(log.FieldEvent, "window.open").
		Msg("collection window opened")
	return w, true
}

// armLocked cancels the window's previous close timer and schedules a new
// one, so at most one timer is live per window. Caller holds r.mu.
func (r *Registry) armLocked(w *Window) {
	if w.timer != nil {
		w.timer.Stop()
	}
	w.gen++
	owner, key, gen := w.OwnerID, w.Key, w.gen
	w.timer = time.AfterFunc(r.inactivity, func() { r.timerFired(owner, key, gen) })
}

func (r *Registry) timerFired(owner int64, key string, gen uint64) {
	r.mu.Lock()
	w := r.windows[owner][key]
	if w == nil || w.gen != gen || w.state != StateOpen {
		// superseded by a later append or a force close
		r.mu.Unlock()
		return
	}

	if r.suspended() {
		w.timer = time.AfterFunc(retryInterval, func() { r.timerFired(owner, key, gen) })
		r.logger.Debug().
			Int64(log.FieldOwnerID, owner).
			Str(log.FieldWindowKey, key).
			Str(log.FieldEvent, "window.defer").
			Msg("gateway cooling down, close deferred")
		r.mu.Unlock()
		return
	}
	if _, locked := r.locks[owner]; locked {
		w.timer = time.AfterFunc(retryInterval, func() { r.timerFired(owner, key, gen) })
		r.mu.Unlock()
		return
	}

	delete(r.windows[owner], key)
	if len(r.windows[owner]) == 0 {
		delete(r.windows, owner)
	}
	w.state = StateArmed
	w.timer = nil
	if sk := r.skipped[owner]; len(sk) > 0 {
		w.Skipped = append(w.Skipped, sk...)
		delete(r.skipped, owner)
	}
	r.locks[owner] = struct{}{}
	r.logger.Info().
		Int64(log.FieldOwnerID, owner).
		Str(log.FieldWindowKey, key).
		Str(log.FieldEvent, "window.close").
		Int("files", len(w.Files)).
		Msg("collection window closed")
	r.mu.Unlock()

	if r.onClose != nil {
		go r.onClose(owner, w)
	}
}
