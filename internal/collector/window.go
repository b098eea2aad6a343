// SPDX-License-Identifier: MIT

// Package collector groups incoming files into per-owner batch windows.
// A window stays open while related files keep arriving and is closed by an
// inactivity timer, at which point the finalization callback takes over.
package collector

import (
	"time"

	"github.com/telepost-bot/telepost/internal/dashboard"
	"github.com/telepost-bot/telepost/internal/store"
	"github.com/telepost-bot/telepost/internal/title"
)

// Fuzzy-match thresholds for folding a new file into an existing window.
// Scores are 0..100; Score must strictly exceed MatchThreshold so that
// sibling seasons ("show s01" vs "show s02", which score in the low 90s)
// stay in separate windows.
const (
	MatchThreshold   = 95
	PartialThreshold = 97
)

// State tracks the one-way life of a window. A window never returns to
// StateOpen once armed.
type State int

const (
	StateOpen State = iota
	StateArmed
	StatePublished
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateArmed:
		return "armed"
	case StatePublished:
		return "published"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// File is one archived file together with its parsed title.
type File struct {
	Record *store.FileRecord
	Title  *title.Info
}

// Window is an open collection for one owner and one grouping key. Files is
// append-only while open; the slice order is arrival order. Report is the
// progress message attached by whoever created the window.
type Window struct {
	Key     string
	OwnerID int64
	Opened  time.Time
	Files   []*File
	Skipped []string
	Report  *dashboard.Reporter

	state State
	gen   uint64
	timer *time.Timer
}

// State returns the window state. Once a window has been handed to the
// finalizer it is no longer reachable through the registry, so the field is
// owned by a single goroutine at any point in time.
func (w *Window) State() State { return w.state }

// MarkPublished records a successful finalization.
func (w *Window) MarkPublished() { w.state = StatePublished }

// MarkFailed records a terminal failure.
func (w *Window) MarkFailed() { w.state = StateFailed }
