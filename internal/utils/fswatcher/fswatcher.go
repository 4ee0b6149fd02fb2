package fswatcher

import "github.com/fsnotify/fsnotify"

// Event exposes filesystem watcher events without leaking the external
// dependency across the codebase.
type Event = fsnotify.Event

// Op aliases the event bitmask.
type Op = fsnotify.Op

const (
	Create = fsnotify.Create
	Write  = fsnotify.Write
	Remove = fsnotify.Remove
	Rename = fsnotify.Rename
)

// Watcher is an alias to fsnotify.Watcher so call sites can rely on a thin wrapper.
type Watcher = fsnotify.Watcher

// New creates a new filesystem watcher. Callers are responsible for closing it.
func New() (*fsnotify.Watcher, error) {
	return fsnotify.NewWatcher()
}
