package session

import (
	"encoding/json"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mdview/mdview/internal/domain/events"
	"github.com/mdview/mdview/internal/domain/ports"
)

// mruLimit caps the recently-used list.
const mruLimit = 10

// Options configure a Store. Storage is required; the rest default to
// no-op/real-clock implementations.
type Options struct {
	Storage   ports.Storage
	Strip     ports.TabStrip
	Scheduler ports.Scheduler

	// PersistDebounce coalesces snapshot writes. Zero writes through
	// synchronously on every mutating operation.
	PersistDebounce time.Duration
}

// Store owns the session state. Every operation is a defensive no-op on
// unknown tab ids, and persistence failures never abort an operation.
type Store struct {
	hub       ports.EventHub
	storage   ports.Storage
	strip     ports.TabStrip
	scheduler ports.Scheduler
	debounce  time.Duration

	mu          sync.Mutex
	tabs        map[int64]*Tab
	order       []int64 // insertion order, drives tab cycling
	recent      []int64 // MRU, head = most recent
	activeID    int64   // 0 = none
	nextID      int64
	persistTask ports.Task
	restorable  []TabSnapshot
	closed      bool
}

// New creates a Store, reading the persisted snapshot once to seed the id
// counter and build the restore list. Tabs are not reopened automatically;
// the consumer decides what to restore via RestorableTabs.
func New(hub ports.EventHub, opts Options) *Store {
	if opts.Strip == nil {
		opts.Strip = ports.NopTabStrip()
	}
	if opts.Scheduler == nil {
		opts.Scheduler = ports.WallClock()
	}

	s := &Store{
		hub:       hub,
		storage:   opts.Storage,
		strip:     opts.Strip,
		scheduler: opts.Scheduler,
		debounce:  opts.PersistDebounce,
		tabs:      make(map[int64]*Tab),
		nextID:    1,
	}

	if s.storage != nil {
		snap, err := LoadSnapshot(s.storage)
		if err != nil {
			log.Warn().Err(err).Msg("failed to read session snapshot; starting empty")
		}
		s.nextID = snap.NextID
		s.restorable = snap.Tabs
	}

	return s
}

// RestorableTabs returns the tab metadata found in the persisted snapshot at
// startup, for the consumer to offer as a restore list.
func (s *Store) RestorableTabs() []TabSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TabSnapshot, len(s.restorable))
	copy(out, s.restorable)
	return out
}

// OpenFile opens filePath in a new tab, or activates the existing tab if
// one already references that path. Returns the tab id.
func (s *Store) OpenFile(filePath, title string) int64 {
	s.mu.Lock()

	if existing := s.findByPathLocked(filePath); existing != nil {
		id := existing.ID
		emits := s.activateLocked(id)
		s.persistLocked()
		s.mu.Unlock()
		s.strip.SetActive(id)
		s.publish(emits...)
		return id
	}

	if title == "" {
		title = filepath.Base(filePath)
	}

	id := s.nextID
	s.nextID++
	tab := &Tab{
		ID:           id,
		FilePath:     filePath,
		Title:        title,
		LastAccessed: s.scheduler.Now(),
	}
	s.tabs[id] = tab
	s.order = append(s.order, id)
	s.touchMRULocked(id)
	previous := s.activeID
	s.activeID = id
	s.persistLocked()

	info := tab.Info()
	visible := len(s.tabs) > 0
	s.mu.Unlock()

	s.strip.AddTab(info)
	s.strip.SetActive(id)
	s.strip.SetVisible(visible)
	s.publish(
		events.NewTabOpenedEvent(info),
		events.NewTabActivatedEvent(info, previous),
	)

	log.Debug().Int64("tab_id", id).Str("path", filePath).Msg("tab opened")
	return id
}

// CloseTab closes the tab. Unknown ids are ignored. When the active tab
// closes, the most recently used remaining tab becomes active; when none
// remain, a no_tabs_open event fires instead.
func (s *Store) CloseTab(id int64) {
	s.mu.Lock()
	tab, ok := s.tabs[id]
	if !ok {
		s.mu.Unlock()
		return
	}

	last := tab.Info()
	delete(s.tabs, id)
	s.removeFromOrderLocked(id)
	s.removeFromMRULocked(id)

	var emits []events.Event
	noTabs := false
	if s.activeID == id {
		s.activeID = 0
		if len(s.recent) > 0 {
			emits = append(emits, s.activateLocked(s.recent[0])...)
		} else {
			noTabs = true
		}
	}

	s.persistLocked()
	visible := len(s.tabs) > 0
	active := s.activeID
	s.mu.Unlock()

	s.strip.RemoveTab(id)
	s.strip.SetActive(active)
	s.strip.SetVisible(visible)

	if noTabs {
		emits = append(emits, events.NewNoTabsOpenEvent())
	}
	emits = append(emits, events.NewTabClosedEvent(last))
	s.publish(emits...)

	log.Debug().Int64("tab_id", id).Str("path", last.FilePath).Msg("tab closed")
}

// ActivateTab makes the tab active, refreshing its access time and MRU
// position. Unknown ids are ignored.
func (s *Store) ActivateTab(id int64) {
	s.mu.Lock()
	if _, ok := s.tabs[id]; !ok {
		s.mu.Unlock()
		return
	}
	emits := s.activateLocked(id)
	s.persistLocked()
	s.mu.Unlock()

	s.strip.SetActive(id)
	s.publish(emits...)
}

// ActiveTabID returns the active tab id, or zero when none.
func (s *Store) ActiveTabID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// TabCount returns the number of open tabs.
func (s *Store) TabCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tabs)
}

// Tabs returns metadata for every open tab in insertion order.
func (s *Store) Tabs() []Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Tab, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.tabs[id].clone())
	}
	return out
}

// Tab returns a metadata copy of one tab.
func (s *Store) Tab(id int64) (Tab, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tabs[id]
	if !ok {
		return Tab{}, false
	}
	return t.clone(), true
}

// RecentlyUsed returns the MRU id list, most recent first.
func (s *Store) RecentlyUsed() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, len(s.recent))
	copy(out, s.recent)
	return out
}

// FindTabByPath returns the open tab referencing filePath, if any.
func (s *Store) FindTabByPath(filePath string) (Tab, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t := s.findByPathLocked(filePath); t != nil {
		return t.clone(), true
	}
	return Tab{}, false
}

// SetTabModified sets the local-edit flag. MRU order is untouched; only the
// flag change is persisted.
func (s *Store) SetTabModified(id int64, modified bool) {
	s.mu.Lock()
	tab, ok := s.tabs[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	tab.IsModified = modified
	s.persistLocked()
	info := tab.Info()
	s.mu.Unlock()

	s.strip.SetModified(id, modified)
	s.publish(events.NewTabModifiedEvent(info, modified))
}

// SetTabNeedsRefresh flags the tab as holding stale content. The consumer
// decides whether to reload; IsModified is never touched here.
func (s *Store) SetTabNeedsRefresh(id int64, needs bool) {
	s.mu.Lock()
	tab, ok := s.tabs[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	tab.NeedsRefresh = needs
	info := tab.Info()
	s.mu.Unlock()

	if needs {
		s.publish(events.NewTabStaleEvent(info))
	}
}

// SetTabMissing flags the tab's backing file as gone. The tab stays open;
// closing a document the user is viewing requires their consent.
func (s *Store) SetTabMissing(id int64, missing bool) {
	s.mu.Lock()
	tab, ok := s.tabs[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	tab.Missing = missing
	info := tab.Info()
	s.mu.Unlock()

	if missing {
		s.publish(events.NewTabMissingEvent(info))
	}
}

// SetTabContent caches the rendered payload on the tab. Content is never
// persisted and does not affect MRU order.
func (s *Store) SetTabContent(id int64, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tab, ok := s.tabs[id]
	if !ok {
		return
	}
	tab.content = content
	tab.hasContent = true
}

// GetTabContent returns the cached content, if the tab exists and holds any.
func (s *Store) GetTabContent(id int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tab, ok := s.tabs[id]
	if !ok || !tab.hasContent {
		return "", false
	}
	return tab.content, true
}

// ClearTabContent drops the cached payload.
func (s *Store) ClearTabContent(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tab, ok := s.tabs[id]
	if !ok {
		return
	}
	tab.content = ""
	tab.hasContent = false
}

// SwitchToNext activates the tab after the active one in insertion order,
// wrapping around. No-op with fewer than two tabs.
func (s *Store) SwitchToNext() {
	s.cycle(1)
}

// SwitchToPrevious activates the tab before the active one in insertion
// order, wrapping around. No-op with fewer than two tabs.
func (s *Store) SwitchToPrevious() {
	s.cycle(-1)
}

// ActivateIndex activates the nth tab (1-based) in insertion order.
func (s *Store) ActivateIndex(n int) {
	s.mu.Lock()
	if n < 1 || n > len(s.order) {
		s.mu.Unlock()
		return
	}
	id := s.order[n-1]
	emits := s.activateLocked(id)
	s.persistLocked()
	s.mu.Unlock()

	s.strip.SetActive(id)
	s.publish(emits...)
}

// ClearAll closes every open tab one at a time through the regular close
// path. Each close re-runs successor selection and snapshot persistence so
// event order and count match closing them by hand.
func (s *Store) ClearAll() {
	s.mu.Lock()
	ids := make([]int64, len(s.order))
	copy(ids, s.order)
	s.mu.Unlock()

	for _, id := range ids {
		s.CloseTab(id)
	}
}

// Close flushes any pending debounced snapshot write and stops the store.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.persistTask != nil {
		s.persistTask.Stop()
		s.persistTask = nil
	}
	data, err := s.encodeSnapshotLocked()
	s.mu.Unlock()

	if err == nil {
		s.write(data)
	}
	return nil
}

// --- internals ---

func (s *Store) findByPathLocked(filePath string) *Tab {
	for _, id := range s.order {
		if t := s.tabs[id]; t.FilePath == filePath {
			return t
		}
	}
	return nil
}

// activateLocked updates active tab, access time and MRU, returning the
// events to publish once the lock is released.
func (s *Store) activateLocked(id int64) []events.Event {
	tab, ok := s.tabs[id]
	if !ok {
		return nil
	}
	previous := s.activeID
	s.activeID = id
	tab.LastAccessed = s.scheduler.Now()
	s.touchMRULocked(id)
	return []events.Event{events.NewTabActivatedEvent(tab.Info(), previous)}
}

// touchMRULocked moves id to the MRU head, trimming to the limit.
func (s *Store) touchMRULocked(id int64) {
	s.removeFromMRULocked(id)
	s.recent = append([]int64{id}, s.recent...)
	if len(s.recent) > mruLimit {
		s.recent = s.recent[:mruLimit]
	}
}

func (s *Store) removeFromMRULocked(id int64) {
	for i, v := range s.recent {
		if v == id {
			s.recent = append(s.recent[:i], s.recent[i+1:]...)
			return
		}
	}
}

func (s *Store) removeFromOrderLocked(id int64) {
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

func (s *Store) cycle(step int) {
	s.mu.Lock()
	if len(s.order) < 2 {
		s.mu.Unlock()
		return
	}

	idx := 0
	for i, id := range s.order {
		if id == s.activeID {
			idx = i
			break
		}
	}
	next := (idx + step + len(s.order)) % len(s.order)
	id := s.order[next]
	emits := s.activateLocked(id)
	s.persistLocked()
	s.mu.Unlock()

	s.strip.SetActive(id)
	s.publish(emits...)
}

// encodeSnapshotLocked builds the durable snapshot. Cached content is not
// part of it.
func (s *Store) encodeSnapshotLocked() ([]byte, error) {
	snap := Snapshot{
		Tabs:         make([]TabSnapshot, 0, len(s.order)),
		ActiveTabID:  s.activeID,
		RecentlyUsed: append([]int64{}, s.recent...),
		NextID:       s.nextID,
	}
	for _, id := range s.order {
		t := s.tabs[id]
		snap.Tabs = append(snap.Tabs, TabSnapshot{
			ID:           t.ID,
			FilePath:     t.FilePath,
			Title:        t.Title,
			IsModified:   t.IsModified,
			LastAccessed: t.LastAccessed,
		})
	}
	return json.Marshal(snap)
}

// persistLocked schedules (or performs) the snapshot write. Failures are
// logged and never abort the calling operation.
func (s *Store) persistLocked() {
	if s.storage == nil || s.closed {
		return
	}

	data, err := s.encodeSnapshotLocked()
	if err != nil {
		log.Warn().Err(err).Msg("failed to encode session snapshot")
		return
	}

	if s.debounce <= 0 {
		// Synchronous write; releasing the lock is unnecessary because
		// storage ports never call back into the store.
		s.write(data)
		return
	}

	if s.persistTask != nil {
		s.persistTask.Stop()
	}
	s.persistTask = s.scheduler.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		s.persistTask = nil
		latest, err := s.encodeSnapshotLocked()
		s.mu.Unlock()
		if err != nil {
			log.Warn().Err(err).Msg("failed to encode session snapshot")
			return
		}
		s.write(latest)
	})
}

func (s *Store) write(data []byte) {
	if err := s.storage.Set(SnapshotKey, data); err != nil {
		log.Warn().Err(err).Msg("failed to write session snapshot; in-memory state unaffected")
	}
}

func (s *Store) publish(evts ...events.Event) {
	for _, e := range evts {
		s.hub.Publish(e)
	}
}
