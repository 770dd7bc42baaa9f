// Package controller applies session policy: it maps live-sync events to
// session store operations and forwards UI commands to the store. It is the
// only component allowed to call both the live-sync client and the session
// store, keeping the dependency direction one-way.
package controller

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mdview/mdview/internal/domain/events"
	"github.com/mdview/mdview/internal/domain/ports"
	"github.com/mdview/mdview/internal/hub"
	"github.com/mdview/mdview/internal/livesync"
	"github.com/mdview/mdview/internal/session"
)

// Controller wires live-sync events into the session store.
type Controller struct {
	events   ports.EventHub
	store    *session.Store
	client   *livesync.Client
	notifier ports.Notifier
	sub      *hub.FuncSubscriber
}

// New creates a Controller. The notifier may be nil for headless use.
func New(eventHub ports.EventHub, store *session.Store, client *livesync.Client, notifier ports.Notifier) *Controller {
	return &Controller{
		events:   eventHub,
		store:    store,
		client:   client,
		notifier: notifier,
	}
}

// Start subscribes the controller to the watcher event stream.
func (c *Controller) Start() {
	c.sub = hub.NewFuncSubscriber(c.handle,
		events.EventTypeFileChanged,
		events.EventTypeFileRemoved,
		events.EventTypeFileError,
		events.EventTypeWatcherError,
		events.EventTypeWatcherReady,
	)
	c.events.Subscribe(c.sub)
}

// Stop unsubscribes the controller.
func (c *Controller) Stop() {
	if c.sub != nil {
		c.events.Unsubscribe(c.sub.ID())
		c.sub = nil
	}
}

// handle applies policy for one live-sync event.
func (c *Controller) handle(e events.Event) {
	payload, ok := events.FileUpdateFrom(e)
	if !ok {
		return
	}

	switch e.Type() {
	case events.EventTypeFileChanged:
		// Flag the tab; the consumer decides whether to reload. The
		// local-edit flag is deliberately left alone.
		if tab, open := c.store.FindTabByPath(payload.File); open {
			c.store.SetTabNeedsRefresh(tab.ID, true)
		}

	case events.EventTypeFileRemoved:
		// Never auto-close a document the user may be viewing.
		if tab, open := c.store.FindTabByPath(payload.File); open {
			c.store.SetTabMissing(tab.ID, true)
			c.warn(fmt.Sprintf("%s was deleted on disk", tab.FilePath))
		}

	case events.EventTypeFileError, events.EventTypeWatcherError:
		msg := payload.Data
		if msg == "" {
			msg = "file watcher reported an error"
		}
		c.warn(msg)

	case events.EventTypeWatcherReady:
		log.Debug().Msg("backend watcher ready")
	}
}

func (c *Controller) warn(msg string) {
	log.Warn().Str("message", msg).Msg("watcher warning")
	if c.notifier != nil {
		c.notifier.Warn(msg)
	}
}

// --- UI-facing commands ---

// OpenFile opens (or re-activates) the document at path.
func (c *Controller) OpenFile(path string) int64 {
	return c.store.OpenFile(path, "")
}

// CloseActiveTab closes the active tab, if any.
func (c *Controller) CloseActiveTab() {
	if id := c.store.ActiveTabID(); id != 0 {
		c.store.CloseTab(id)
	}
}

// CloseTab closes the given tab.
func (c *Controller) CloseTab(id int64) {
	c.store.CloseTab(id)
}

// ActivateTab activates the given tab.
func (c *Controller) ActivateTab(id int64) {
	c.store.ActivateTab(id)
}

// NextTab cycles forward through the open tabs.
func (c *Controller) NextTab() {
	c.store.SwitchToNext()
}

// PreviousTab cycles backward through the open tabs.
func (c *Controller) PreviousTab() {
	c.store.SwitchToPrevious()
}

// ActivateIndex activates the nth tab, 1-based.
func (c *Controller) ActivateIndex(n int) {
	c.store.ActivateIndex(n)
}
