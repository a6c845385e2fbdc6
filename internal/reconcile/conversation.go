// Package reconcile merges the live event stream and the authoritative history of a
// conversation into one deduplicated, order-stable list of messages.
//
// Live events may be duplicated (provisional hint plus store confirmation, several
// devices) or arrive out of order relative to each other and to the history fetch.
package reconcile

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Tyrowin/pairchat/internal/event"
	"github.com/Tyrowin/pairchat/internal/model"
)

// DefaultNewWindow is how long a freshly received message is flagged as new.
const DefaultNewWindow = 1500 * time.Millisecond

// View is one message as it should be displayed.
type View struct {
	model.Message
	New bool `json:"isNew"`
}

type entry struct {
	msg      model.Message
	newUntil time.Time
}

// Option configures a Conversation.
type Option func(*Conversation)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Conversation) { c.now = now }
}

// WithNewWindow overrides DefaultNewWindow.
func WithNewWindow(d time.Duration) Option {
	return func(c *Conversation) { c.window = d }
}

// Conversation is the local view of one two-party conversation.
// It is safe for concurrent use.
type Conversation struct {
	mu     sync.Mutex
	now    func() time.Time
	window time.Duration

	entries  []*entry
	byID     map[int64]*entry
	byClient map[uuid.UUID]*entry

	// Deletions seen locally, applied or still waiting for their message.
	deletions     []deletionKey
	deletedIDs    map[int64]struct{}
	deletedClient map[uuid.UUID]struct{}
}

type deletionKey struct {
	id       int64
	clientID uuid.UUID
}

// New creates an empty Conversation.
func New(opts ...Option) *Conversation {
	c := &Conversation{
		now:           time.Now,
		window:        DefaultNewWindow,
		byID:          make(map[int64]*entry),
		byClient:      make(map[uuid.UUID]*entry),
		deletedIDs:    make(map[int64]struct{}),
		deletedClient: make(map[uuid.UUID]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ApplySent merges a live MessageSent. It reports whether a new entry was appended.
// A confirmation of a provisional entry fills in the store identifier in place.
func (c *Conversation) ApplySent(msg model.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e := c.lookup(msg.ID, msg.ClientID); e != nil {
		c.link(e, msg.ID, msg.ClientID)
		if msg.Deleted {
			markDeleted(e)
		}
		c.applyKnownDeletion(e)
		return false
	}

	e := &entry{msg: msg, newUntil: c.now().Add(c.window)}
	c.entries = append(c.entries, e)
	c.index(e)
	if msg.Deleted {
		markDeleted(e)
	}
	c.applyKnownDeletion(e)
	return true
}

// ApplyDeleted merges a live MessageDeleted. It reports whether a visible message changed.
// A deletion for a message not seen yet is kept and applied when the message arrives.
func (c *Conversation) ApplyDeleted(del event.MessageDeleted) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rememberDeletion(del.ID, del.ClientID)

	e := c.lookup(del.ID, del.ClientID)
	if e == nil {
		return false
	}
	c.link(e, del.ID, del.ClientID)
	if e.msg.Deleted {
		return false
	}
	markDeleted(e)
	return true
}

// Replace installs a freshly fetched history. Deletions known locally stay applied even
// when the fetched copy still shows the message.
func (c *Conversation) Replace(history []model.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make([]*entry, 0, len(history))
	c.byID = make(map[int64]*entry, len(history))
	c.byClient = make(map[uuid.UUID]*entry, len(history))

	for _, msg := range history {
		if e := c.lookup(msg.ID, msg.ClientID); e != nil {
			continue
		}
		e := &entry{msg: msg}
		c.entries = append(c.entries, e)
		c.index(e)
		if msg.Deleted {
			markDeleted(e)
		}
		c.applyKnownDeletion(e)
	}
}

// Messages returns a snapshot in display order.
func (c *Conversation) Messages() []View {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	out := make([]View, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, View{Message: e.msg, New: now.Before(e.newUntil)})
	}
	return out
}

// Len returns the number of displayed messages.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// PendingDeletions returns how many known deletions have no matching message yet.
func (c *Conversation) PendingDeletions() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, d := range c.deletions {
		if c.lookup(d.id, d.clientID) == nil {
			n++
		}
	}
	return n
}

func (c *Conversation) lookup(id int64, clientID uuid.UUID) *entry {
	if id != 0 {
		if e, ok := c.byID[id]; ok {
			return e
		}
	}
	if clientID != uuid.Nil {
		if e, ok := c.byClient[clientID]; ok {
			return e
		}
	}
	return nil
}

func (c *Conversation) index(e *entry) {
	if e.msg.ID != 0 {
		c.byID[e.msg.ID] = e
	}
	if e.msg.ClientID != uuid.Nil {
		c.byClient[e.msg.ClientID] = e
	}
}

// link records identifiers learned later for an existing entry.
func (c *Conversation) link(e *entry, id int64, clientID uuid.UUID) {
	if e.msg.ID == 0 && id != 0 {
		e.msg.ID = id
		c.byID[id] = e
	}
	if e.msg.ClientID == uuid.Nil && clientID != uuid.Nil {
		e.msg.ClientID = clientID
		c.byClient[clientID] = e
	}
}

func (c *Conversation) rememberDeletion(id int64, clientID uuid.UUID) {
	_, knownID := c.deletedIDs[id]
	_, knownClient := c.deletedClient[clientID]
	if (id == 0 || knownID) && (clientID == uuid.Nil || knownClient) {
		return
	}
	if id != 0 {
		c.deletedIDs[id] = struct{}{}
	}
	if clientID != uuid.Nil {
		c.deletedClient[clientID] = struct{}{}
	}
	c.deletions = append(c.deletions, deletionKey{id: id, clientID: clientID})
}

func (c *Conversation) applyKnownDeletion(e *entry) {
	if e.msg.Deleted {
		return
	}
	_, byID := c.deletedIDs[e.msg.ID]
	_, byClient := c.deletedClient[e.msg.ClientID]
	if (e.msg.ID != 0 && byID) || (e.msg.ClientID != uuid.Nil && byClient) {
		markDeleted(e)
	}
}

func markDeleted(e *entry) {
	e.msg.Deleted = true
	e.msg.Text = model.DeletedText
	e.msg.Attachment = ""
}
