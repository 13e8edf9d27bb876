// Package mediagroup collects the photos of a Telegram album into one upload.
package mediagroup

import (
	"fmt"
	"sync"
	"time"
)

const defaultDebounce = 1200 * time.Millisecond

type Item struct {
	ChatID       int64
	UserID       int64
	MediaGroupID string
	Caption      string
	FileID       string
}

type Group struct {
	ChatID  int64
	UserID  int64
	Caption string
	FileIDs []string
}

type Options struct {
	Debounce time.Duration
	// MaxItems flushes a group as soon as it holds this many files. Zero means no limit.
	MaxItems int
	OnFlush  func(Group)
}

// Aggregator groups album items by chat and media group id and flushes each
// group once no new item arrived for the debounce interval.
type Aggregator struct {
	mu       sync.Mutex
	debounce time.Duration
	maxItems int
	onFlush  func(Group)
	groups   map[string]*pendingGroup
	closed   bool
}

type pendingGroup struct {
	group Group
	timer *time.Timer
}

func New(opts Options) *Aggregator {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	return &Aggregator{
		debounce: debounce,
		maxItems: opts.MaxItems,
		onFlush:  opts.OnFlush,
		groups:   make(map[string]*pendingGroup),
	}
}

// Add reports whether the item was accepted. Items without a group or file id,
// and items arriving after Close, are ignored.
func (a *Aggregator) Add(item Item) bool {
	if item.MediaGroupID == "" || item.FileID == "" {
		return false
	}

	key := makeKey(item.ChatID, item.MediaGroupID)

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return false
	}

	pg, ok := a.groups[key]
	if !ok {
		pg = &pendingGroup{
			group: Group{
				ChatID:  item.ChatID,
				UserID:  item.UserID,
				Caption: item.Caption,
			},
		}
		a.groups[key] = pg
	}
	pg.group.FileIDs = append(pg.group.FileIDs, item.FileID)
	if item.Caption != "" {
		pg.group.Caption = item.Caption
	}

	if pg.timer != nil {
		pg.timer.Stop()
	}
	full := a.maxItems > 0 && len(pg.group.FileIDs) >= a.maxItems
	if !full {
		pg.timer = time.AfterFunc(a.debounce, func() {
			a.flush(key)
		})
	}
	a.mu.Unlock()

	if full {
		a.flush(key)
	}
	return true
}

// Pending returns the number of groups waiting for their debounce to expire.
func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.groups)
}

// Close stops all timers and drops pending groups without flushing them.
func (a *Aggregator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.closed = true
	for key, pg := range a.groups {
		if pg.timer != nil {
			pg.timer.Stop()
		}
		delete(a.groups, key)
	}
}

func (a *Aggregator) flush(key string) {
	a.mu.Lock()
	pg, ok := a.groups[key]
	if !ok {
		a.mu.Unlock()
		return
	}
	delete(a.groups, key)
	group := pg.group
	onFlush := a.onFlush
	a.mu.Unlock()

	if onFlush != nil {
		onFlush(group)
	}
}

func makeKey(chatID int64, mediaGroupID string) string {
	return fmt.Sprintf("%d:%s", chatID, mediaGroupID)
}
