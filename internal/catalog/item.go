package catalog

import (
	"fmt"
	"sync"

	"adline/internal/domain"
)

type ItemState string

const (
	ItemEditing    ItemState = "editing"
	ItemIdle       ItemState = "idle"
	ItemPublishing ItemState = "publishing"
)

// Item is the per-ad child machine. It is owned by the catalog entry that
// spawned it and dropped with that entry.
type Item struct {
	mu    sync.Mutex
	state ItemState
	ad    domain.Ad
}

func newItem(ad domain.Ad) *Item {
	return &Item{state: ItemEditing, ad: ad}
}

func (i *Item) State() ItemState {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

func (i *Item) Ad() domain.Ad {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.ad
}

// Change merges fields into the item's own draft copy; only accepted while
// editing. The collection entry is not touched, and the next update of the
// entry replaces the draft.
func (i *Item) Change(p domain.AdPatch) (domain.Ad, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state != ItemEditing {
		return i.ad, fmt.Errorf("%w: change in %s", domain.ErrInvalidTransition, i.state)
	}
	i.ad = i.ad.Apply(p)
	return i.ad, nil
}

func (i *Item) mark(s ItemState) {
	i.mu.Lock()
	i.state = s
	i.mu.Unlock()
}

func (i *Item) sync(ad domain.Ad) {
	i.mu.Lock()
	i.ad = ad
	i.mu.Unlock()
}
