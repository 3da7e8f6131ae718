package catalog

import (
	"github.com/shopspring/decimal"

	"adline/internal/domain"
)

type entry struct {
	ad   domain.Ad
	item *Item
}

// Context is the catalog's immutable working set. Every change goes through a
// method that returns a new value.
type Context struct {
	entries    []entry
	index      map[string]int
	visible    []string
	filter     string
	selected   *domain.Ad
	totalSpent decimal.Decimal
	account    string
}

func newContext(ads []domain.Ad, filter string, totalSpent decimal.Decimal, account string) Context {
	c := Context{filter: filter, totalSpent: totalSpent, account: account}
	c.entries = make([]entry, 0, len(ads))
	for _, ad := range ads {
		c.entries = append(c.entries, entry{ad: ad, item: newItem(ad)})
	}
	c.reindex()
	c.visible = c.derive(filter)
	return c
}

func (c *Context) reindex() {
	c.index = make(map[string]int, len(c.entries))
	for i, e := range c.entries {
		c.index[e.ad.ID] = i
	}
}

func (c Context) derive(filter string) []string {
	var ids []string
	for _, e := range c.entries {
		if Matches(e.ad.Status, filter) {
			ids = append(ids, e.ad.ID)
		}
	}
	return ids
}

func (c Context) find(id string) (entry, bool) {
	i, ok := c.index[id]
	if !ok {
		return entry{}, false
	}
	return c.entries[i], true
}

func (c Context) isVisible(id string) bool {
	for _, v := range c.visible {
		if v == id {
			return true
		}
	}
	return false
}

func (c Context) withFilter(filter string) Context {
	c.filter = filter
	c.visible = c.derive(filter)
	return c
}

func (c Context) withSelected(ad *domain.Ad) Context {
	if ad != nil {
		cp := *ad
		ad = &cp
	}
	c.selected = ad
	return c
}

// withAd replaces an ad in the collection and, when it is the selected ad, in
// the selection too. The visible set is re-derived with the shared predicate.
func (c Context) withAd(ad domain.Ad) Context {
	i, ok := c.index[ad.ID]
	if !ok {
		return c
	}
	entries := append([]entry(nil), c.entries...)
	entries[i] = entry{ad: ad, item: entries[i].item}
	entries[i].item.sync(ad)
	c.entries = entries
	if c.selected != nil && c.selected.ID == ad.ID {
		cp := ad
		c.selected = &cp
	}
	c.visible = c.derive(c.filter)
	return c
}

// without drops the entry and its item from both views.
func (c Context) without(id string) Context {
	i, ok := c.index[id]
	if !ok {
		return c
	}
	entries := make([]entry, 0, len(c.entries)-1)
	entries = append(entries, c.entries[:i]...)
	entries = append(entries, c.entries[i+1:]...)
	c.entries = entries
	c.reindex()
	visible := make([]string, 0, len(c.visible))
	for _, v := range c.visible {
		if v != id {
			visible = append(visible, v)
		}
	}
	c.visible = visible
	if c.selected != nil && c.selected.ID == id {
		c.selected = nil
	}
	return c
}

func (c Context) all() []domain.Ad {
	out := make([]domain.Ad, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.ad)
	}
	return out
}

func (c Context) filtered() []domain.Ad {
	out := make([]domain.Ad, 0, len(c.visible))
	for _, id := range c.visible {
		if e, ok := c.find(id); ok {
			out = append(out, e.ad)
		}
	}
	return out
}
