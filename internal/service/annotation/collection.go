package annotation

import (
	models "marginalia/internal/domain/models/annotation"
)

// collection is one document's records in insertion order plus an id index.
// Mutations are made on a clone and swapped in once persisted.
type collection struct {
	records []*models.Record
	byID    map[string]int
}

func newCollection(records []*models.Record) *collection {
	c := &collection{
		records: records,
		byID:    make(map[string]int, len(records)),
	}
	for i, r := range records {
		c.byID[r.ID] = i
	}
	return c
}

func (c *collection) len() int {
	return len(c.records)
}

func (c *collection) has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// get returns the stored record, not a copy. Nil when unknown.
func (c *collection) get(id string) *models.Record {
	i, ok := c.byID[id]
	if !ok {
		return nil
	}
	return c.records[i]
}

func (c *collection) clone() *collection {
	records := make([]*models.Record, len(c.records))
	for i, r := range c.records {
		records[i] = r.Clone()
	}
	return newCollection(records)
}

func (c *collection) append(r *models.Record) {
	c.byID[r.ID] = len(c.records)
	c.records = append(c.records, r)
}

// replace swaps in r at the position of the record with the same id
func (c *collection) replace(r *models.Record) {
	if i, ok := c.byID[r.ID]; ok {
		c.records[i] = r
	}
}

// without returns a new collection minus the given ids, keeping order
func (c *collection) without(ids map[string]bool) *collection {
	records := make([]*models.Record, 0, len(c.records))
	for _, r := range c.records {
		if !ids[r.ID] {
			records = append(records, r.Clone())
		}
	}
	return newCollection(records)
}
