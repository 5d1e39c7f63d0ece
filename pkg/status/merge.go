package status

// Collection is an ordered list of records. Treat it as immutable: every
// change produces a new Collection.
type Collection []Record

// Index returns the position of the record with id, or -1.
func (c Collection) Index(id int64) int {
	for i := range c {
		if c[i].ID == id {
			return i
		}
	}
	return -1
}

// Get returns the record with id.
func (c Collection) Get(id int64) (Record, bool) {
	if i := c.Index(id); i >= 0 {
		return c[i], true
	}
	return Record{}, false
}

// Clone returns a copy of c that shares no Status pointers with it.
func (c Collection) Clone() Collection {
	if c == nil {
		return nil
	}
	out := make(Collection, len(c))
	copy(out, c)
	for i := range out {
		if out[i].Status != nil {
			st := *out[i].Status
			out[i].Status = &st
		}
	}
	return out
}

// Merge applies one status delta. If no record has serverID, c is returned
// unchanged. Otherwise the result is a new Collection in which only that
// record's Status differs, replaced by a copy of st.
func Merge(c Collection, serverID int64, st Status) Collection {
	i := c.Index(serverID)
	if i < 0 {
		return c
	}
	next := make(Collection, len(c))
	copy(next, c)
	fresh := st
	next[i].Status = &fresh
	return next
}
