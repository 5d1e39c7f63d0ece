// Package status holds the server record model and the delta merge policy.
//
// A Collection is an ordered list of Records treated as an immutable value.
// Merge produces a new Collection with one record's live Status replaced
// wholesale; the input is never modified and unknown ids leave it as is.
//
// Store is the shared cache the feed writes into. Readers take lock-free
// snapshots and may subscribe to changes.
package status
