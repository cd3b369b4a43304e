// Package store keeps the take log: one row per reel run and one row per
// executed frame (hydrated request, observed response, register after the
// frame, error). Rows are ordered by the runner's logical seq, never by wall
// clock, and documents are stored as sorted-key JSON so identical runs
// produce identical rows.
//
// The database runs in WAL mode with foreign keys on and a 5s busy timeout.
package store
