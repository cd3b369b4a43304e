package testutil

// DefaultRunID is used when a scenario does not pin a run ID.
const DefaultRunID = "test-run-default"

// FixedRunID satisfies reel.RunIDGenerator and returns the same ID on every
// call, so golden traces are byte-identical across runs.
type FixedRunID string

// Generate returns the fixed ID, or DefaultRunID when empty.
func (id FixedRunID) Generate() string {
	if id == "" {
		return DefaultRunID
	}
	return string(id)
}
