package chat

// cursorTable tracks, per user id, how many log positions have already been
// delivered to that user's bound connection. Values start at 0 on first
// sight of a user id and only ever move forward. The table carries no lock
// of its own: the engine mutates it under the same mutex that serializes
// log appends, which is what keeps cursor advances ordered with respect to
// fan-out.
type cursorTable struct {
	seen map[string]int
}

func newCursorTable() *cursorTable {
	return &cursorTable{seen: make(map[string]int)}
}

// get returns the user's watermark, defaulting to 0.
func (t *cursorTable) get(userID string) int {
	return t.seen[userID]
}

// advance moves the user's watermark to pos. Attempts to move backwards are
// ignored so the watermark stays monotonically non-decreasing.
func (t *cursorTable) advance(userID string, pos int) {
	if pos > t.seen[userID] {
		t.seen[userID] = pos
	}
}
