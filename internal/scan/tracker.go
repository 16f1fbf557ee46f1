package scan

// DefaultCategory is the sentinel applied to results seen before any
// category header.
const DefaultCategory = "General"

// Tracker remembers the current category across lines. Results are stamped
// with the value as it exists at classification time; a later header never
// re-tags earlier results.
type Tracker struct {
	current string
}

// NewTracker returns a tracker positioned at the sentinel category.
func NewTracker() *Tracker {
	return &Tracker{current: DefaultCategory}
}

// Observe updates the tracker from one event. Only Category events have any
// effect.
func (t *Tracker) Observe(ev Event) {
	if cat, ok := ev.(Category); ok {
		t.current = cat.Name
	}
}

// Current returns the category to stamp onto the next result.
func (t *Tracker) Current() string {
	return t.current
}

// Reset returns the tracker to the sentinel category. Called at the start
// of every run.
func (t *Tracker) Reset() {
	t.current = DefaultCategory
}
