package event

import "sort"

// DefaultOrdering is the ordering value a plugin manifest gets when it
// omits the optional `ordering` field.
const DefaultOrdering = 9999

// Target is one plugin's dispatch entry: its ordering key (for the
// stable-sort dispatch sequence) and the handler invoked for each
// lifecycle event. Handlers run serially, one at a time, on the main
// thread.
type Target struct {
	Ordering  int
	Discovery int // directory-enumeration index, breaks ordering ties
	Name      string
	Handle    func(Kind) error
}

// Dispatcher holds the plugin dispatch order for one realm and runs
// lifecycle events across it.
type Dispatcher struct {
	targets []Target
}

// NewDispatcher builds a dispatcher over targets, sorted stably by
// (Ordering, Discovery) per the plugin dispatch ordering rule:
// "stable ascending by ordering; ties preserve directory-enumeration
// order."
func NewDispatcher(targets []Target) *Dispatcher {
	sorted := append([]Target(nil), targets...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Ordering != sorted[j].Ordering {
			return sorted[i].Ordering < sorted[j].Ordering
		}
		return sorted[i].Discovery < sorted[j].Discovery
	})
	return &Dispatcher{targets: sorted}
}

// DispatchResult records one plugin's outcome for a single dispatch pass,
// so a caller can log failures without aborting the remaining plugins.
type DispatchResult struct {
	Plugin string
	Err    error
}

// Dispatch runs kind across every target in order, continuing past a
// failing plugin rather than aborting the pass.
func (d *Dispatcher) Dispatch(kind Kind) []DispatchResult {
	results := make([]DispatchResult, 0, len(d.targets))
	for _, t := range d.targets {
		err := t.Handle(kind)
		results = append(results, DispatchResult{Plugin: t.Name, Err: err})
	}
	return results
}
