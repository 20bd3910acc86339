// Package ui holds the ordered UI event log that runs parallel to conversation messages.
//
// Every event carries a correlation id. Consumers resolve the current visual state of an
// id by folding its events in order: Merge shallow-combines props with the previous state,
// Replace discards them. Each id follows a small state machine
// (loading → proposed → success | error | accepted | rejected) and never moves backwards.
package ui

// MergePolicy controls how an event's props combine with the previous state of its id.
type MergePolicy string

const (
	Merge   MergePolicy = "merge"
	Replace MergePolicy = "replace"
)

// Status is the lifecycle position of one correlation id.
type Status string

const (
	StatusLoading  Status = "loading"
	StatusProposed Status = "proposed"
	StatusSuccess  Status = "success"
	StatusError    Status = "error"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// Terminal reports whether no further events may follow for the id.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusError, StatusAccepted, StatusRejected:
		return true
	}
	return false
}

func (s Status) rank() int {
	switch s {
	case StatusLoading:
		return 0
	case StatusProposed:
		return 1
	default:
		return 2
	}
}

// Props is the component payload. Values must be JSON-serialisable.
type Props map[string]any

// Event is one UI push.
type Event struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Props     Props       `json:"props"`
	MessageID string      `json:"message_id,omitempty"`
	Merge     MergePolicy `json:"merge"`
	Status    Status      `json:"status"`
}

// View is the folded visual state of one correlation id.
type View struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Props     Props  `json:"props"`
	MessageID string `json:"message_id,omitempty"`
	Status    Status `json:"status"`
}

// Fold applies ev on top of prev. prev may be nil for the first event of an id.
func Fold(prev *View, ev Event) View {
	next := View{
		ID:        ev.ID,
		Name:      ev.Name,
		MessageID: ev.MessageID,
		Status:    ev.Status,
		Props:     Props{},
	}
	if prev != nil && ev.Merge == Merge {
		for k, v := range prev.Props {
			next.Props[k] = v
		}
		if next.MessageID == "" {
			next.MessageID = prev.MessageID
		}
	}
	for k, v := range ev.Props {
		next.Props[k] = v
	}
	return next
}

// Reduce folds an ordered event log into the current view of every correlation id.
func Reduce(events []Event) map[string]View {
	views := make(map[string]View)
	for _, ev := range events {
		var prev *View
		if v, ok := views[ev.ID]; ok {
			prev = &v
		}
		views[ev.ID] = Fold(prev, ev)
	}
	return views
}

// Current returns the folded view of id.
func Current(events []Event, id string) (View, bool) {
	var (
		view  View
		found bool
	)
	for _, ev := range events {
		if ev.ID != id {
			continue
		}
		if found {
			view = Fold(&view, ev)
		} else {
			view = Fold(nil, ev)
			found = true
		}
	}
	return view, found
}

// allowed enforces monotonic information per id.
func allowed(prev *View, ev Event) bool {
	if prev == nil {
		return true
	}
	if prev.Status.Terminal() {
		return false
	}
	if ev.Status == StatusLoading && prev.Status == StatusLoading {
		return true
	}
	return ev.Status.rank() > prev.Status.rank()
}
