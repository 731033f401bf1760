package librarysync

import "time"

// State is the position of the sync pipeline.
type State int32

const (
	Idle State = iota
	LoadingFromCache
	Parsing
	LoadingFromSource
	RetryWait
	Building
	Persisting
	Hydrating
	Ready
)

var stateNames = [...]string{
	Idle:              "idle",
	LoadingFromCache:  "loading_from_cache",
	Parsing:           "parsing",
	LoadingFromSource: "loading_from_source",
	RetryWait:         "retry_wait",
	Building:          "building",
	Persisting:        "persisting",
	Hydrating:         "hydrating",
	Ready:             "ready",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// EventKind names a sync lifecycle event.
type EventKind string

const (
	// EventState fires on every state transition.
	EventState EventKind = "library.state"
	// EventBrowsable fires when a freshly built library is published
	// before its post detail is loaded.
	EventBrowsable EventKind = "library.browsable"
	// EventHydrated fires when a fully loaded library is published.
	EventHydrated EventKind = "library.hydrated"
	// EventRefreshing fires when an accepted refresh starts.
	EventRefreshing EventKind = "library.refreshing"
	// EventPhotoTags fires when the photo tag lookup is replaced.
	EventPhotoTags EventKind = "library.photo_tags"
)

// Event is delivered to listeners registered with Subscribe.
type Event struct {
	Kind  EventKind `json:"kind"`
	State string    `json:"state"`
	Run   string    `json:"run,omitempty"`
	Posts int       `json:"posts,omitempty"`
}

// Status is a point-in-time summary of the sync pipeline.
type Status struct {
	State          string     `json:"state"`
	Loading        bool       `json:"loading"`
	Browsable      bool       `json:"browsable"`
	PostInfoLoaded bool       `json:"postInfoLoaded"`
	Posts          int        `json:"posts"`
	PhotoTags      int        `json:"photoTags"`
	Run            string     `json:"run,omitempty"`
	LoadedAt       *time.Time `json:"loadedAt,omitempty"`
	Origin         string     `json:"origin,omitempty"`
}
