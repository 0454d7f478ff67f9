package pipeline

// State is the stage a discovery cycle is in.
type State int32

const (
	Idle State = iota
	Discovering
	Deduplicating
	Scoring
	Affiliating
	Persisting
	Forwarding
)

var stateNames = [...]string{
	Idle:          "idle",
	Discovering:   "discovering",
	Deduplicating: "deduplicating",
	Scoring:       "scoring",
	Affiliating:   "affiliating",
	Persisting:    "persisting",
	Forwarding:    "forwarding",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
