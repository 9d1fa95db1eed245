package tracker

// State is the loading state of a resource.
type State uint8

const (
	Unloaded State = iota
	Loading
	Loaded
	Error
	Unloading

	numStates
)

var stateNames = [numStates]string{
	Unloaded:  "unloaded",
	Loading:   "loading",
	Loaded:    "loaded",
	Error:     "error",
	Unloading: "unloading",
}

func (s State) String() string {
	if s >= numStates {
		return "invalid"
	}
	return stateNames[s]
}

// transitions[from] is the set of states reachable from from.
var transitions = [numStates][numStates]bool{
	Unloaded:  {Loading: true},
	Loading:   {Loaded: true, Error: true},
	Loaded:    {Unloading: true},
	Error:     {Loading: true, Unloaded: true},
	Unloading: {Unloaded: true},
}

// CanTransition reports whether the state machine permits from -> to.
// It does not check loading rights.
func CanTransition(from, to State) bool {
	if from >= numStates || to >= numStates {
		return false
	}
	return transitions[from][to]
}
