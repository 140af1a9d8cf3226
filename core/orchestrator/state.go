package orchestrator

// State is a stage of a query.
type State int

const (
	StateExpanding State = iota
	StateRetrieving
	StateReranking
	StateFiltering
	StateBudgetFitting
	StatePrompting
	StateGenerating
	StateDone
	StateEmpty
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateExpanding:
		return "expanding"
	case StateRetrieving:
		return "retrieving"
	case StateReranking:
		return "reranking"
	case StateFiltering:
		return "filtering"
	case StateBudgetFitting:
		return "budget_fitting"
	case StatePrompting:
		return "prompting"
	case StateGenerating:
		return "generating"
	case StateDone:
		return "done"
	case StateEmpty:
		return "empty"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateEmpty || s == StateFailed
}
