package shuffle

type Phase int

const (
	Idle Phase = iota
	Detecting
	Scoring
	Reshuffling
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "IDLE"
	case Detecting:
		return "DETECTING"
	case Scoring:
		return "SCORING"
	case Reshuffling:
		return "RESHUFFLING"
	default:
		return "UNKNOWN"
	}
}

// Next is the phase that follows p; the cycle never terminates.
func (p Phase) Next() Phase {
	switch p {
	case Idle:
		return Detecting
	case Detecting:
		return Scoring
	case Scoring:
		return Reshuffling
	default:
		return Idle
	}
}

type StopReason string

const (
	StopMaxTicks  StopReason = "max ticks reached"
	StopClean     StopReason = "no attackers left"
	StopCancelled StopReason = "cancelled"
)
