package ring

// step is what the ring does with a new submission.
type step uint8

const (
	// hand the operation to the kernel
	stepSubmit step = iota
	// hand it to the kernel hard-linked behind the predecessor's queued SQE
	stepChain
	// hold it until the predecessor resolves
	stepPark
	// hold it until no operation is parked
	stepGate
	// resolve it with ErrLinkedCancelled
	stepCancel
)

func (s step) String() string {
	switch s {
	case stepSubmit:
		return "submit"
	case stepChain:
		return "chain"
	case stepPark:
		return "park"
	case stepGate:
		return "gate"
	default:
		return "cancel"
	}
}

// predecessor describes the operation submitted right before a new one.
type predecessor struct {
	state opState
	// owns the newest SQE in the submission queue
	tail bool
}

// resolve decides how a submission with the given ordering reaches the
// kernel. parked counts Link operations waiting on a predecessor, gated
// reports operations held behind a drain.
//
// Operations held by the ring are invisible to the kernel's drain flag,
// so a drain waits until every parked operation was handed over, and
// anything submitted while a drain is held queues behind it.
func resolve(ordering Ordering, prev predecessor, parked int, gated bool) step {
	if gated {
		return stepGate
	}
	switch ordering {
	case Drain:
		if parked > 0 {
			return stepGate
		}
		return stepSubmit
	case Link:
		switch prev.state {
		case stateNone, stateSucceeded:
			return stepSubmit
		case stateFailed:
			return stepCancel
		case stateQueued:
			if prev.tail {
				return stepChain
			}
			return stepPark
		default:
			return stepPark
		}
	default:
		return stepSubmit
	}
}
