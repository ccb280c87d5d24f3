package ring

import "fmt"

// Ordering
// relation between an operation and the one submitted immediately before it on the same Ring.
type Ordering uint8

const (
	// None lets the kernel run the operation concurrently with anything else.
	None Ordering = iota
	// Link holds the operation until its predecessor completes. A failed,
	// short or cancelled predecessor cancels it with ErrLinkedCancelled.
	Link
	// Drain starts the operation after every earlier operation completed and
	// holds every later operation until it completed.
	Drain
)

func (o Ordering) String() string {
	switch o {
	case None:
		return "none"
	case Link:
		return "link"
	case Drain:
		return "drain"
	default:
		return fmt.Sprintf("ordering(%d)", uint8(o))
	}
}

func (o Ordering) valid() bool {
	return o <= Drain
}
