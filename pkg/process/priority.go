package process

import "fmt"

type Priority int

const (
	NormalPriority Priority = iota
	HighPriority
	RealtimePriority
	IdlePriority
)

func (p Priority) String() string {
	switch p {
	case HighPriority:
		return "high"
	case RealtimePriority:
		return "realtime"
	case IdlePriority:
		return "idle"
	default:
		return "normal"
	}
}

func (p *Priority) Set(s string) error {
	switch s {
	case "", "normal":
		*p = NormalPriority
	case "high":
		*p = HighPriority
	case "realtime":
		*p = RealtimePriority
	case "idle":
		*p = IdlePriority
	default:
		return fmt.Errorf("process: unknown priority %q", s)
	}
	return nil
}
