package processor

import (
	"fmt"
	"time"
)

type OutcomeKind int

const (
	NoRemoteData OutcomeKind = iota
	UpToDate
	Synced
	Failed
)

func (k OutcomeKind) String() string {
	switch k {
	case NoRemoteData:
		return "no_remote_data"
	case UpToDate:
		return "up_to_date"
	case Synced:
		return "synced"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Outcome is the result of one sync run as shown to the user.
type Outcome struct {
	Kind     OutcomeKind
	Count    int
	Reason   string
	Err      error
	RunID    string
	Duration time.Duration
}

func (o Outcome) Message() string {
	switch o.Kind {
	case NoRemoteData:
		return "No remote data available"
	case UpToDate:
		return "Already up to date"
	case Synced:
		return fmt.Sprintf("Synced %d records", o.Count)
	default:
		return "Sync failed, try again"
	}
}

// Level is the notification class the UI renders the outcome with.
func (o Outcome) Level() string {
	switch o.Kind {
	case Synced:
		return "success"
	case Failed:
		return "error"
	default:
		return "info"
	}
}

func failed(reason string, err error) Outcome {
	return Outcome{Kind: Failed, Reason: reason, Err: err}
}

type State int32

const (
	Idle State = iota
	Syncing
)

func (s State) String() string {
	if s == Syncing {
		return "syncing"
	}
	return "idle"
}
