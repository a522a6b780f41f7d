package extract

import "time"

// State is the extraction loop lifecycle stage.
type State int

const (
	Subscribed State = iota
	Receiving
	Idle
	Completed
)

func (s State) String() string {
	switch s {
	case Subscribed:
		return "subscribed"
	case Receiving:
		return "receiving"
	case Idle:
		return "idle"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

// Reason explains why a run reached Completed.
type Reason string

const (
	ReasonEndOfPartitions Reason = "end-of-partitions"
	ReasonIdleTimeout     Reason = "idle-timeout"
	ReasonCanceled        Reason = "canceled"
)

// EventKind classifies a poll outcome.
type EventKind int

const (
	EventMessage EventKind = iota
	EventEndOfPartitions
	EventPollTimeout
	EventCanceled
)

// Event is what one poll produced.
type Event struct {
	Kind    EventKind
	Waited  time.Duration // EventPollTimeout: how long the poll waited
	Message *Message      // EventMessage only
}

// Message is one record read from the broker.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Timestamp time.Time
}

// Action tells the loop what to do after a transition.
type Action int

const (
	ActionPoll    Action = iota // poll again
	ActionConvert               // convert and write the message, then poll
	ActionFinish                // run terminal actions and return
)

// Status is the machine state plus the idle time accumulated since the last
// message.
type Status struct {
	State  State
	Idle   time.Duration
	Reason Reason
}

// Next is the pure transition function of the extraction loop.
//
//	Message          -> Receiving, idle reset, convert
//	EndOfPartitions  -> Completed(end-of-partitions)
//	PollTimeout(w)   -> Idle with idle+w, or Completed(idle-timeout) once
//	                    idle reaches idleLimit
//	Canceled         -> Completed(canceled)
//
// An idleLimit <= 0 disables the idle timeout. Completed absorbs every event.
func Next(s Status, ev Event, idleLimit time.Duration) (Status, Action) {
	if s.State == Completed {
		return s, ActionFinish
	}
	switch ev.Kind {
	case EventMessage:
		return Status{State: Receiving}, ActionConvert
	case EventEndOfPartitions:
		return Status{State: Completed, Idle: s.Idle, Reason: ReasonEndOfPartitions}, ActionFinish
	case EventCanceled:
		return Status{State: Completed, Idle: s.Idle, Reason: ReasonCanceled}, ActionFinish
	case EventPollTimeout:
		idle := s.Idle + ev.Waited
		if idleLimit > 0 && idle >= idleLimit {
			return Status{State: Completed, Idle: idle, Reason: ReasonIdleTimeout}, ActionFinish
		}
		return Status{State: Idle, Idle: idle}, ActionPoll
	}
	return s, ActionPoll
}

// PollWait returns how long the next poll may block: the poll interval,
// capped by the idle budget that is left.
func PollWait(s Status, pollInterval, idleLimit time.Duration) time.Duration {
	wait := pollInterval
	if idleLimit > 0 {
		if left := idleLimit - s.Idle; left < wait || wait <= 0 {
			wait = left
		}
	}
	if wait <= 0 {
		wait = time.Millisecond
	}
	return wait
}
