package fsm

import "fmt"

type State int

const (
	Off State = iota
	StartingCirculation
	On
	WaitingBeforeStopping
	StoppingLow
	WaitingRestartLow
	StoppingHot
	WaitingRestartHot
	Hot
	numStates
)

var stateNames = [...]string{
	"off",
	"starting circulation pump",
	"on",
	"waiting before stopping",
	"stopping circulation pump low",
	"waiting before restart low",
	"stopping circulation pump hot",
	"waiting before restart hot",
	"hot",
}

func (s State) String() string {
	if s >= 0 && s < numStates {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// States lists every state in declaration order.
func States() []State {
	states := make([]State, 0, numStates)
	for s := Off; s < numStates; s++ {
		states = append(states, s)
	}
	return states
}

type Event int

const (
	EventFull Event = iota
	EventLow
	EventCritical
	EventHot
	EventCold
	EventTick
	EventTimeout
	EventResume
	numEvents
)

var eventNames = [...]string{"full", "low", "critical", "hot", "cold", "tick", "timeout", "resume"}

func (e Event) String() string {
	if e >= 0 && e < numEvents {
		return eventNames[e]
	}
	return fmt.Sprintf("Event(%d)", int(e))
}

// Events lists every event in declaration order.
func Events() []Event {
	events := make([]Event, 0, numEvents)
	for e := EventFull; e < numEvents; e++ {
		events = append(events, e)
	}
	return events
}

// Effect is a side effect run when a transition fires, in table order.
type Effect int

const (
	HeatPumpOn Effect = iota + 1
	HeatPumpOff
	CirculationPumpOn
	CirculationPumpOff
	ArmCirculationDelay
	ArmLowBatteryTimeout
	ArmRestartDelay
	CancelTimer
)

var effectNames = map[Effect]string{
	HeatPumpOn:           "turn heat pump on",
	HeatPumpOff:          "turn heat pump off",
	CirculationPumpOn:    "turn circulation pump on",
	CirculationPumpOff:   "turn circulation pump off",
	ArmCirculationDelay:  "set circulation delay timer",
	ArmLowBatteryTimeout: "set low battery timer",
	ArmRestartDelay:      "set restart delay timer",
	CancelTimer:          "cancel timer",
}

func (e Effect) String() string {
	if n, ok := effectNames[e]; ok {
		return n
	}
	return fmt.Sprintf("Effect(%d)", int(e))
}

type transition struct {
	next    State
	effects []Effect
}

func to(next State, effects ...Effect) *transition {
	return &transition{next: next, effects: effects}
}

// A nil cell means the event is not expected in that state and is ignored.
var table = [numStates][numEvents]*transition{
	Off: {
		EventFull:     to(StartingCirculation, HeatPumpOn, ArmCirculationDelay),
		EventLow:      to(Off),
		EventCritical: to(Off),
		EventHot:      to(Hot),
		EventCold:     to(Off),
		EventTick:     to(Off),
	},
	StartingCirculation: {
		EventFull:     to(StartingCirculation),
		EventLow:      to(StartingCirculation),
		EventCritical: to(Off, CancelTimer, HeatPumpOff),
		EventHot:      to(Hot, CancelTimer, HeatPumpOff),
		EventCold:     to(StartingCirculation),
		EventTick:     to(StartingCirculation),
		EventTimeout:  to(On, CirculationPumpOn),
	},
	On: {
		EventFull:     to(On),
		EventLow:      to(WaitingBeforeStopping, ArmLowBatteryTimeout),
		EventCritical: to(StoppingLow, HeatPumpOff, ArmCirculationDelay),
		EventHot:      to(StoppingHot, HeatPumpOff, ArmCirculationDelay),
		EventCold:     to(On),
		EventTick:     to(On),
	},
	WaitingBeforeStopping: {
		EventFull:     to(On, CancelTimer),
		EventLow:      to(WaitingBeforeStopping),
		EventCritical: to(StoppingLow, HeatPumpOff, ArmCirculationDelay),
		EventHot:      to(StoppingHot, HeatPumpOff, ArmCirculationDelay),
		EventCold:     to(WaitingBeforeStopping),
		EventTick:     to(On, CancelTimer),
		EventTimeout:  to(StoppingLow, HeatPumpOff, ArmCirculationDelay),
	},
	StoppingLow: {
		EventFull:     to(StoppingLow),
		EventLow:      to(StoppingLow),
		EventCritical: to(StoppingLow),
		EventHot:      to(StoppingLow),
		EventCold:     to(StoppingLow),
		EventTick:     to(StoppingLow),
		EventTimeout:  to(WaitingRestartLow, CirculationPumpOff, ArmRestartDelay),
	},
	WaitingRestartLow: {
		EventFull:     to(WaitingRestartLow),
		EventLow:      to(WaitingRestartLow),
		EventCritical: to(WaitingRestartLow),
		EventHot:      to(WaitingRestartLow),
		EventCold:     to(WaitingRestartLow),
		EventTick:     to(WaitingRestartLow),
		EventTimeout:  to(Off),
	},
	StoppingHot: {
		EventFull:     to(StoppingHot),
		EventLow:      to(StoppingHot),
		EventCritical: to(StoppingHot),
		EventHot:      to(StoppingHot),
		EventCold:     to(StoppingHot),
		EventTick:     to(StoppingHot),
		EventTimeout:  to(WaitingRestartHot, CirculationPumpOff, ArmRestartDelay),
	},
	WaitingRestartHot: {
		EventFull:     to(WaitingRestartHot),
		EventLow:      to(WaitingRestartHot),
		EventCritical: to(WaitingRestartHot),
		EventHot:      to(WaitingRestartHot),
		EventCold:     to(WaitingRestartHot),
		EventTick:     to(WaitingRestartHot),
		EventTimeout:  to(Hot),
	},
	Hot: {
		EventFull:     to(Hot),
		EventLow:      to(Hot),
		EventCritical: to(Hot),
		EventHot:      to(Hot),
		EventCold:     to(Off),
		EventTick:     to(Hot),
	},
}

// Lookup returns the transition for ev in s. ok is false when the event is not expected in s.
func Lookup(s State, ev Event) (next State, effects []Effect, ok bool) {
	if s < 0 || s >= numStates || ev < 0 || ev >= numEvents {
		return s, nil, false
	}
	t := table[s][ev]
	if t == nil {
		return s, nil, false
	}
	return t.next, t.effects, true
}
