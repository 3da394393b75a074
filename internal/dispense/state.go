package dispense

import "fmt"

// state tracks a request's position in the pipeline. Transitions are
// strictly one-way and single-step; advance panics on anything else,
// making "exactly one ledger write per attempted transfer" a structural
// property rather than a review item.
type state int

const (
	stateReceived state = iota
	statePolicyChecked
	stateOriginAdmitted
	stateDestinationAdmitted
	stateTransferAttempted
	stateRecorded
	stateResponded
)

var stateNames = map[state]string{
	stateReceived:            "RECEIVED",
	statePolicyChecked:       "POLICY_CHECKED",
	stateOriginAdmitted:      "ORIGIN_ADMITTED",
	stateDestinationAdmitted: "DESTINATION_ADMITTED",
	stateTransferAttempted:   "TRANSFER_ATTEMPTED",
	stateRecorded:            "RECORDED",
	stateResponded:           "RESPONDED",
}

func (s state) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// machine is the per-request transition guard.
type machine struct {
	current state
}

func newMachine() *machine {
	return &machine{current: stateReceived}
}

func (m *machine) advance(to state) {
	if to != m.current+1 {
		panic(fmt.Sprintf("dispense: illegal transition %s -> %s", m.current, to))
	}
	m.current = to
}

// reached reports whether the request got at least as far as s.
func (m *machine) reached(s state) bool {
	return m.current >= s
}
