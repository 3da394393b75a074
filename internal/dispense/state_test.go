package dispense

import "testing"

func TestMachineAdvancesOneWay(t *testing.T) {
	m := newMachine()
	for _, next := range []state{
		statePolicyChecked, stateOriginAdmitted, stateDestinationAdmitted,
		stateTransferAttempted, stateRecorded, stateResponded,
	} {
		m.advance(next)
		if m.current != next {
			t.Fatalf("current = %s, want %s", m.current, next)
		}
	}
	if !m.reached(stateRecorded) {
		t.Error("reached(RECORDED) should hold at RESPONDED")
	}
}

func TestMachineRejectsSkips(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on skipped state")
		}
	}()
	m := newMachine()
	m.advance(stateOriginAdmitted)
}

func TestMachineRejectsBacktracking(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on backwards transition")
		}
	}()
	m := newMachine()
	m.advance(statePolicyChecked)
	m.advance(stateReceived)
}
