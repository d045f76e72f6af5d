package market

import "github.com/google/uuid"

// Gate is the pausable admin switch. One designated operator controls it;
// every state-mutating operation (withdraw included) checks it before any
// other precondition.
type Gate struct {
	operator uuid.UUID
	paused   bool
}

func NewGate(operator uuid.UUID) *Gate {
	return &Gate{operator: operator}
}

// Check returns ErrPaused while the gate is engaged.
func (g *Gate) Check() error {
	if g.paused {
		return ErrPaused
	}
	return nil
}

func (g *Gate) Paused() bool {
	return g.paused
}

func (g *Gate) Operator() uuid.UUID {
	return g.operator
}

func (g *Gate) pause(caller uuid.UUID) error {
	if caller != g.operator {
		return ErrNotOperator
	}
	if g.paused {
		return ErrGateUnchanged
	}
	g.paused = true
	return nil
}

func (g *Gate) unpause(caller uuid.UUID) error {
	if caller != g.operator {
		return ErrNotOperator
	}
	if !g.paused {
		return ErrGateUnchanged
	}
	g.paused = false
	return nil
}
