package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// PunchType is the effective type of an attendance event
type PunchType string

const (
	PunchIn           PunchType = "IN"
	PunchOut          PunchType = "OUT"
	PunchBreakStart   PunchType = "BREAK_START"
	PunchBreakEnd     PunchType = "BREAK_END"
	PunchMissionStart PunchType = "MISSION_START"
	PunchMissionEnd   PunchType = "MISSION_END"
)

// IsValid reports whether t is a known punch type
func (t PunchType) IsValid() bool {
	switch t {
	case PunchIn, PunchOut, PunchBreakStart, PunchBreakEnd, PunchMissionStart, PunchMissionEnd:
		return true
	}
	return false
}

// IsBreak reports whether t is a break boundary. Break punches never open or
// close a work session.
func (t PunchType) IsBreak() bool {
	return t == PunchBreakStart || t == PunchBreakEnd
}

// Opposite returns the session-level opposite of an IN/OUT type.
// For non-session types it returns the type unchanged.
func (t PunchType) Opposite() PunchType {
	switch t {
	case PunchIn:
		return PunchOut
	case PunchOut:
		return PunchIn
	}
	return t
}

// DetectionMethod records how the effective type of a punch was determined
type DetectionMethod string

const (
	MethodTerminalState DetectionMethod = "TERMINAL_STATE"
	MethodAlternation   DetectionMethod = "ALTERNATION"
	MethodShiftBased    DetectionMethod = "SHIFT_BASED"
	MethodTimeBased     DetectionMethod = "TIME_BASED"
	// MethodDeclared covers punches whose type was stated explicitly at the
	// source, by a back-office operator or a device payload without a state
	// code; no inference runs.
	MethodDeclared DetectionMethod = "DECLARED"
)

// Confidence expresses how sure the classifier is about an inferred type
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// PunchSource identifies where a punch entered the system
type PunchSource string

const (
	SourceTerminal PunchSource = "TERMINAL"
	SourceMobile   PunchSource = "MOBILE"
	SourceManual   PunchSource = "MANUAL"
)

// terminalStateTypes maps the fixed terminal state codes to effective types.
// Codes 4 and 5 are the overtime-in/overtime-out buttons; they carry no
// distinct record type, only the IN/OUT direction.
var terminalStateTypes = map[int]PunchType{
	0: PunchIn,
	1: PunchOut,
	2: PunchBreakStart,
	3: PunchBreakEnd,
	4: PunchIn,
	5: PunchOut,
}

// TypeForTerminalState maps a terminal state code to its punch type.
// The mapping is authoritative: when a code is present no inference runs.
func TypeForTerminalState(code int) (PunchType, error) {
	t, ok := terminalStateTypes[code]
	if !ok {
		return "", fmt.Errorf("unknown terminal state code %d", code)
	}
	return t, nil
}

// PunchEvent is the transient ingest-time representation of a punch.
// EmployeeRef may be an internal employee ID or an external badge code;
// the pipeline resolves it before persisting.
type PunchEvent struct {
	EmployeeRef       string          `json:"employeeId" validate:"required"`
	TenantID          string          `json:"-"`
	Instant           time.Time       `json:"timestamp" validate:"required"`
	DeclaredType      *PunchType      `json:"type,omitempty"`
	TerminalStateCode *int            `json:"terminalStateCode,omitempty" validate:"omitempty,min=0,max=5"`
	Source            PunchSource     `json:"method" validate:"required,oneof=TERMINAL MOBILE MANUAL"`
	DeviceID          string          `json:"deviceId,omitempty"`
	RawPayload        json.RawMessage `json:"rawPayload,omitempty"`
	EnteredBy         string          `json:"-"` // actor ID for manual entries
}

// IsManual reports whether the punch came from back-office manual entry
func (e *PunchEvent) IsManual() bool {
	return e.Source == SourceManual
}
