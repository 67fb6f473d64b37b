package q931

import "fmt"

// CallState enumerates the Q.931 call states. See Q.931 section 2.
type CallState uint8

const (
	StateNull CallState = iota
	StateCallInitiated
	StateOverlapSending
	StateOutgoingCallProceeding
	StateCallDelivered
	StateCallPresent
	StateCallReceived
	StateConnectRequest
	StateIncomingCallProceeding
	StateActive
	StateDisconnectRequest
	StateDisconnectIndication
	StateSuspendRequest
	StateResumeRequest
	StateReleaseRequest
	StateCallAbort
	StateOverlapReceiving
	StateCallIndependentService
	StateRestartRequest
	StateRestart

	// StateNotSet is a sentinel meaning "no suggested state present in
	// STATUS", distinct from StateNull.
	StateNotSet CallState = 0xff
)

// String returns the Q.931 call-state name.
func (s CallState) String() string {
	switch s {
	case StateNull:
		return "Null"
	case StateCallInitiated:
		return "CallInitiated"
	case StateOverlapSending:
		return "OverlapSending"
	case StateOutgoingCallProceeding:
		return "OutgoingCallProceeding"
	case StateCallDelivered:
		return "CallDelivered"
	case StateCallPresent:
		return "CallPresent"
	case StateCallReceived:
		return "CallReceived"
	case StateConnectRequest:
		return "ConnectRequest"
	case StateIncomingCallProceeding:
		return "IncomingCallProceeding"
	case StateActive:
		return "Active"
	case StateDisconnectRequest:
		return "DisconnectRequest"
	case StateDisconnectIndication:
		return "DisconnectIndication"
	case StateSuspendRequest:
		return "SuspendRequest"
	case StateResumeRequest:
		return "ResumeRequest"
	case StateReleaseRequest:
		return "ReleaseRequest"
	case StateCallAbort:
		return "CallAbort"
	case StateOverlapReceiving:
		return "OverlapReceiving"
	case StateCallIndependentService:
		return "CallIndependentService"
	case StateRestartRequest:
		return "RestartRequest"
	case StateRestart:
		return "Restart"
	case StateNotSet:
		return "NotSet"
	default:
		return fmt.Sprintf("CallState(%d)", uint8(s))
	}
}

// holdEligible lists the own-states from which Hold may be requested.
// See spec.md §3 invariants.
var holdEligible = map[CallState]bool{
	StateOutgoingCallProceeding: true,
	StateCallDelivered:          true,
	StateCallReceived:           true,
	StateConnectRequest:         true,
	StateIncomingCallProceeding: true,
	StateActive:                 true,
}

// HoldEligible reports whether a Hold request may be issued from state s.
func HoldEligible(s CallState) bool { return holdEligible[s] }

// HoldState tracks the hold/retrieve sub-state machine.
// See spec.md §4.5 "Hold/Retrieve".
type HoldState uint8

const (
	HoldIdle HoldState = iota
	HoldReq
	HoldInd
	CallHeld
	RetrieveReq
	RetrieveInd
)

func (h HoldState) String() string {
	switch h {
	case HoldIdle:
		return "Idle"
	case HoldReq:
		return "Hold-Req"
	case HoldInd:
		return "Hold-Ind"
	case CallHeld:
		return "Call-Held"
	case RetrieveReq:
		return "Retrieve-Req"
	case RetrieveInd:
		return "Retrieve-Ind"
	default:
		return fmt.Sprintf("HoldState(%d)", uint8(h))
	}
}

// Cause identifies a clearing/diagnostic reason. See Q.850.
type Cause uint8

// Frequently used cause values (Q.850 table 1).
const (
	CauseUnallocatedNumber       Cause = 1
	CauseNoRouteToNetwork        Cause = 2
	CauseChannelUnacceptable     Cause = 6
	CauseCallAwarded             Cause = 7
	CauseNormalClearing          Cause = 16
	CauseUserBusy                Cause = 17
	CauseNoUserResponding        Cause = 18
	CauseNoAnswer                Cause = 19
	CauseCallRejected            Cause = 21
	CauseNumberChanged           Cause = 22
	CauseNonSelectedUserClearing Cause = 26
	CauseDestOutOfOrder          Cause = 27
	CauseInvalidNumberFormat     Cause = 28
	CauseNormalUnspecified       Cause = 31
	CauseChannelUnavailable      Cause = 34
	CauseIdentifiedChannelNotExist Cause = 82
	CauseIncompatibleDestination Cause = 88
	CauseInvalidCallReference    Cause = 81
	CauseMandatoryIEMissing      Cause = 96
	CauseMsgTypeNonexistent      Cause = 97
	CauseMsgNotCompatWithState   Cause = 101
	CauseRecoveryOnTimerExpiry   Cause = 102
	CauseResponseToStatusEnquiry Cause = 30
)

// CauseInfo is the full cause IE content: coding standard, location and
// value, plus any diagnostic octets kept for debug only (spec.md §4.2).
type CauseInfo struct {
	CodingStandard uint8
	Location       uint8
	Value          Cause
	Diagnostics    []byte
}

// String renders "cause <value> (location <n>)".
func (c CauseInfo) String() string {
	return fmt.Sprintf("cause %d (location %d)", c.Value, c.Location)
}

// Q.931 cause locations, octet 3 low nibble.
const (
	LocUser               uint8 = 0
	LocPrivateLocal       uint8 = 1
	LocPublicLocal        uint8 = 2
	LocTransitNetwork     uint8 = 3
	LocPublicRemote       uint8 = 4
	LocPrivateRemote      uint8 = 5
	LocInternational      uint8 = 7
	LocNetworkBeyondInterworking uint8 = 10
)
