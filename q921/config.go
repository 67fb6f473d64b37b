// Package q921 provides the OSI data-link layer for ISDN D-channel
// signaling: LAPD framing and the multi-frame acknowledged-information
// procedures of ITU-T Q.920/Q.921. TEI assignment on SAPILayer2Mgmt is
// not implemented.
package q921

import "time"

// Config defines a Q.921 data-link configuration. The default is applied
// for each unspecified value, mirroring the teacher's TCPConfig.check()
// idiom.
type Config struct {
	// N200 bounds the retransmission count for an unacknowledged command
	// before the link is judged to have failed. Q.921 recommends 3.
	N200 uint

	// N201 bounds the number of octets an I-frame information field may
	// carry. Q.921 recommends 260.
	N201 uint

	// T200 is the retransmission timer for an unacknowledged supervisory
	// or unnumbered command, recommended at 1 second.
	T200 time.Duration

	// T202 bounds the minimum time between TEI-identity-request
	// retransmissions, recommended at 2 seconds.
	T202 time.Duration

	// T203 is the maximum idle time before a link in multi-frame
	// established state must probe with an RR, recommended at 10 seconds.
	T203 time.Duration

	// N202 bounds the retransmission count for a TEI-identity-request.
	N202 uint

	// Network selects network-side (true) or user-side procedures and
	// sets the C/R bit of the commands this end sends. Neither side
	// assigns or requests TEIs. See spec.md §2 "Link establishment".
	Network bool

	// PointToMultipoint marks a point-to-multipoint bus: the Controller's
	// own Link uses BroadcastTEI instead of the fixed TEI 0 of
	// point-to-point PRI links. No automatic TEI assignment is performed.
	PointToMultipoint bool
}

// check applies the default for each unspecified value. A panic is raised
// for values out of range, matching the teacher's TCPConfig.check.
func (c *Config) check() *Config {
	if c.N200 == 0 {
		c.N200 = 3
	} else if c.N200 > 10 {
		panic(`q921: N200 not in [1, 10]`)
	}

	if c.N201 == 0 {
		c.N201 = 260
	}

	if c.T200 == 0 {
		c.T200 = 1 * time.Second
	} else if c.T200 < 100*time.Millisecond || c.T200 > 10*time.Second {
		panic(`q921: T200 not in [100ms, 10s]`)
	}

	if c.T202 == 0 {
		c.T202 = 2 * time.Second
	}

	if c.T203 == 0 {
		c.T203 = 10 * time.Second
	} else if c.T203 <= c.T200 {
		panic(`q921: T203 must exceed T200`)
	}

	if c.N202 == 0 {
		c.N202 = 3
	}

	return c
}

// BroadcastTEI is the group TEI value used for point-to-multipoint
// broadcast (SETUP fan-out) and for the TEI-management entity itself.
const BroadcastTEI uint8 = 127

// DummyTEI is used on links that carry only the dummy call reference
// (e.g. QSIG FACILITY-only interfaces).
const DummyTEI uint8 = 0
