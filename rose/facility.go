package rose

import "fmt"

// ProtocolProfile identifies the facility IE's outer protocol, Q.932
// section 7.2. This engine decodes/emits ROSE and the DMS-100
// network-extension profile; CMIP and ACSE are rejected.
type ProtocolProfile uint8

const (
	ProfileRose        ProtocolProfile = 0x00
	ProfileCMIP         ProtocolProfile = 0x01
	ProfileACSE         ProtocolProfile = 0x02
	ProfileNetworkExtension ProtocolProfile = 0x03 // DMS-100 style
)

var ErrUnsupportedProfile = fmt.Errorf("rose: facility protocol profile not ROSE")

// Facility is the decoded content of a Q.931 FACILITY information
// element: zero or more ROSE components, plus the DMS-100/network
// extension header fields when ProtocolProfile is ProfileNetworkExtension.
type Facility struct {
	Profile ProtocolProfile

	// ServiceIndicator is only meaningful under ProfileNetworkExtension (DMS-100
	// supplementary-service signaling). See SPEC_FULL.md §4.7.
	ServiceIndicator uint8

	Components []Component
}

// DecodeFacility parses the FACILITY IE content. b follows Q.932 section
// 7.2: one length-prefixed "protocol profile" element, then a
// "Component" sequence whose members are the ROSE APDUs.
func DecodeFacility(b []byte) (Facility, error) {
	var f Facility
	t, rest, err := ReadTLV(b)
	if err != nil {
		return f, err
	}
	// protocol profile is conveyed as the tag/length octet pair of an
	// implicit-length context element in practice; profile 0 (ROSE)
	// and the network-extension profile, whose first content octet is
	// the service indicator, are accepted.
	f.Profile = ProtocolProfile(t.Tag)
	if f.Profile == ProfileNetworkExtension && len(t.Content) > 0 {
		f.ServiceIndicator = t.Content[0]
	}
	if f.Profile != ProfileRose && f.Profile != ProfileNetworkExtension {
		return f, ErrUnsupportedProfile
	}

	seq, _, err := ReadTLV(rest)
	if err != nil {
		// Some switches omit the outer SEQUENCE wrapper and place
		// components directly after the profile octet; fall back to
		// treating `rest` itself as the component list.
		seq = TLV{Content: rest}
	}
	remaining := seq.Content
	for len(remaining) > 0 {
		var comp TLV
		comp, remaining, err = ReadTLV(remaining)
		if err != nil {
			return f, err
		}
		c, err := DecodeComponent(comp)
		if err != nil {
			return f, err
		}
		f.Components = append(f.Components, c)
	}
	return f, nil
}

// AppendFacility serializes f into a FACILITY IE content buffer.
func AppendFacility(buf []byte, f Facility) []byte {
	profileContent := []byte(nil)
	if f.Profile == ProfileNetworkExtension {
		profileContent = []byte{f.ServiceIndicator}
	}
	buf = AppendTLV(buf, ClassUniversal, false, uint64(f.Profile), profileContent)

	var comps []byte
	for _, c := range f.Components {
		switch c.Kind {
		case KindInvoke:
			comps = AppendInvoke(comps, c.Invoke)
		case KindReturnResult:
			comps = AppendReturnResult(comps, c.ReturnResult, c.Invoke.OperationCode)
		case KindReturnError:
			comps = AppendReturnError(comps, c.ReturnError)
		case KindReject:
			comps = AppendReject(comps, c.Reject)
		}
	}
	return AppendSequence(buf, comps)
}
