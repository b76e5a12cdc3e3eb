package pppoe

import "testing"

func newDiscoveryFrame(code Code, sessionID SessionID, tags []*Tag) *Frame {
	return &Frame{
		SrcHWAddr: [6]byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		DstHWAddr: [6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		Code:      code,
		SessionID: sessionID,
		Tags:      tags,
	}
}

func TestParseFrameRoundTrip(t *testing.T) {
	f := newDiscoveryFrame(CodePADI, 0, []*Tag{NewStringTag(TagTypeServiceName, "isp")})
	raw := f.Bytes()

	got, err := ParseFrame(raw)
	if err != nil {
		t.Fatalf("ParseFrame failed: %v", err)
	}
	if got.Code != CodePADI || got.SessionID != 0 {
		t.Fatalf("unexpected header: %+v", got)
	}
	name, ok := got.ServiceName()
	if !ok || name != "isp" {
		t.Fatalf("got service name (%q, %v), want (\"isp\", true)", name, ok)
	}
	if err := got.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestParseFrameTooShort(t *testing.T) {
	if _, err := ParseFrame(make([]byte, 10)); err == nil {
		t.Fatalf("expected error for a truncated frame")
	}
}

func TestParseFrameZeroLength(t *testing.T) {
	f := newDiscoveryFrame(CodePADT, 42, nil)
	raw := f.Bytes()

	got, err := ParseFrame(raw)
	if err != nil {
		t.Fatalf("ParseFrame failed: %v", err)
	}
	if len(got.Tags) != 0 {
		t.Fatalf("got %d tags, want 0", len(got.Tags))
	}
}

func TestParseFrameMalformedTagLength(t *testing.T) {
	f := newDiscoveryFrame(CodePADI, 0, []*Tag{NewStringTag(TagTypeServiceName, "isp")})
	raw := f.Bytes()

	// Corrupt the PPPoE length field to claim a length of only 4 bytes,
	// i.e. enough for one tag header but none of the tag's actual data.
	raw[18] = 0
	raw[19] = 4

	got, err := ParseFrame(raw)
	if err != nil {
		t.Fatalf("ParseFrame failed: %v", err)
	}
	if len(got.Tags) != 0 {
		t.Fatalf("got %d tags from malformed length, want 0", len(got.Tags))
	}
	name, ok := got.ServiceName()
	if ok || name != "" {
		t.Fatalf("expected no service name from malformed frame, got (%q, %v)", name, ok)
	}
}

func TestValidateRejectsMissingMandatoryTag(t *testing.T) {
	f := newDiscoveryFrame(CodePADI, 0, nil)
	if err := f.Validate(); err == nil {
		t.Fatalf("expected validation error for PADI missing Service-Name")
	}
}

func TestValidateRejectsWrongSessionIDPolarity(t *testing.T) {
	f := newDiscoveryFrame(CodePADI, 7, []*Tag{NewStringTag(TagTypeServiceName, "isp")})
	if err := f.Validate(); err == nil {
		t.Fatalf("expected validation error for nonzero session ID in PADI")
	}

	f2 := newDiscoveryFrame(CodePADT, 0, nil)
	if err := f2.Validate(); err == nil {
		t.Fatalf("expected validation error for zero session ID in PADT")
	}
}

func TestValidatePADSErrorPath(t *testing.T) {
	f := newDiscoveryFrame(CodePADS, 0, []*Tag{NewStringTag(TagTypeServiceNameError, "no such service")})
	if err := f.Validate(); err != nil {
		t.Fatalf("expected the zero-session-ID PADS error path to validate: %v", err)
	}
}
