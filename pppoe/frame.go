package pppoe

import (
	"encoding/binary"
	"fmt"
)

// Frame represents a parsed PPPoE discovery frame: the Ethernet addresses
// it arrived with/for, plus the PPPoE discovery header and tag payload.
type Frame struct {
	SrcHWAddr [6]byte
	DstHWAddr [6]byte
	Code      Code
	SessionID SessionID
	Tags      []*Tag
}

// frameSpec describes the mandatory-tag requirements RFC2516 places on
// each discovery code, so that frames can be sanity-checked on receipt.
type frameSpec struct {
	zeroSessionID bool
	mandatoryTags []TagType
}

// ParseFrame parses a single raw Ethernet frame into a PPPoE discovery
// Frame.
//
// b is untrusted wire input. ParseFrame bounds every read against len(b):
// a frame shorter than the fixed Ethernet+PPPoE header is rejected
// outright, and tag iteration never reads past the header's own length
// field (see ParseTags). ParseFrame never panics on malformed input.
func ParseFrame(b []byte) (*Frame, error) {
	if len(b) < frameHeaderLength {
		return nil, fmt.Errorf("frame too short: %d bytes, need at least %d", len(b), frameHeaderLength)
	}

	var dst, src [6]byte
	copy(dst[:], b[0:6])
	copy(src[:], b[6:12])
	etherType := binary.BigEndian.Uint16(b[12:14])
	if etherType != EtherTypeDiscovery {
		return nil, fmt.Errorf("not a PPPoE discovery frame: ethertype 0x%04x", etherType)
	}

	code := Code(b[15])
	sessionID := SessionID(binary.BigEndian.Uint16(b[16:18]))
	length := int(binary.BigEndian.Uint16(b[18:20]))

	bodyEnd := frameHeaderLength + length
	if bodyEnd > len(b) {
		bodyEnd = len(b)
	}

	f := &Frame{
		SrcHWAddr: src,
		DstHWAddr: dst,
		Code:      code,
		SessionID: sessionID,
		Tags:      ParseTags(b[frameHeaderLength:bodyEnd]),
	}
	return f, nil
}

func frameSpecFor(f *Frame) (*frameSpec, error) {
	switch f.Code {
	case CodePADI:
		return &frameSpec{zeroSessionID: true, mandatoryTags: []TagType{TagTypeServiceName}}, nil
	case CodePADO:
		return &frameSpec{zeroSessionID: true, mandatoryTags: []TagType{TagTypeServiceName, TagTypeACName}}, nil
	case CodePADR:
		return &frameSpec{zeroSessionID: true, mandatoryTags: []TagType{TagTypeServiceName}}, nil
	case CodePADT:
		return &frameSpec{zeroSessionID: false}, nil
	case CodePADS:
		if f.SessionID == 0 {
			return &frameSpec{zeroSessionID: true, mandatoryTags: []TagType{TagTypeServiceNameError}}, nil
		}
		return &frameSpec{zeroSessionID: false, mandatoryTags: []TagType{TagTypeServiceName}}, nil
	}
	return nil, fmt.Errorf("unrecognised PPPoE code %v", f.Code)
}

// Validate checks that a Frame meets RFC2516's requirements for its
// code: the session ID zero/nonzero rule, and the presence of mandatory
// tags.
func (f *Frame) Validate() error {
	spec, err := frameSpecFor(f)
	if err != nil {
		return err
	}

	if spec.zeroSessionID && f.SessionID != 0 {
		return fmt.Errorf("nonzero session ID in %v; must be zero", f.Code)
	}
	if !spec.zeroSessionID && f.SessionID == 0 {
		return fmt.Errorf("zero session ID in %v; must be nonzero", f.Code)
	}

	for _, want := range spec.mandatoryTags {
		if _, ok := FindTag(f.Tags, want); !ok {
			return fmt.Errorf("missing mandatory tag %v in %v", want, f.Code)
		}
	}
	return nil
}

// ServiceName returns the payload of the frame's Service-Name tag, and
// whether it was present.
func (f *Frame) ServiceName() (string, bool) {
	t, ok := FindTag(f.Tags, TagTypeServiceName)
	if !ok {
		return "", false
	}
	return string(t.Data), true
}

// Bytes encodes the frame back to its raw wire representation: a full
// Ethernet frame carrying a PPPoE discovery header and tag payload.
// Tests use it to construct synthetic discovery frames; rawChannel
// uses it to build every PADO/PADR/PADS/PADI/PADT it writes to the
// wire. It is not exercised on the hot incoming path, where the
// original received bytes are replayed verbatim rather than
// re-encoded.
func (f *Frame) Bytes() []byte {
	tagBytes := TagsBytes(f.Tags)

	out := make([]byte, frameHeaderLength+len(tagBytes))
	copy(out[0:6], f.DstHWAddr[:])
	copy(out[6:12], f.SrcHWAddr[:])
	binary.BigEndian.PutUint16(out[12:14], EtherTypeDiscovery)
	out[14] = 0x11 // VER=1, TYPE=1
	out[15] = byte(f.Code)
	binary.BigEndian.PutUint16(out[16:18], uint16(f.SessionID))
	binary.BigEndian.PutUint16(out[18:20], uint16(len(tagBytes)))
	copy(out[frameHeaderLength:], tagBytes)
	return out
}
