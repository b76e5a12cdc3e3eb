package pppoe

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Tag represents one TLV tag carried in the data payload of a PPPoE
// discovery packet.
type Tag struct {
	Type TagType
	Data []byte
}

// SubTag represents a single sub-TLV nested inside a BBF vendor-specific
// tag's payload, e.g. Agent-Circuit-ID or Agent-Remote-ID.
type SubTag struct {
	Type uint8
	Data []byte
}

// String renders a human-readable Tag.
func (tag *Tag) String() string {
	switch tag.Type {
	case TagTypeServiceName,
		TagTypeACName,
		TagTypeServiceNameError,
		TagTypeACSystemError,
		TagTypeGenericError,
		TagTypeHURL,
		TagTypeMOTM:
		return fmt.Sprintf("%v: %q", tag.Type, string(tag.Data))
	}
	return fmt.Sprintf("%v: %#v", tag.Type, tag.Data)
}

// ParseTags iterates the tag TLVs in body, which must already be bounded
// to the PPPoE header's length field by the caller (see ParseFrame).
//
// Iteration stops silently, without error, at the first malformed entry:
// an incomplete tag header, or a tag_len that would read past the end of
// body. This is deliberate: body is untrusted wire input, and a
// truncated or adversarial tail must never prevent the tags parsed so
// far from being used, nor cause a panic or an out-of-bounds read.
func ParseTags(body []byte) (tags []*Tag) {
	pos := 0
	for pos+tagHeaderLength <= len(body) {
		typ := TagType(binary.BigEndian.Uint16(body[pos : pos+2]))
		length := int(binary.BigEndian.Uint16(body[pos+2 : pos+4]))
		valueStart := pos + tagHeaderLength
		valueEnd := valueStart + length
		if valueEnd > len(body) {
			break
		}
		tags = append(tags, &Tag{Type: typ, Data: body[valueStart:valueEnd]})
		pos = valueEnd
	}
	return tags
}

// FindTag returns the first tag of the given type, if present.
func FindTag(tags []*Tag, typ TagType) (tag *Tag, ok bool) {
	for _, t := range tags {
		if t.Type == typ {
			return t, true
		}
	}
	return nil, false
}

// FindVendorTag returns the payload of the first Vendor-Specific tag
// whose leading 4-byte vendor ID (network byte order) matches vendorID,
// with those 4 bytes stripped off. A Vendor-Specific tag shorter than 4
// bytes is skipped, never treated as a match.
func FindVendorTag(tags []*Tag, vendorID uint32) (payload []byte, ok bool) {
	for _, t := range tags {
		if t.Type != TagTypeVendorSpecific || len(t.Data) < vendorIDLength {
			continue
		}
		if binary.BigEndian.Uint32(t.Data[:vendorIDLength]) == vendorID {
			return t.Data[vendorIDLength:], true
		}
	}
	return nil, false
}

// ParseBBFSubTags walks a BBF (TR-101) vendor tag payload - the bytes
// following the 4-byte vendor ID - as a stream of (sub_tag: u8, sub_len:
// u8, sub_value[sub_len]) entries.
//
// As with ParseTags, iteration stops silently on the first malformed
// sub-entry rather than trusting sub_len. The original C implementation
// this is descended from has an off-by-one defect in this exact walk
// (comparing sub_len against "remaining - 2" instead of against the
// actual bytes left); this bounds check is written fresh against
// len(payload) directly and does not reproduce that defect.
func ParseBBFSubTags(payload []byte) (subTags []*SubTag) {
	pos := 0
	for pos+subTagHeaderLength <= len(payload) {
		typ := payload[pos]
		length := int(payload[pos+1])
		valueStart := pos + subTagHeaderLength
		valueEnd := valueStart + length
		if valueEnd > len(payload) {
			break
		}
		subTags = append(subTags, &SubTag{Type: typ, Data: payload[valueStart:valueEnd]})
		pos = valueEnd
	}
	return subTags
}

// truncate returns b, or a copy of its first max bytes if b is longer.
func truncate(b []byte, max int) []byte {
	if len(b) <= max {
		return b
	}
	out := make([]byte, max)
	copy(out, b[:max])
	return out
}

// AgentIDs extracts the Agent-Circuit-ID and Agent-Remote-ID sub-tags
// from a BBF vendor-specific tag found among tags, if any. Values are
// truncated to MaxAgentIDLength bytes. Either or both return values may
// be nil if the corresponding sub-tag, or the vendor tag itself, is
// absent.
func AgentIDs(tags []*Tag) (circuitID, remoteID []byte) {
	payload, ok := FindVendorTag(tags, VendorIDBBF)
	if !ok {
		return nil, nil
	}
	for _, st := range ParseBBFSubTags(payload) {
		switch st.Type {
		case SubTagAgentCircuitID:
			circuitID = truncate(st.Data, MaxAgentIDLength)
		case SubTagAgentRemoteID:
			remoteID = truncate(st.Data, MaxAgentIDLength)
		}
	}
	return
}

// Bytes encodes a single tag to its wire representation.
func (tag *Tag) Bytes() []byte {
	out := make([]byte, tagHeaderLength+len(tag.Data))
	binary.BigEndian.PutUint16(out[0:2], uint16(tag.Type))
	binary.BigEndian.PutUint16(out[2:4], uint16(len(tag.Data)))
	copy(out[tagHeaderLength:], tag.Data)
	return out
}

// TagsBytes encodes a slice of tags to their concatenated wire
// representation, suitable as the payload of an outgoing discovery
// frame or control message.
func TagsBytes(tags []*Tag) []byte {
	buf := new(bytes.Buffer)
	for _, t := range tags {
		buf.Write(t.Bytes())
	}
	return buf.Bytes()
}

// NewTag builds a Tag of the given type from an arbitrary byte payload.
func NewTag(typ TagType, data []byte) *Tag {
	return &Tag{Type: typ, Data: data}
}

// NewStringTag builds a Tag whose payload is the UTF-8 bytes of s, for
// the string-valued tag types (Service-Name, AC-Name, the *-Error tags).
func NewStringTag(typ TagType, s string) *Tag {
	return &Tag{Type: typ, Data: []byte(s)}
}

// NewMaxPayloadTag builds the RFC4638 PPP-Max-Payload tag.
func NewMaxPayloadTag(maxPayload uint16) *Tag {
	data := make([]byte, 2)
	binary.BigEndian.PutUint16(data, maxPayload)
	return &Tag{Type: TagTypeMaxPayload, Data: data}
}

// MaxPayloadValue extracts the 16-bit value of a PPP-Max-Payload tag.
// ok is false if the tag is missing or malformed (not exactly 2 bytes).
func MaxPayloadValue(tags []*Tag) (value uint16, ok bool) {
	t, found := FindTag(tags, TagTypeMaxPayload)
	if !found || len(t.Data) != 2 {
		return 0, false
	}
	return binary.BigEndian.Uint16(t.Data), true
}
