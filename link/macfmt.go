package link

import "fmt"

// FormatMAC renders addr per format: unformatted is bare hex,
// unix-like is colon-separated lowercase hex, cisco-like is
// dotted-word hex, and ietf is dash-separated lowercase hex.
func FormatMAC(addr [6]byte, format MACFormat) string {
	switch format {
	case MACFormatUnixLike:
		return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x",
			addr[0], addr[1], addr[2], addr[3], addr[4], addr[5])
	case MACFormatCiscoLike:
		return fmt.Sprintf("%02x%02x.%02x%02x.%02x%02x",
			addr[0], addr[1], addr[2], addr[3], addr[4], addr[5])
	case MACFormatIETF:
		return fmt.Sprintf("%02x-%02x-%02x-%02x-%02x-%02x",
			addr[0], addr[1], addr[2], addr[3], addr[4], addr[5])
	default:
		return fmt.Sprintf("%02x%02x%02x%02x%02x%02x",
			addr[0], addr[1], addr[2], addr[3], addr[4], addr[5])
	}
}

// ParseMACFormat maps a configuration/CLI name to a MACFormat, for
// the "set mac-format" setter.
func ParseMACFormat(name string) (MACFormat, error) {
	switch name {
	case "unformatted":
		return MACFormatUnformatted, nil
	case "unix-like":
		return MACFormatUnixLike, nil
	case "cisco-like":
		return MACFormatCiscoLike, nil
	case "ietf":
		return MACFormatIETF, nil
	}
	return 0, fmt.Errorf("%w: unknown mac format %q", ErrConfigRejected, name)
}
