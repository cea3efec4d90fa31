package dhcpv4

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
	"unicode/utf8"
)

// DecodeIPv4 interprets the first 4 bytes of b (network order) as an IPv4 address.
func DecodeIPv4(b []byte) (net.IP, error) {
	if len(b) < net.IPv4len {
		return nil, fmt.Errorf("IPv4 address needs 4 bytes, got %d: %w", len(b), ErrMalformedField)
	}
	return net.IPv4(b[0], b[1], b[2], b[3]), nil
}

// EncodeIPv4 converts ip to its 4-byte wire form. A nil or non-IPv4 address
// encodes as 0.0.0.0.
func EncodeIPv4(ip net.IP) []byte {
	ip4 := ip.To4()
	if ip4 == nil {
		return []byte{0, 0, 0, 0}
	}
	out := make([]byte, net.IPv4len)
	copy(out, ip4)
	return out
}

// PadTo right-pads b with filler until it is at least length bytes long.
// It never truncates; the returned slice does not alias b.
func PadTo(b []byte, length int, filler byte) []byte {
	n := len(b)
	if length > n {
		n = length
	}
	out := make([]byte, n)
	copy(out, b)
	for i := len(b); i < n; i++ {
		out[i] = filler
	}
	return out
}

// TruncateTo returns at most the first length bytes of b. It never pads.
func TruncateTo(b []byte, length int) []byte {
	if len(b) <= length {
		return b
	}
	return b[:length]
}

// FitTo truncates then zero-pads b to exactly length bytes.
func FitTo(b []byte, length int) []byte {
	return PadTo(TruncateTo(b, length), length, 0)
}

// TruncateText returns the UTF-8 bytes of s cut to the last whole rune that
// fits in length bytes.
func TruncateText(s string, length int) []byte {
	b := []byte(s)
	if len(b) <= length {
		return b
	}
	cut := length
	for cut > 0 && !utf8.RuneStart(b[cut]) {
		cut--
	}
	return b[:cut]
}

// DecodeText strips trailing NUL bytes and checks the rest is valid UTF-8.
func DecodeText(b []byte) (string, error) {
	b = bytes.TrimRight(b, "\x00")
	if !utf8.Valid(b) {
		return "", fmt.Errorf("text is not valid UTF-8: %w", ErrMalformedField)
	}
	return string(b), nil
}

// IPListToBytes converts a slice of net.IP to bytes (N*4).
func IPListToBytes(ips []net.IP) []byte {
	buf := make([]byte, 0, len(ips)*net.IPv4len)
	for _, ip := range ips {
		buf = append(buf, EncodeIPv4(ip)...)
	}
	return buf
}

// BytesToIPList converts bytes to a slice of net.IP (N*4).
func BytesToIPList(b []byte) ([]net.IP, error) {
	if len(b)%net.IPv4len != 0 {
		return nil, fmt.Errorf("IP list length %d is not a multiple of 4: %w", len(b), ErrMalformedField)
	}
	ips := make([]net.IP, 0, len(b)/net.IPv4len)
	for i := 0; i < len(b); i += net.IPv4len {
		ip, _ := DecodeIPv4(b[i : i+net.IPv4len])
		ips = append(ips, ip)
	}
	return ips, nil
}

// Uint32ToBytes converts a uint32 to 4 bytes (big-endian).
func Uint32ToBytes(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

// DecodeUint32 reads a big-endian unsigned integer of 1 to 4 bytes.
// Short encodings show up in the wild for fields such as the maximum
// message size, so they are widened rather than rejected.
func DecodeUint32(b []byte) (uint32, error) {
	if len(b) == 0 || len(b) > 4 {
		return 0, fmt.Errorf("integer needs 1-4 bytes, got %d: %w", len(b), ErrMalformedField)
	}
	var v uint32
	for _, c := range b {
		v = v<<8 | uint32(c)
	}
	return v, nil
}

// CIDRRoute represents a classless static route (RFC 3442).
type CIDRRoute struct {
	Destination net.IP
	PrefixLen   int
	Gateway     net.IP
}

func (r CIDRRoute) String() string {
	return fmt.Sprintf("%s/%d via %s", r.Destination, r.PrefixLen, r.Gateway)
}

// Equal reports whether two routes describe the same destination and gateway.
func (r CIDRRoute) Equal(o CIDRRoute) bool {
	return r.PrefixLen == o.PrefixLen && r.Destination.Equal(o.Destination) && r.Gateway.Equal(o.Gateway)
}

// CIDRRoutesToBytes encodes classless static routes per RFC 3442.
// Each route is (prefix_len, significant_octets_of_subnet, gateway).
func CIDRRoutesToBytes(routes []CIDRRoute) ([]byte, error) {
	var buf []byte
	for _, r := range routes {
		if r.PrefixLen < 0 || r.PrefixLen > 32 {
			return nil, fmt.Errorf("invalid CIDR prefix length %d: %w", r.PrefixLen, ErrMalformedField)
		}
		subnet := r.Destination.To4()
		if subnet == nil {
			return nil, fmt.Errorf("route destination %s is not IPv4: %w", r.Destination, ErrMalformedField)
		}
		sigOctets := (r.PrefixLen + 7) / 8
		buf = append(buf, byte(r.PrefixLen))
		buf = append(buf, subnet[:sigOctets]...)
		buf = append(buf, EncodeIPv4(r.Gateway)...)
	}
	return buf, nil
}

// BytesToCIDRRoutes decodes classless static routes per RFC 3442.
func BytesToCIDRRoutes(b []byte) ([]CIDRRoute, error) {
	var routes []CIDRRoute
	i := 0
	for i < len(b) {
		prefixLen := int(b[i])
		i++
		if prefixLen > 32 {
			return nil, fmt.Errorf("invalid CIDR prefix length %d at offset %d: %w", prefixLen, i-1, ErrMalformedField)
		}
		sigOctets := (prefixLen + 7) / 8
		if i+sigOctets+4 > len(b) {
			return nil, fmt.Errorf("truncated CIDR route at offset %d: %w", i, ErrMalformedField)
		}
		dest := make([]byte, 4)
		copy(dest, b[i:i+sigOctets])
		i += sigOctets
		gateway, _ := DecodeIPv4(b[i : i+4])
		i += 4

		mask := net.CIDRMask(prefixLen, 32)
		routes = append(routes, CIDRRoute{
			Destination: net.IP(dest).Mask(mask),
			PrefixLen:   prefixLen,
			Gateway:     gateway,
		})
	}
	return routes, nil
}
