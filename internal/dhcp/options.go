package dhcp

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math/big"
	"net"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/miekg/dns"

	"github.com/dhcpy/dhcpy/pkg/dhcpv4"
)

// Option is one DHCP option. Payload returns the value bytes only; the code
// and length prefix is added uniformly by EncodeOptions.
//
// The set of implementations is closed: Address, AddressList, Uint32, Text,
// VendorClass, MessageType, ParameterRequestList, ClientIdentifier, UserClass,
// ClientFQDN, RelayAgentInfo, ClasslessStaticRoutes, Pad, End and Raw.
type Option interface {
	Code() dhcpv4.OptionCode
	Payload() ([]byte, error)
	String() string
}

// Address carries a single IPv4 address (RFC 2132 §3.3, §9.1, §9.7).
type Address struct {
	OptionCode dhcpv4.OptionCode
	IP         net.IP
}

func (o Address) Code() dhcpv4.OptionCode { return o.OptionCode }

func (o Address) Payload() ([]byte, error) {
	if o.IP != nil && o.IP.To4() == nil {
		return nil, fmt.Errorf("address %s is not IPv4: %w", o.IP, dhcpv4.ErrMalformedField)
	}
	return dhcpv4.EncodeIPv4(o.IP), nil
}

func (o Address) String() string { return o.IP.String() }

func decodeAddress(code dhcpv4.OptionCode) OptionDecoder {
	return func(data []byte) (Option, error) {
		if len(data) != net.IPv4len {
			return nil, fmt.Errorf("expected 4 bytes for an address, got %d: %w", len(data), dhcpv4.ErrMalformedField)
		}
		ip, err := dhcpv4.DecodeIPv4(data)
		if err != nil {
			return nil, err
		}
		return Address{OptionCode: code, IP: ip}, nil
	}
}

// AddressList carries a sequence of IPv4 addresses (routers, servers).
type AddressList struct {
	OptionCode dhcpv4.OptionCode
	IPs        []net.IP
}

func (o AddressList) Code() dhcpv4.OptionCode { return o.OptionCode }

func (o AddressList) Payload() ([]byte, error) {
	for _, ip := range o.IPs {
		if ip.To4() == nil {
			return nil, fmt.Errorf("address %s is not IPv4: %w", ip, dhcpv4.ErrMalformedField)
		}
	}
	return dhcpv4.IPListToBytes(o.IPs), nil
}

func (o AddressList) String() string {
	parts := make([]string, len(o.IPs))
	for i, ip := range o.IPs {
		parts[i] = ip.String()
	}
	return strings.Join(parts, ", ")
}

func decodeAddressList(code dhcpv4.OptionCode) OptionDecoder {
	return func(data []byte) (Option, error) {
		ips, err := dhcpv4.BytesToIPList(data)
		if err != nil {
			return nil, err
		}
		return AddressList{OptionCode: code, IPs: ips}, nil
	}
}

// Uint32 carries a 32-bit unsigned integer (times, sizes, offsets).
type Uint32 struct {
	OptionCode dhcpv4.OptionCode
	Value      uint32
}

func (o Uint32) Code() dhcpv4.OptionCode  { return o.OptionCode }
func (o Uint32) Payload() ([]byte, error) { return dhcpv4.Uint32ToBytes(o.Value), nil }
func (o Uint32) String() string           { return strconv.FormatUint(uint64(o.Value), 10) }

func decodeUint32(code dhcpv4.OptionCode) OptionDecoder {
	return func(data []byte) (Option, error) {
		v, err := dhcpv4.DecodeUint32(data)
		if err != nil {
			return nil, err
		}
		return Uint32{OptionCode: code, Value: v}, nil
	}
}

// VendorClass is option 60. Values of 1-4 bytes are a big-endian integer,
// normalized to 4 bytes; longer payloads, such as "MSFT 5.0" or
// "android-dhcp-13", are kept verbatim.
type VendorClass struct {
	Data []byte
}

func (o VendorClass) Code() dhcpv4.OptionCode { return dhcpv4.OptionVendorClassID }

func (o VendorClass) Payload() ([]byte, error) {
	if v, ok := o.Uint32(); ok {
		return dhcpv4.Uint32ToBytes(v), nil
	}
	if len(o.Data) == 0 {
		return nil, fmt.Errorf("empty vendor class: %w", dhcpv4.ErrMalformedField)
	}
	return o.Data, nil
}

// Uint32 returns the integer value when the payload is at most 4 bytes.
func (o VendorClass) Uint32() (uint32, bool) {
	if len(o.Data) == 0 || len(o.Data) > 4 {
		return 0, false
	}
	v, err := dhcpv4.DecodeUint32(o.Data)
	return v, err == nil
}

// Text returns the payload as text when it is longer than 4 bytes and
// printable, and "" otherwise.
func (o VendorClass) Text() string {
	if len(o.Data) <= 4 || !utf8.Valid(o.Data) {
		return ""
	}
	for _, r := range string(o.Data) {
		if !strconv.IsPrint(r) {
			return ""
		}
	}
	return string(o.Data)
}

func (o VendorClass) String() string {
	if v, ok := o.Uint32(); ok {
		return strconv.FormatUint(uint64(v), 10)
	}
	if t := o.Text(); t != "" {
		return t
	}
	return hex.EncodeToString(o.Data)
}

func decodeVendorClass(data []byte) (Option, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty vendor class: %w", dhcpv4.ErrMalformedField)
	}
	if len(data) <= 4 {
		v, err := dhcpv4.DecodeUint32(data)
		if err != nil {
			return nil, err
		}
		return VendorClass{Data: dhcpv4.Uint32ToBytes(v)}, nil
	}
	return VendorClass{Data: append([]byte(nil), data...)}, nil
}

// Text carries UTF-8 text without a trailing NUL.
type Text struct {
	OptionCode dhcpv4.OptionCode
	Value      string
}

func (o Text) Code() dhcpv4.OptionCode  { return o.OptionCode }
func (o Text) Payload() ([]byte, error) { return []byte(o.Value), nil }
func (o Text) String() string           { return o.Value }

func decodeText(code dhcpv4.OptionCode) OptionDecoder {
	return func(data []byte) (Option, error) {
		s, err := dhcpv4.DecodeText(data)
		if err != nil {
			return nil, err
		}
		return Text{OptionCode: code, Value: s}, nil
	}
}

// MessageType is the DHCP message type option (53).
type MessageType struct {
	Type dhcpv4.MessageType
}

func (o MessageType) Code() dhcpv4.OptionCode { return dhcpv4.OptionDHCPMessageType }

func (o MessageType) Payload() ([]byte, error) {
	if !o.Type.Valid() {
		return nil, fmt.Errorf("invalid message type %d: %w", o.Type, dhcpv4.ErrMalformedField)
	}
	return []byte{byte(o.Type)}, nil
}

func (o MessageType) String() string { return o.Type.String() }

func decodeMessageType(data []byte) (Option, error) {
	if len(data) != 1 {
		return nil, fmt.Errorf("expected 1 byte for message type, got %d: %w", len(data), dhcpv4.ErrMalformedField)
	}
	mt := dhcpv4.MessageType(data[0])
	if !mt.Valid() {
		return nil, fmt.Errorf("invalid message type %d: %w", data[0], dhcpv4.ErrMalformedField)
	}
	return MessageType{Type: mt}, nil
}

// ParameterRequestList is the list of option codes a client asks for (55).
type ParameterRequestList struct {
	Codes []dhcpv4.OptionCode
}

func (o ParameterRequestList) Code() dhcpv4.OptionCode { return dhcpv4.OptionParameterRequestList }

func (o ParameterRequestList) Payload() ([]byte, error) {
	b := make([]byte, len(o.Codes))
	for i, c := range o.Codes {
		b[i] = byte(c)
	}
	return b, nil
}

func (o ParameterRequestList) String() string {
	parts := make([]string, len(o.Codes))
	for i, c := range o.Codes {
		parts[i] = strconv.Itoa(int(c))
	}
	return strings.Join(parts, ", ")
}

func decodeParameterRequestList(data []byte) (Option, error) {
	codes := make([]dhcpv4.OptionCode, len(data))
	for i, b := range data {
		codes[i] = dhcpv4.OptionCode(b)
	}
	return ParameterRequestList{Codes: codes}, nil
}

// ClientIdentifier is option 61: a type byte followed by a big-endian
// unsigned identifier. Encoding uses the fewest bytes that hold Identifier,
// so leading zero bytes do not survive a round trip.
type ClientIdentifier struct {
	HardwareType byte
	Identifier   *big.Int
}

func (o ClientIdentifier) Code() dhcpv4.OptionCode { return dhcpv4.OptionClientIdentifier }

func (o ClientIdentifier) Payload() ([]byte, error) {
	if o.Identifier != nil && o.Identifier.Sign() < 0 {
		return nil, fmt.Errorf("negative client identifier: %w", dhcpv4.ErrMalformedField)
	}
	return append([]byte{o.HardwareType}, o.IdentifierBytes()...), nil
}

// IdentifierBytes returns the minimal big-endian encoding of Identifier.
func (o ClientIdentifier) IdentifierBytes() []byte {
	if o.Identifier == nil {
		return nil
	}
	return o.Identifier.Bytes()
}

func (o ClientIdentifier) String() string {
	return fmt.Sprintf("type=%d id=%x", o.HardwareType, o.IdentifierBytes())
}

// Equal compares the type byte and the identifier value.
func (o ClientIdentifier) Equal(other ClientIdentifier) bool {
	if o.HardwareType != other.HardwareType {
		return false
	}
	a, b := o.Identifier, other.Identifier
	if a == nil {
		a = new(big.Int)
	}
	if b == nil {
		b = new(big.Int)
	}
	return a.Cmp(b) == 0
}

func decodeClientIdentifier(data []byte) (Option, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("client identifier needs a type byte: %w", dhcpv4.ErrMalformedField)
	}
	return ClientIdentifier{
		HardwareType: data[0],
		Identifier:   new(big.Int).SetBytes(data[1:]),
	}, nil
}

// UserClass is option 77 (RFC 3004): a run of length-prefixed strings.
type UserClass struct {
	Classes []string
}

func (o UserClass) Code() dhcpv4.OptionCode { return dhcpv4.OptionUserClass }

func (o UserClass) Payload() ([]byte, error) {
	var b []byte
	for _, c := range o.Classes {
		if len(c) > dhcpv4.MaxOptionLength {
			return nil, fmt.Errorf("user class of %d bytes exceeds %d: %w", len(c), dhcpv4.MaxOptionLength, dhcpv4.ErrMalformedField)
		}
		b = append(b, byte(len(c)))
		b = append(b, c...)
	}
	return b, nil
}

func (o UserClass) String() string { return strings.Join(o.Classes, ", ") }

func decodeUserClass(data []byte) (Option, error) {
	var classes []string
	for i := 0; i < len(data); {
		n := int(data[i])
		i++
		if i+n > len(data) {
			return nil, fmt.Errorf("user class declares %d bytes, %d remain: %w", n, len(data)-i, dhcpv4.ErrMalformedField)
		}
		c := data[i : i+n]
		if !utf8.Valid(c) {
			return nil, fmt.Errorf("user class is not valid UTF-8: %w", dhcpv4.ErrMalformedField)
		}
		classes = append(classes, string(c))
		i += n
	}
	return UserClass{Classes: classes}, nil
}

// Client FQDN flag bits (RFC 4702 §2.1).
const (
	FQDNFlagServerUpdate byte = 0x01 // S
	FQDNFlagOverride     byte = 0x02 // O
	FQDNFlagEncoded      byte = 0x04 // E: name uses DNS wire format
	FQDNFlagNoUpdate     byte = 0x08 // N
)

// ClientFQDN is option 81 (RFC 4702).
type ClientFQDN struct {
	Flags  byte
	RCode1 byte
	RCode2 byte
	Name   string
}

func (o ClientFQDN) Code() dhcpv4.OptionCode { return dhcpv4.OptionClientFQDN }

func (o ClientFQDN) Payload() ([]byte, error) {
	b := []byte{o.Flags, o.RCode1, o.RCode2}
	if o.Name == "" {
		return b, nil
	}
	if o.Flags&FQDNFlagEncoded == 0 {
		return append(b, o.Name...), nil
	}
	name := make([]byte, dhcpv4.MaxOptionLength+1)
	off, err := dns.PackDomainName(dns.Fqdn(o.Name), name, 0, nil, false)
	if err != nil {
		return nil, fmt.Errorf("packing FQDN %q: %v: %w", o.Name, err, dhcpv4.ErrMalformedField)
	}
	return append(b, name[:off]...), nil
}

func (o ClientFQDN) String() string {
	return fmt.Sprintf("flags=0x%02x name=%s", o.Flags, o.Name)
}

func decodeClientFQDN(data []byte) (Option, error) {
	if len(data) < 3 {
		return nil, fmt.Errorf("client FQDN needs 3 header bytes, got %d: %w", len(data), dhcpv4.ErrMalformedField)
	}
	o := ClientFQDN{Flags: data[0], RCode1: data[1], RCode2: data[2]}
	rest := data[3:]
	switch {
	case len(rest) == 0:
	case o.Flags&FQDNFlagEncoded != 0:
		name, _, err := dns.UnpackDomainName(rest, 0)
		if err != nil {
			return nil, fmt.Errorf("unpacking FQDN: %v: %w", err, dhcpv4.ErrMalformedField)
		}
		o.Name = name
	default:
		s, err := dhcpv4.DecodeText(rest)
		if err != nil {
			return nil, err
		}
		o.Name = s
	}
	return o, nil
}

// ClasslessStaticRoutes is option 121 (RFC 3442).
type ClasslessStaticRoutes struct {
	Routes []dhcpv4.CIDRRoute
}

func (o ClasslessStaticRoutes) Code() dhcpv4.OptionCode { return dhcpv4.OptionClasslessStaticRoute }

func (o ClasslessStaticRoutes) Payload() ([]byte, error) {
	return dhcpv4.CIDRRoutesToBytes(o.Routes)
}

func (o ClasslessStaticRoutes) String() string {
	parts := make([]string, len(o.Routes))
	for i, r := range o.Routes {
		parts[i] = r.String()
	}
	return strings.Join(parts, ", ")
}

func decodeClasslessStaticRoutes(data []byte) (Option, error) {
	routes, err := dhcpv4.BytesToCIDRRoutes(data)
	if err != nil {
		return nil, err
	}
	return ClasslessStaticRoutes{Routes: routes}, nil
}

// Pad is the single-byte filler option (RFC 2132 §3.1).
type Pad struct{}

func (Pad) Code() dhcpv4.OptionCode  { return dhcpv4.OptionPad }
func (Pad) Payload() ([]byte, error) { return nil, nil }
func (Pad) String() string           { return "pad" }

// End terminates the option stream (RFC 2132 §3.2).
type End struct{}

func (End) Code() dhcpv4.OptionCode  { return dhcpv4.OptionEnd }
func (End) Payload() ([]byte, error) { return nil, nil }
func (End) String() string           { return "end" }

// Raw carries an option payload with no registered interpretation.
type Raw struct {
	OptionCode dhcpv4.OptionCode
	Data       []byte
}

func (o Raw) Code() dhcpv4.OptionCode  { return o.OptionCode }
func (o Raw) Payload() ([]byte, error) { return o.Data, nil }
func (o Raw) String() string           { return hex.EncodeToString(o.Data) }

// Equal compares code and payload bytes.
func (o Raw) Equal(other Raw) bool {
	return o.OptionCode == other.OptionCode && bytes.Equal(o.Data, other.Data)
}

// Option constructors, named after the RFC 2132 fields they build.

func OptSubnetMask(mask net.IP) Option         { return Address{dhcpv4.OptionSubnetMask, mask} }
func OptTimeOffset(seconds uint32) Option      { return Uint32{dhcpv4.OptionTimeOffset, seconds} }
func OptRouter(ips ...net.IP) Option           { return AddressList{dhcpv4.OptionRouter, ips} }
func OptTimeServer(ips ...net.IP) Option       { return AddressList{dhcpv4.OptionTimeServer, ips} }
func OptNameServer(ips ...net.IP) Option       { return AddressList{dhcpv4.OptionNameServer, ips} }
func OptDomainNameServer(ips ...net.IP) Option { return AddressList{dhcpv4.OptionDomainNameServer, ips} }
func OptLogServer(ips ...net.IP) Option        { return AddressList{dhcpv4.OptionLogServer, ips} }
func OptCookieServer(ips ...net.IP) Option     { return AddressList{dhcpv4.OptionCookieServer, ips} }
func OptLPRServer(ips ...net.IP) Option        { return AddressList{dhcpv4.OptionLPRServer, ips} }
func OptImpressServer(ips ...net.IP) Option    { return AddressList{dhcpv4.OptionImpressServer, ips} }
func OptResourceLocationServer(ips ...net.IP) Option {
	return AddressList{dhcpv4.OptionResourceLocationServer, ips}
}
func OptHostName(name string) Option         { return Text{dhcpv4.OptionHostname, name} }
func OptBootFileSize(blocks uint32) Option   { return Uint32{dhcpv4.OptionBootFileSize, blocks} }
func OptDomainName(name string) Option       { return Text{dhcpv4.OptionDomainName, name} }
func OptBroadcastAddress(ip net.IP) Option   { return Address{dhcpv4.OptionBroadcastAddress, ip} }
func OptNTPServers(ips ...net.IP) Option     { return AddressList{dhcpv4.OptionNTPServers, ips} }
func OptRequestedIPAddress(ip net.IP) Option { return Address{dhcpv4.OptionRequestedIP, ip} }
func OptIPAddressLeaseTime(s uint32) Option  { return Uint32{dhcpv4.OptionIPLeaseTime, s} }
func OptMessageType(t dhcpv4.MessageType) Option {
	return MessageType{Type: t}
}
func OptServerIdentifier(ip net.IP) Option { return Address{dhcpv4.OptionServerIdentifier, ip} }
func OptParameterRequestList(codes ...dhcpv4.OptionCode) Option {
	return ParameterRequestList{Codes: codes}
}
func OptErrorMessage(msg string) Option           { return Text{dhcpv4.OptionMessage, msg} }
func OptMaximumDHCPMessageSize(n uint32) Option   { return Uint32{dhcpv4.OptionMaxDHCPMessageSize, n} }
func OptRenewal(seconds uint32) Option            { return Uint32{dhcpv4.OptionRenewalTime, seconds} }
func OptRebinding(seconds uint32) Option          { return Uint32{dhcpv4.OptionRebindingTime, seconds} }
func OptVendorClassIdentifier(v uint32) Option    { return VendorClass{Data: dhcpv4.Uint32ToBytes(v)} }
func OptTFTPServerName(name string) Option        { return Text{dhcpv4.OptionTFTPServerName, name} }
func OptBootfileName(name string) Option          { return Text{dhcpv4.OptionBootfileName, name} }
func OptUserClass(classes ...string) Option       { return UserClass{Classes: classes} }
func OptClientIdentifier(htype byte, id *big.Int) Option {
	return ClientIdentifier{HardwareType: htype, Identifier: id}
}
