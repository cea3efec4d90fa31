package dhcp

import (
	"fmt"
	"sort"

	"github.com/dhcpy/dhcpy/pkg/dhcpv4"
)

// OptionDecoder turns a raw option payload into a typed Option.
type OptionDecoder func(payload []byte) (Option, error)

type optionDef struct {
	name   string
	decode OptionDecoder
}

// Registry maps option codes to their decoders. It is populated once and
// only read afterwards, so a Registry may be shared between goroutines.
type Registry struct {
	defs map[dhcpv4.OptionCode]optionDef
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[dhcpv4.OptionCode]optionDef)}
}

// Register adds a decoder for code. It panics on a duplicate code, on Pad
// or End, or on a nil decoder; registration happens at init time and any of
// these is a programming error.
func (r *Registry) Register(code dhcpv4.OptionCode, name string, dec OptionDecoder) {
	if code == dhcpv4.OptionPad || code == dhcpv4.OptionEnd {
		panic(fmt.Sprintf("dhcp: option %d is framing and cannot be registered", code))
	}
	if dec == nil {
		panic(fmt.Sprintf("dhcp: nil decoder for option %d", code))
	}
	if _, dup := r.defs[code]; dup {
		panic(fmt.Sprintf("dhcp: option %d registered twice", code))
	}
	r.defs[code] = optionDef{name: name, decode: dec}
}

// Lookup returns the decoder for code.
func (r *Registry) Lookup(code dhcpv4.OptionCode) (OptionDecoder, bool) {
	def, ok := r.defs[code]
	return def.decode, ok
}

// Name returns a human-readable name for code.
func (r *Registry) Name(code dhcpv4.OptionCode) string {
	switch code {
	case dhcpv4.OptionPad:
		return "Pad"
	case dhcpv4.OptionEnd:
		return "End"
	}
	if def, ok := r.defs[code]; ok {
		return def.name
	}
	return fmt.Sprintf("Option(%d)", code)
}

// Codes returns the registered codes in ascending order.
func (r *Registry) Codes() []dhcpv4.OptionCode {
	codes := make([]dhcpv4.OptionCode, 0, len(r.defs))
	for c := range r.defs {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

// DefaultRegistry knows every option this package has a typed form for.
var DefaultRegistry = newDefaultRegistry()

func newDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, d := range []struct {
		code dhcpv4.OptionCode
		name string
		dec  OptionDecoder
	}{
		{dhcpv4.OptionSubnetMask, "Subnet Mask", decodeAddress(dhcpv4.OptionSubnetMask)},
		{dhcpv4.OptionTimeOffset, "Time Offset", decodeUint32(dhcpv4.OptionTimeOffset)},
		{dhcpv4.OptionRouter, "Router", decodeAddressList(dhcpv4.OptionRouter)},
		{dhcpv4.OptionTimeServer, "Time Server", decodeAddressList(dhcpv4.OptionTimeServer)},
		{dhcpv4.OptionNameServer, "Name Server", decodeAddressList(dhcpv4.OptionNameServer)},
		{dhcpv4.OptionDomainNameServer, "Domain Name Server", decodeAddressList(dhcpv4.OptionDomainNameServer)},
		{dhcpv4.OptionLogServer, "Log Server", decodeAddressList(dhcpv4.OptionLogServer)},
		{dhcpv4.OptionCookieServer, "Cookie Server", decodeAddressList(dhcpv4.OptionCookieServer)},
		{dhcpv4.OptionLPRServer, "LPR Server", decodeAddressList(dhcpv4.OptionLPRServer)},
		{dhcpv4.OptionImpressServer, "Impress Server", decodeAddressList(dhcpv4.OptionImpressServer)},
		{dhcpv4.OptionResourceLocationServer, "Resource Location Server", decodeAddressList(dhcpv4.OptionResourceLocationServer)},
		{dhcpv4.OptionHostname, "Host Name", decodeText(dhcpv4.OptionHostname)},
		{dhcpv4.OptionBootFileSize, "Boot File Size", decodeUint32(dhcpv4.OptionBootFileSize)},
		{dhcpv4.OptionDomainName, "Domain Name", decodeText(dhcpv4.OptionDomainName)},
		{dhcpv4.OptionBroadcastAddress, "Broadcast Address", decodeAddress(dhcpv4.OptionBroadcastAddress)},
		{dhcpv4.OptionNTPServers, "NTP Servers", decodeAddressList(dhcpv4.OptionNTPServers)},
		{dhcpv4.OptionRequestedIP, "Requested IP Address", decodeAddress(dhcpv4.OptionRequestedIP)},
		{dhcpv4.OptionIPLeaseTime, "IP Address Lease Time", decodeUint32(dhcpv4.OptionIPLeaseTime)},
		{dhcpv4.OptionDHCPMessageType, "DHCP Message Type", decodeMessageType},
		{dhcpv4.OptionServerIdentifier, "Server Identifier", decodeAddress(dhcpv4.OptionServerIdentifier)},
		{dhcpv4.OptionParameterRequestList, "Parameter Request List", decodeParameterRequestList},
		{dhcpv4.OptionMessage, "Message", decodeText(dhcpv4.OptionMessage)},
		{dhcpv4.OptionMaxDHCPMessageSize, "Maximum DHCP Message Size", decodeUint32(dhcpv4.OptionMaxDHCPMessageSize)},
		{dhcpv4.OptionRenewalTime, "Renewal Time Value", decodeUint32(dhcpv4.OptionRenewalTime)},
		{dhcpv4.OptionRebindingTime, "Rebinding Time Value", decodeUint32(dhcpv4.OptionRebindingTime)},
		{dhcpv4.OptionVendorClassID, "Vendor Class Identifier", decodeVendorClass},
		{dhcpv4.OptionClientIdentifier, "Client Identifier", decodeClientIdentifier},
		{dhcpv4.OptionTFTPServerName, "TFTP Server Name", decodeText(dhcpv4.OptionTFTPServerName)},
		{dhcpv4.OptionBootfileName, "Bootfile Name", decodeText(dhcpv4.OptionBootfileName)},
		{dhcpv4.OptionUserClass, "User Class", decodeUserClass},
		{dhcpv4.OptionClientFQDN, "Client FQDN", decodeClientFQDN},
		{dhcpv4.OptionRelayAgentInfo, "Relay Agent Information", decodeRelayAgentInfo},
		{dhcpv4.OptionClasslessStaticRoute, "Classless Static Route", decodeClasslessStaticRoutes},
	} {
		r.Register(d.code, d.name, d.dec)
	}
	return r
}

// ParseOptions decodes the option area that follows the fixed header.
// Without a leading magic cookie there are no options. Parsing stops at End
// or at the end of data. Codes with no registered decoder are skipped.
func (r *Registry) ParseOptions(data []byte) ([]Option, error) {
	return r.parseOptions(data, nil)
}

// parseOptions calls unknown for every unregistered option; returning a
// non-nil Option from it keeps that option in the result.
func (r *Registry) parseOptions(data []byte, unknown func(code dhcpv4.OptionCode, payload []byte) Option) ([]Option, error) {
	if len(data) < len(dhcpv4.MagicCookie) || [4]byte(data[:4]) != dhcpv4.MagicCookie {
		return nil, nil
	}
	data = data[len(dhcpv4.MagicCookie):]

	var opts []Option
	for i := 0; i < len(data); {
		code := dhcpv4.OptionCode(data[i])
		i++
		if code == dhcpv4.OptionPad {
			continue
		}
		if code == dhcpv4.OptionEnd {
			break
		}
		if i >= len(data) {
			return nil, fmt.Errorf("option %d has no length byte: %w", code, dhcpv4.ErrTruncatedOption)
		}
		length := int(data[i])
		i++
		if i+length > len(data) {
			return nil, fmt.Errorf("option %d declares %d bytes, %d remain: %w", code, length, len(data)-i, dhcpv4.ErrTruncatedOption)
		}
		payload := data[i : i+length]
		i += length

		dec, ok := r.Lookup(code)
		if !ok {
			if unknown != nil {
				if opt := unknown(code, payload); opt != nil {
					opts = append(opts, opt)
				}
			}
			continue
		}
		opt, err := dec(payload)
		if err != nil {
			return nil, fmt.Errorf("option %d (%s): %w", code, r.Name(code), err)
		}
		opts = append(opts, opt)
	}
	return opts, nil
}

// EncodeOptions serializes opts as cookie, TLVs and End. An empty input
// produces no bytes at all. Pad entries are written as a single byte and
// End entries are ignored since End is always appended.
func EncodeOptions(opts []Option) ([]byte, error) {
	if len(opts) == 0 {
		return nil, nil
	}
	buf := make([]byte, 0, 64)
	buf = append(buf, dhcpv4.MagicCookie[:]...)
	for _, opt := range opts {
		code := opt.Code()
		switch code {
		case dhcpv4.OptionPad:
			buf = append(buf, byte(code))
			continue
		case dhcpv4.OptionEnd:
			continue
		}
		payload, err := opt.Payload()
		if err != nil {
			return nil, fmt.Errorf("option %d: %w", code, err)
		}
		if len(payload) > dhcpv4.MaxOptionLength {
			return nil, fmt.Errorf("option %d payload is %d bytes, max %d: %w", code, len(payload), dhcpv4.MaxOptionLength, dhcpv4.ErrMalformedField)
		}
		buf = append(buf, byte(code), byte(len(payload)))
		buf = append(buf, payload...)
	}
	return append(buf, byte(dhcpv4.OptionEnd)), nil
}
