package dhcp

import (
	"fmt"
	"net"
	"strings"

	"github.com/dhcpy/dhcpy/pkg/dhcpv4"
)

// RelaySubOption is one sub-option inside option 82.
type RelaySubOption struct {
	Type byte
	Data []byte
}

// RelayAgentInfo is option 82 (RFC 3046): sub-options added by a relay
// agent. Sub-options are kept in wire order, including types this package
// does not interpret, so a relayed message re-encodes unchanged.
type RelayAgentInfo struct {
	SubOptions []RelaySubOption
}

func (o RelayAgentInfo) Code() dhcpv4.OptionCode { return dhcpv4.OptionRelayAgentInfo }

func (o RelayAgentInfo) Payload() ([]byte, error) {
	var b []byte
	for _, s := range o.SubOptions {
		if len(s.Data) > dhcpv4.MaxOptionLength {
			return nil, fmt.Errorf("relay sub-option %d of %d bytes exceeds %d: %w",
				s.Type, len(s.Data), dhcpv4.MaxOptionLength, dhcpv4.ErrMalformedField)
		}
		b = append(b, s.Type, byte(len(s.Data)))
		b = append(b, s.Data...)
	}
	return b, nil
}

func (o RelayAgentInfo) String() string {
	var parts []string
	if id := o.CircuitID(); id != "" {
		parts = append(parts, "circuit-id="+id)
	}
	if id := o.RemoteID(); id != "" {
		parts = append(parts, "remote-id="+id)
	}
	if ip := o.LinkSelection(); ip != nil {
		parts = append(parts, "link-selection="+ip.String())
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%d sub-options", len(o.SubOptions))
	}
	return strings.Join(parts, " ")
}

func (o RelayAgentInfo) sub(t byte) []byte {
	for _, s := range o.SubOptions {
		if s.Type == t {
			return s.Data
		}
	}
	return nil
}

// CircuitID returns sub-option 1, or "" when absent.
func (o RelayAgentInfo) CircuitID() string { return string(o.sub(dhcpv4.RelaySubOptionCircuitID)) }

// RemoteID returns sub-option 2, or "" when absent.
func (o RelayAgentInfo) RemoteID() string { return string(o.sub(dhcpv4.RelaySubOptionRemoteID)) }

// LinkSelection returns the RFC 3527 link selection subnet, or nil when
// absent or not four bytes long.
func (o RelayAgentInfo) LinkSelection() net.IP {
	d := o.sub(dhcpv4.RelaySubOptionLinkSelect)
	if len(d) != net.IPv4len {
		return nil
	}
	return net.IPv4(d[0], d[1], d[2], d[3]).To4()
}

func decodeRelayAgentInfo(data []byte) (Option, error) {
	var subs []RelaySubOption
	for i := 0; i < len(data); {
		if i+1 >= len(data) {
			return nil, fmt.Errorf("relay sub-option at offset %d has no length: %w", i, dhcpv4.ErrMalformedField)
		}
		t, n := data[i], int(data[i+1])
		i += 2
		if i+n > len(data) {
			return nil, fmt.Errorf("relay sub-option %d declares %d bytes, %d remain: %w", t, n, len(data)-i, dhcpv4.ErrMalformedField)
		}
		subs = append(subs, RelaySubOption{Type: t, Data: append([]byte(nil), data[i:i+n]...)})
		i += n
	}
	return RelayAgentInfo{SubOptions: subs}, nil
}

// OptRelayAgentInfo builds option 82 from a circuit ID and remote ID; empty
// values are omitted.
func OptRelayAgentInfo(circuitID, remoteID string) Option {
	var o RelayAgentInfo
	if circuitID != "" {
		o.SubOptions = append(o.SubOptions, RelaySubOption{dhcpv4.RelaySubOptionCircuitID, []byte(circuitID)})
	}
	if remoteID != "" {
		o.SubOptions = append(o.SubOptions, RelaySubOption{dhcpv4.RelaySubOptionRemoteID, []byte(remoteID)})
	}
	return o
}

// RelayInfo returns the message's option 82, if present.
func (m *Message) RelayInfo() (RelayAgentInfo, bool) {
	o, ok := m.Option(dhcpv4.OptionRelayAgentInfo)
	if !ok {
		return RelayAgentInfo{}, false
	}
	ri, ok := o.(RelayAgentInfo)
	return ri, ok
}
