package dhcp

import (
	"bytes"
	"errors"
	"net"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dhcpy/dhcpy/pkg/dhcpv4"
)

func TestRelayAgentInfoRoundTrip(t *testing.T) {
	payload := []byte{
		1, 4, 'e', 't', 'h', '0', // circuit ID
		2, 3, 's', 'w', '1', // remote ID
		5, 4, 10, 0, 1, 0, // link selection
		9, 2, 0xaa, 0xbb, // not interpreted, kept
	}
	opt, err := decodeRelayAgentInfo(payload)
	if err != nil {
		t.Fatalf("decodeRelayAgentInfo error: %v", err)
	}
	ri := opt.(RelayAgentInfo)
	if ri.CircuitID() != "eth0" {
		t.Errorf("CircuitID = %q, want eth0", ri.CircuitID())
	}
	if ri.RemoteID() != "sw1" {
		t.Errorf("RemoteID = %q, want sw1", ri.RemoteID())
	}
	if !ri.LinkSelection().Equal(net.IPv4(10, 0, 1, 0)) {
		t.Errorf("LinkSelection = %v, want 10.0.1.0", ri.LinkSelection())
	}
	if len(ri.SubOptions) != 4 {
		t.Fatalf("SubOptions = %d, want 4", len(ri.SubOptions))
	}

	got, err := ri.Payload()
	if err != nil {
		t.Fatalf("Payload error: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Payload = % x, want % x", got, payload)
	}
}

func TestRelayAgentInfoDecodeCopies(t *testing.T) {
	payload := []byte{1, 2, 'a', 'b'}
	opt, err := decodeRelayAgentInfo(payload)
	if err != nil {
		t.Fatalf("decodeRelayAgentInfo error: %v", err)
	}
	payload[2] = 'z'
	if got := opt.(RelayAgentInfo).CircuitID(); got != "ab" {
		t.Errorf("CircuitID = %q after mutating input, want ab", got)
	}
}

func TestRelayAgentInfoMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"missing length", []byte{1}},
		{"overrun", []byte{1, 5, 'a'}},
		{"second overrun", []byte{1, 1, 'a', 2, 9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := decodeRelayAgentInfo(tt.data); !errors.Is(err, dhcpv4.ErrMalformedField) {
				t.Errorf("error = %v, want ErrMalformedField", err)
			}
		})
	}
}

func TestRelayAgentInfoOversizeSubOption(t *testing.T) {
	o := RelayAgentInfo{SubOptions: []RelaySubOption{{Type: 1, Data: make([]byte, 256)}}}
	if _, err := o.Payload(); !errors.Is(err, dhcpv4.ErrMalformedField) {
		t.Errorf("Payload error = %v, want ErrMalformedField", err)
	}
}

func TestOptRelayAgentInfo(t *testing.T) {
	o := OptRelayAgentInfo("ge-0/0/1", "")
	want := RelayAgentInfo{SubOptions: []RelaySubOption{{dhcpv4.RelaySubOptionCircuitID, []byte("ge-0/0/1")}}}
	if diff := cmp.Diff(want, o); diff != "" {
		t.Errorf("OptRelayAgentInfo mismatch (-want +got):\n%s", diff)
	}
	if o.String() != "circuit-id=ge-0/0/1" {
		t.Errorf("String = %q", o.String())
	}
	if s := (RelayAgentInfo{SubOptions: []RelaySubOption{{Type: 9}}}).String(); s != "1 sub-options" {
		t.Errorf("String of uninterpreted = %q", s)
	}
}

func TestMessageRelayInfo(t *testing.T) {
	m := &Message{
		Op:     dhcpv4.OpCodeBootRequest,
		HType:  dhcpv4.HardwareTypeEthernet,
		HLen:   6,
		GIAddr: net.IPv4(10, 0, 1, 1).To4(),
		CHAddr: "001122334455",
		Options: []Option{
			OptMessageType(dhcpv4.MessageTypeRequest),
			OptRelayAgentInfo("port7", "sw2"),
		},
	}
	b, err := m.Encode()
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	got, err := DecodeMessage(b)
	if err != nil {
		t.Fatalf("DecodeMessage error: %v", err)
	}
	ri, ok := got.RelayInfo()
	if !ok {
		t.Fatal("RelayInfo not found after round trip")
	}
	if ri.CircuitID() != "port7" || ri.RemoteID() != "sw2" {
		t.Errorf("RelayInfo = %v", ri)
	}
	if _, ok := (&Message{}).RelayInfo(); ok {
		t.Error("RelayInfo found on a message without option 82")
	}
}
