// Package dhcp implements the DHCPv4 message codec, the option registry and a
// passive listener that decodes client traffic.
package dhcp

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/u-root/uio/uio"

	"github.com/dhcpy/dhcpy/internal/metrics"
	"github.com/dhcpy/dhcpy/pkg/dhcpv4"
)

// Message is a decoded DHCPv4 message (RFC 2131 §2).
type Message struct {
	Op        dhcpv4.OpCode       // 1=BOOTREQUEST, 2=BOOTREPLY
	HType     dhcpv4.HardwareType // hardware address type (1=Ethernet)
	HLen      byte                // hardware address length, at most 16 on encode
	Hops      byte                // relay hops
	XID       uint32              // transaction ID
	Secs      uint16              // seconds elapsed
	Broadcast bool                // high bit of flags
	CIAddr    net.IP              // client IP address
	YIAddr    net.IP              // 'your' (client) IP address
	SIAddr    net.IP              // next server IP address
	GIAddr    net.IP              // relay agent IP address
	CHAddr    string              // client hardware address, uppercase hex
	SName     string              // server host name
	File      string              // boot file name
	Options   []Option
}

// packetPool reuses receive buffers in the listener hot path.
var packetPool = sync.Pool{
	New: func() interface{} {
		return make([]byte, dhcpv4.MaxPacketSize)
	},
}

// GetBuffer returns a buffer from the pool.
func GetBuffer() []byte {
	return packetPool.Get().([]byte)
}

// PutBuffer returns a buffer to the pool.
func PutBuffer(b []byte) {
	clear(b)
	packetPool.Put(b)
}

// Decoder holds decode-time policy. The zero value decodes with
// DefaultRegistry and drops unknown options.
type Decoder struct {
	Registry    *Registry
	KeepUnknown bool         // keep unregistered options as Raw
	Logger      *slog.Logger // unknown options are logged at debug level when set
}

func (d *Decoder) registry() *Registry {
	if d.Registry == nil {
		return DefaultRegistry
	}
	return d.Registry
}

// DecodeOptions parses the option area (starting at the magic cookie).
func (d *Decoder) DecodeOptions(data []byte) ([]Option, error) {
	return d.registry().parseOptions(data, func(code dhcpv4.OptionCode, payload []byte) Option {
		metrics.UnknownOptions.WithLabelValues(strconv.Itoa(int(code))).Inc()
		if d.Logger != nil {
			d.Logger.Debug("skipping unknown option",
				"code", int(code),
				"length", len(payload),
				"kept", d.KeepUnknown)
		}
		if !d.KeepUnknown {
			return nil
		}
		return Raw{OptionCode: code, Data: append([]byte(nil), payload...)}
	})
}

// Decode parses a full DHCPv4 message. It is safe for concurrent use.
func (d *Decoder) Decode(data []byte) (*Message, error) {
	m, err := d.decode(data)
	if err != nil {
		metrics.DecodeErrors.WithLabelValues(dhcpv4.ErrorKind(err)).Inc()
		return nil, err
	}
	mt, _ := m.MessageType()
	metrics.MessagesDecoded.WithLabelValues(mt.String()).Inc()
	return m, nil
}

func (d *Decoder) decode(data []byte) (*Message, error) {
	if len(data) < dhcpv4.HeaderSize {
		return nil, fmt.Errorf("message is %d bytes, header needs %d: %w", len(data), dhcpv4.HeaderSize, dhcpv4.ErrTruncatedMessage)
	}

	m := &Message{}
	buf := uio.NewBigEndianBuffer(data[:dhcpv4.HeaderSize])
	m.Op = dhcpv4.OpCode(buf.Read8())
	m.HType = dhcpv4.HardwareType(buf.Read8())
	m.HLen = buf.Read8()
	m.Hops = buf.Read8()
	m.XID = buf.Read32()
	m.Secs = buf.Read16()
	m.Broadcast = buf.Read16() >= dhcpv4.BroadcastFlag
	m.CIAddr = readIP(buf)
	m.YIAddr = readIP(buf)
	m.SIAddr = readIP(buf)
	m.GIAddr = readIP(buf)

	// Always 16 bytes on the wire; only HLen of them are significant.
	chaddr := buf.CopyN(dhcpv4.CHAddrSize)
	n := int(m.HLen)
	if n > dhcpv4.CHAddrSize {
		n = dhcpv4.CHAddrSize
	}
	sname := buf.CopyN(dhcpv4.SNameSize)
	file := buf.CopyN(dhcpv4.FileSize)
	if err := buf.FinError(); err != nil {
		return nil, fmt.Errorf("reading header: %v: %w", err, dhcpv4.ErrTruncatedMessage)
	}
	m.CHAddr = strings.ToUpper(hex.EncodeToString(chaddr[:n]))

	var err error
	if m.SName, err = dhcpv4.DecodeText(sname); err != nil {
		return nil, fmt.Errorf("server host name: %w", err)
	}
	if m.File, err = dhcpv4.DecodeText(file); err != nil {
		return nil, fmt.Errorf("boot file name: %w", err)
	}

	if m.Options, err = d.DecodeOptions(data[dhcpv4.HeaderSize:]); err != nil {
		return nil, fmt.Errorf("decoding options: %w", err)
	}
	return m, nil
}

func readIP(buf *uio.Lexer) net.IP {
	ip, _ := dhcpv4.DecodeIPv4(buf.CopyN(net.IPv4len))
	return ip
}

// DecodeMessage parses data with a zero Decoder.
func DecodeMessage(data []byte) (*Message, error) {
	var d Decoder
	return d.Decode(data)
}

// hardwareEncoders turn the textual CHAddr into bytes, keyed by HType.
var hardwareEncoders = map[dhcpv4.HardwareType]func(string) ([]byte, error){
	dhcpv4.HardwareTypeEthernet: decodeHexAddr,
	dhcpv4.HardwareTypeIEEE802:  decodeHexAddr,
}

var hexSeparators = strings.NewReplacer(":", "", "-", "", ".", "")

func decodeHexAddr(s string) ([]byte, error) {
	b, err := hex.DecodeString(hexSeparators.Replace(s))
	if err != nil {
		return nil, fmt.Errorf("hardware address %q: %v: %w", s, err, dhcpv4.ErrMalformedField)
	}
	return b, nil
}

// Encode serializes m. The result is zero-padded to the next multiple of 16
// plus 12 bytes. Messages without options carry neither cookie nor End.
func (m *Message) Encode() ([]byte, error) {
	b, err := m.encode()
	if err != nil {
		metrics.EncodeErrors.WithLabelValues(dhcpv4.ErrorKind(err)).Inc()
		return nil, err
	}
	metrics.MessagesEncoded.Inc()
	return b, nil
}

func (m *Message) encode() ([]byte, error) {
	if int(m.HLen) > dhcpv4.MaxHardwareAddrLen {
		return nil, fmt.Errorf("hlen %d exceeds %d: %w", m.HLen, dhcpv4.MaxHardwareAddrLen, dhcpv4.ErrMalformedField)
	}
	enc, ok := hardwareEncoders[m.HType]
	if !ok {
		return nil, fmt.Errorf("hardware type %d: %w", m.HType, dhcpv4.ErrUnsupportedHardwareType)
	}
	hw, err := enc(m.CHAddr)
	if err != nil {
		return nil, err
	}
	if len(hw) > dhcpv4.MaxHardwareAddrLen {
		return nil, fmt.Errorf("hardware address is %d bytes, max %d: %w", len(hw), dhcpv4.MaxHardwareAddrLen, dhcpv4.ErrMalformedField)
	}
	opts, err := EncodeOptions(m.Options)
	if err != nil {
		return nil, err
	}

	var flags uint16
	if m.Broadcast {
		flags = dhcpv4.BroadcastFlag
	}

	buf := uio.NewBigEndianBuffer(make([]byte, 0, paddedLength(dhcpv4.HeaderSize+len(opts))))
	buf.Write8(uint8(m.Op))
	buf.Write8(uint8(m.HType))
	buf.Write8(m.HLen)
	buf.Write8(m.Hops)
	buf.Write32(m.XID)
	buf.Write16(m.Secs)
	buf.Write16(flags)
	buf.WriteBytes(dhcpv4.EncodeIPv4(m.CIAddr))
	buf.WriteBytes(dhcpv4.EncodeIPv4(m.YIAddr))
	buf.WriteBytes(dhcpv4.EncodeIPv4(m.SIAddr))
	buf.WriteBytes(dhcpv4.EncodeIPv4(m.GIAddr))
	buf.WriteBytes(dhcpv4.FitTo(hw, dhcpv4.CHAddrSize))
	buf.WriteBytes(dhcpv4.FitTo(dhcpv4.TruncateText(m.SName, dhcpv4.SNameSize), dhcpv4.SNameSize))
	buf.WriteBytes(dhcpv4.FitTo(dhcpv4.TruncateText(m.File, dhcpv4.FileSize), dhcpv4.FileSize))
	buf.WriteBytes(opts)

	return dhcpv4.PadTo(buf.Data(), paddedLength(buf.Len()), 0), nil
}

// paddedLength rounds n up to a multiple of PaddingBlock and adds the
// overflow allowance.
func paddedLength(n int) int {
	blocks := (n + dhcpv4.PaddingBlock - 1) / dhcpv4.PaddingBlock
	return blocks*dhcpv4.PaddingBlock + dhcpv4.OverflowAllowance
}

// Option returns the first option with the given code.
func (m *Message) Option(code dhcpv4.OptionCode) (Option, bool) {
	for _, o := range m.Options {
		if o.Code() == code {
			return o, true
		}
	}
	return nil, false
}

// MessageType returns the DHCP message type (option 53).
func (m *Message) MessageType() (dhcpv4.MessageType, bool) {
	if o, ok := m.Option(dhcpv4.OptionDHCPMessageType); ok {
		if mt, ok := o.(MessageType); ok {
			return mt.Type, true
		}
	}
	return 0, false
}

// RequestedIP returns option 50, or nil.
func (m *Message) RequestedIP() net.IP {
	return m.addressOption(dhcpv4.OptionRequestedIP)
}

// ServerIdentifier returns option 54, or nil.
func (m *Message) ServerIdentifier() net.IP {
	return m.addressOption(dhcpv4.OptionServerIdentifier)
}

func (m *Message) addressOption(code dhcpv4.OptionCode) net.IP {
	if o, ok := m.Option(code); ok {
		if a, ok := o.(Address); ok {
			return a.IP
		}
	}
	return nil
}

// ParameterRequestList returns the codes requested in option 55.
func (m *Message) ParameterRequestList() []dhcpv4.OptionCode {
	if o, ok := m.Option(dhcpv4.OptionParameterRequestList); ok {
		if prl, ok := o.(ParameterRequestList); ok {
			return prl.Codes
		}
	}
	return nil
}

// ClientID returns option 61.
func (m *Message) ClientID() (ClientIdentifier, bool) {
	if o, ok := m.Option(dhcpv4.OptionClientIdentifier); ok {
		cid, ok := o.(ClientIdentifier)
		return cid, ok
	}
	return ClientIdentifier{}, false
}

// Hostname returns option 12, or "".
func (m *Message) Hostname() string {
	if o, ok := m.Option(dhcpv4.OptionHostname); ok {
		if t, ok := o.(Text); ok {
			return t.Value
		}
	}
	return ""
}

// VendorClass returns option 60 as text, or "" when absent or numeric.
func (m *Message) VendorClass() string {
	if o, ok := m.Option(dhcpv4.OptionVendorClassID); ok {
		if vc, ok := o.(VendorClass); ok {
			return vc.Text()
		}
	}
	return ""
}

// HardwareAddr parses CHAddr. It returns nil if CHAddr is not valid hex.
func (m *Message) HardwareAddr() net.HardwareAddr {
	b, err := hex.DecodeString(m.CHAddr)
	if err != nil || len(b) == 0 {
		return nil
	}
	return net.HardwareAddr(b)
}

// IsRelayed reports whether the message came through a relay agent.
func (m *Message) IsRelayed() bool {
	return m.GIAddr != nil && !m.GIAddr.IsUnspecified()
}
