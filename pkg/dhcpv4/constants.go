// Package dhcpv4 provides constants, error kinds and primitive wire codecs for
// DHCPv4 (BOOTP-derived) messages.
package dhcpv4

import "fmt"

// DHCP Message Types (RFC 2132 §9.6)
type MessageType byte

const (
	MessageTypeDiscover MessageType = 1 // DHCPDISCOVER
	MessageTypeOffer    MessageType = 2 // DHCPOFFER
	MessageTypeRequest  MessageType = 3 // DHCPREQUEST
	MessageTypeDecline  MessageType = 4 // DHCPDECLINE
	MessageTypeAck      MessageType = 5 // DHCPACK
	MessageTypeNak      MessageType = 6 // DHCPNAK
	MessageTypeRelease  MessageType = 7 // DHCPRELEASE
	MessageTypeInform   MessageType = 8 // DHCPINFORM
)

func (m MessageType) String() string {
	switch m {
	case MessageTypeDiscover:
		return "DHCPDISCOVER"
	case MessageTypeOffer:
		return "DHCPOFFER"
	case MessageTypeRequest:
		return "DHCPREQUEST"
	case MessageTypeDecline:
		return "DHCPDECLINE"
	case MessageTypeAck:
		return "DHCPACK"
	case MessageTypeNak:
		return "DHCPNAK"
	case MessageTypeRelease:
		return "DHCPRELEASE"
	case MessageTypeInform:
		return "DHCPINFORM"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether m is one of the eight RFC 2132 message types.
func (m MessageType) Valid() bool {
	return m >= MessageTypeDiscover && m <= MessageTypeInform
}

// BOOTP op codes (RFC 951)
type OpCode byte

const (
	OpCodeBootRequest OpCode = 1 // BOOTREQUEST
	OpCodeBootReply   OpCode = 2 // BOOTREPLY
)

func (o OpCode) String() string {
	switch o {
	case OpCodeBootRequest:
		return "BOOTREQUEST"
	case OpCodeBootReply:
		return "BOOTREPLY"
	default:
		return fmt.Sprintf("OP(%d)", byte(o))
	}
}

// Hardware Types (RFC 1700)
type HardwareType byte

const (
	HardwareTypeEthernet HardwareType = 1
	HardwareTypeIEEE802  HardwareType = 6
)

// DHCP Option Codes (RFC 2132 and extensions)
type OptionCode byte

const (
	OptionPad                    OptionCode = 0
	OptionSubnetMask             OptionCode = 1
	OptionTimeOffset             OptionCode = 2
	OptionRouter                 OptionCode = 3
	OptionTimeServer             OptionCode = 4
	OptionNameServer             OptionCode = 5
	OptionDomainNameServer       OptionCode = 6
	OptionLogServer              OptionCode = 7
	OptionCookieServer           OptionCode = 8
	OptionLPRServer              OptionCode = 9
	OptionImpressServer          OptionCode = 10
	OptionResourceLocationServer OptionCode = 11
	OptionHostname               OptionCode = 12
	OptionBootFileSize           OptionCode = 13
	OptionDomainName             OptionCode = 15
	OptionBroadcastAddress       OptionCode = 28
	OptionNTPServers             OptionCode = 42
	OptionVendorSpecific         OptionCode = 43
	OptionRequestedIP            OptionCode = 50
	OptionIPLeaseTime            OptionCode = 51
	OptionOverload               OptionCode = 52
	OptionDHCPMessageType        OptionCode = 53
	OptionServerIdentifier       OptionCode = 54
	OptionParameterRequestList   OptionCode = 55
	OptionMessage                OptionCode = 56
	OptionMaxDHCPMessageSize     OptionCode = 57
	OptionRenewalTime            OptionCode = 58
	OptionRebindingTime          OptionCode = 59
	OptionVendorClassID          OptionCode = 60
	OptionClientIdentifier       OptionCode = 61
	OptionTFTPServerName         OptionCode = 66
	OptionBootfileName           OptionCode = 67
	OptionUserClass              OptionCode = 77
	OptionClientFQDN             OptionCode = 81
	OptionRelayAgentInfo         OptionCode = 82
	OptionClasslessStaticRoute   OptionCode = 121
	OptionEnd                    OptionCode = 255
)

// Relay agent information sub-option types (RFC 3046).
const (
	RelaySubOptionCircuitID  byte = 1
	RelaySubOptionRemoteID   byte = 2
	RelaySubOptionLinkSelect byte = 5 // RFC 3527
)

// Message layout (RFC 2131 §2). Offsets are from the start of the datagram.
const (
	HeaderSize         = 236 // fixed BOOTP header, cookie excluded
	CHAddrOffset       = 28
	CHAddrSize         = 16
	SNameOffset        = 44
	SNameSize          = 64
	FileOffset         = 108
	FileSize           = 128
	MaxOptionLength    = 255
	PaddingBlock       = 16 // encoded messages are rounded up to this multiple
	OverflowAllowance  = 12 // extra zero bytes appended after rounding
	MaxHardwareAddrLen = CHAddrSize
	MaxPacketSize      = 1500 // receive buffer size (Ethernet MTU)
)

// DHCP Ports
const (
	ServerPort = 67
	ClientPort = 68
)

// BroadcastFlag is the high bit of the flags field (RFC 2131 §2).
const BroadcastFlag uint16 = 0x8000

// DHCP Magic Cookie (RFC 2131 §3)
var MagicCookie = [4]byte{99, 130, 83, 99}
