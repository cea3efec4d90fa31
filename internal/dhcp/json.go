package dhcp

import (
	"encoding/json"
	"net"

	"github.com/dhcpy/dhcpy/pkg/dhcpv4"
)

type optionJSON struct {
	Code  dhcpv4.OptionCode `json:"code"`
	Name  string            `json:"name"`
	Value string            `json:"value"`
}

type messageJSON struct {
	Op        string       `json:"op"`
	HType     uint8        `json:"htype"`
	HLen      uint8        `json:"hlen"`
	Hops      uint8        `json:"hops"`
	XID       uint32       `json:"xid"`
	Secs      uint16       `json:"secs"`
	Broadcast bool         `json:"broadcast"`
	CIAddr    string       `json:"ciaddr"`
	YIAddr    string       `json:"yiaddr"`
	SIAddr    string       `json:"siaddr"`
	GIAddr    string       `json:"giaddr"`
	CHAddr    string       `json:"chaddr"`
	SName     string       `json:"sname,omitempty"`
	File      string       `json:"file,omitempty"`
	MsgType   string       `json:"msg_type,omitempty"`
	Options   []optionJSON `json:"options"`
}

// MarshalJSON renders m for humans: addresses in dotted form and options by
// name with their String value. Names come from DefaultRegistry; use
// MarshalJSONWith for messages decoded with a custom registry.
func (m *Message) MarshalJSON() ([]byte, error) {
	return m.MarshalJSONWith(DefaultRegistry)
}

// MarshalJSONWith is MarshalJSON with option names taken from r. A nil r
// means DefaultRegistry.
func (m *Message) MarshalJSONWith(r *Registry) ([]byte, error) {
	if r == nil {
		r = DefaultRegistry
	}
	out := messageJSON{
		Op:        m.Op.String(),
		HType:     uint8(m.HType),
		HLen:      m.HLen,
		Hops:      m.Hops,
		XID:       m.XID,
		Secs:      m.Secs,
		Broadcast: m.Broadcast,
		CIAddr:    ipString(m.CIAddr),
		YIAddr:    ipString(m.YIAddr),
		SIAddr:    ipString(m.SIAddr),
		GIAddr:    ipString(m.GIAddr),
		CHAddr:    m.CHAddr,
		SName:     m.SName,
		File:      m.File,
		Options:   make([]optionJSON, 0, len(m.Options)),
	}
	if mt, ok := m.MessageType(); ok {
		out.MsgType = mt.String()
	}
	for _, o := range m.Options {
		out.Options = append(out.Options, optionJSON{
			Code:  o.Code(),
			Name:  r.Name(o.Code()),
			Value: o.String(),
		})
	}
	return json.Marshal(out)
}

func ipString(ip net.IP) string {
	if len(ip) == 0 {
		return "0.0.0.0"
	}
	return ip.String()
}
