// Package fingerprint derives a device fingerprint from a decoded DHCP
// request (vendor class option 60, parameter request list option 55,
// hostname option 12 and the hardware address OUI) and applies local heuristics to guess the client
// platform.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/dhcpy/dhcpy/internal/dhcp"
	"github.com/dhcpy/dhcpy/pkg/dhcpv4"
)

// Fingerprint holds the request fields used for classification.
type Fingerprint struct {
	VendorClass string
	ParamList   []dhcpv4.OptionCode
	Hostname    string
	OUI         string // first three octets of chaddr, lowercase hex with colons
}

// FromMessage extracts the fingerprint fields from m.
func FromMessage(m *dhcp.Message) Fingerprint {
	fp := Fingerprint{
		VendorClass: m.VendorClass(),
		ParamList:   m.ParameterRequestList(),
		Hostname:    m.Hostname(),
	}
	if mac := m.HardwareAddr(); len(mac) >= 3 {
		fp.OUI = fmt.Sprintf("%02x:%02x:%02x", mac[0], mac[1], mac[2])
	}
	return fp
}

// Hash returns a short stable hash of the vendor class and parameter request
// list, or "" when the client sent neither. Clients running the same DHCP
// stack share a hash.
func (fp Fingerprint) Hash() string {
	if fp.VendorClass == "" && len(fp.ParamList) == 0 {
		return ""
	}
	h := sha256.New()
	h.Write([]byte(fp.VendorClass))
	h.Write([]byte{0})
	for _, c := range fp.ParamList {
		h.Write([]byte{byte(c)})
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:8])
}

// ParamListString returns the parameter request list as comma-separated codes.
func (fp Fingerprint) ParamListString() string {
	if len(fp.ParamList) == 0 {
		return ""
	}
	parts := make([]string, len(fp.ParamList))
	for i, c := range fp.ParamList {
		parts[i] = fmt.Sprintf("%d", c)
	}
	return strings.Join(parts, ",")
}

// Classification is the result of Classify.
type Classification struct {
	OS         string `json:"os,omitempty"`
	DeviceType string `json:"device_type"`
	Confidence int    `json:"confidence"`
}

// Classify applies local heuristics. Vendor class wins over hostname hints,
// which win over parameter list patterns; an unmatched fingerprint is
// "unknown" with zero confidence.
func Classify(fp Fingerprint) Classification {
	var c Classification
	vc := strings.ToLower(fp.VendorClass)
	hn := strings.ToLower(fp.Hostname)

	switch {
	case strings.HasPrefix(vc, "msft "):
		c = Classification{OS: "Windows", DeviceType: "computer", Confidence: 80}
	case strings.HasPrefix(vc, "android-dhcp"):
		c = Classification{OS: "Android", DeviceType: "phone", Confidence: 85}
	case strings.HasPrefix(vc, "dhcpcd"):
		c = Classification{OS: "Linux", DeviceType: "computer", Confidence: 60}
	case strings.Contains(vc, "udhcp"):
		c = Classification{OS: "Linux (embedded)", DeviceType: "embedded", Confidence: 50}
	case strings.Contains(vc, "cisco"), strings.Contains(vc, "aruba"), strings.Contains(vc, "meraki"),
		strings.Contains(vc, "ubnt"), strings.Contains(vc, "fortinet"):
		c = Classification{DeviceType: "network", Confidence: 90}
	}
	if c.DeviceType != "" {
		return c
	}

	switch {
	case strings.HasPrefix(hn, "iphone"), strings.HasPrefix(hn, "ipad"):
		c = Classification{OS: "iOS/iPadOS", DeviceType: "phone", Confidence: 70}
	case strings.HasPrefix(hn, "macbook"), strings.HasPrefix(hn, "imac"), strings.HasPrefix(hn, "mac-"):
		c = Classification{OS: "macOS", DeviceType: "computer", Confidence: 70}
	case strings.HasPrefix(hn, "android-"), strings.HasPrefix(hn, "galaxy"):
		c = Classification{OS: "Android", DeviceType: "phone", Confidence: 60}
	case strings.HasPrefix(hn, "desktop-"), strings.HasPrefix(hn, "laptop-"):
		c = Classification{OS: "Windows", DeviceType: "computer", Confidence: 60}
	case strings.Contains(hn, "printer"), strings.HasPrefix(hn, "hp-"), strings.Contains(hn, "epson"):
		c = Classification{DeviceType: "printer", Confidence: 60}
	case strings.Contains(hn, "-ap-"), strings.Contains(hn, "-sw-"), strings.Contains(hn, "switch"):
		c = Classification{DeviceType: "network", Confidence: 50}
	case strings.Contains(hn, "cam"), strings.Contains(hn, "nvr"), strings.Contains(hn, "hikvision"):
		c = Classification{DeviceType: "camera", Confidence: 50}
	}

	if c.OS == "" {
		prl := fp.ParamListString()
		switch {
		case strings.HasPrefix(prl, "1,3,6,15,31,33,43,44,46,47,119,121,249,252"),
			strings.HasPrefix(prl, "1,15,3,6,44,46,47,31,33,121,249,43"):
			c.OS = "Windows"
			if c.DeviceType == "" {
				c.DeviceType, c.Confidence = "computer", 50
			}
		case strings.HasPrefix(prl, "1,121,3,6,15,119,252"), strings.HasPrefix(prl, "1,3,6,15,119,252"):
			c.OS = "macOS/iOS"
			if c.DeviceType == "" {
				c.Confidence = 50
			}
		case strings.HasPrefix(prl, "1,3,6,15,26,28,51,58,59"):
			c.OS = "Android"
			if c.DeviceType == "" {
				c.DeviceType, c.Confidence = "phone", 40
			}
		case strings.HasPrefix(prl, "1,28,2,3,15,6,119,12,44,47,26,121,42"):
			c.OS = "Linux"
			if c.DeviceType == "" {
				c.DeviceType, c.Confidence = "computer", 40
			}
		}
	}

	if c.DeviceType == "" {
		c.DeviceType = "unknown"
	}
	return c
}
