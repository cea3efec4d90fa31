package fingerprint

import (
	"testing"

	"github.com/dhcpy/dhcpy/internal/dhcp"
	"github.com/dhcpy/dhcpy/pkg/dhcpv4"
)

func codes(b ...byte) []dhcpv4.OptionCode {
	out := make([]dhcpv4.OptionCode, len(b))
	for i, c := range b {
		out[i] = dhcpv4.OptionCode(c)
	}
	return out
}

func TestFromMessage(t *testing.T) {
	m := &dhcp.Message{
		HType:  dhcpv4.HardwareTypeEthernet,
		HLen:   6,
		CHAddr: "3C22FB0A0B0C",
		Options: []dhcp.Option{
			dhcp.OptMessageType(dhcpv4.MessageTypeDiscover),
			dhcp.OptParameterRequestList(1, 3, 6, 15),
			dhcp.OptHostName("MacBook-Pro"),
			dhcp.VendorClass{Data: []byte("MSFT 5.0")},
		},
	}
	fp := FromMessage(m)
	if fp.VendorClass != "MSFT 5.0" {
		t.Errorf("VendorClass = %q, want MSFT 5.0", fp.VendorClass)
	}
	if fp.OUI != "3c:22:fb" {
		t.Errorf("OUI = %q, want 3c:22:fb", fp.OUI)
	}
	if fp.Hostname != "MacBook-Pro" {
		t.Errorf("Hostname = %q", fp.Hostname)
	}
	if fp.ParamListString() != "1,3,6,15" {
		t.Errorf("ParamListString() = %q, want 1,3,6,15", fp.ParamListString())
	}

	empty := FromMessage(&dhcp.Message{})
	if empty.OUI != "" || empty.Hash() != "" || empty.ParamListString() != "" {
		t.Errorf("FromMessage(empty) = %+v", empty)
	}
}

func TestFingerprintHash(t *testing.T) {
	fp1 := Fingerprint{ParamList: codes(1, 3, 6, 15, 44, 46, 47), Hostname: "a"}
	fp2 := Fingerprint{ParamList: codes(1, 3, 6, 15, 44, 46, 47), Hostname: "b"}
	fp3 := Fingerprint{ParamList: codes(1, 3, 6, 15, 26, 28)}

	if fp1.Hash() != fp2.Hash() {
		t.Error("same parameter list should have same hash")
	}
	if fp1.Hash() == fp3.Hash() {
		t.Error("different parameter lists should have different hashes")
	}
	fp4 := Fingerprint{VendorClass: "MSFT 5.0", ParamList: fp1.ParamList}
	if fp4.Hash() == fp1.Hash() {
		t.Error("vendor class should change the hash")
	}
	if (Fingerprint{VendorClass: "dhcpcd-9.4.1"}).Hash() == "" {
		t.Error("vendor class alone should produce a hash")
	}
	if len(fp1.Hash()) != 16 {
		t.Errorf("Hash() length = %d, want 16", len(fp1.Hash()))
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		fp         Fingerprint
		os         string
		deviceType string
	}{
		{"windows vendor class", Fingerprint{VendorClass: "MSFT 5.0", Hostname: "iphone-lookalike"}, "Windows", "computer"},
		{"android vendor class", Fingerprint{VendorClass: "android-dhcp-13"}, "Android", "phone"},
		{"udhcp vendor class", Fingerprint{VendorClass: "udhcp 1.36.1"}, "Linux (embedded)", "embedded"},
		{"cisco vendor class", Fingerprint{VendorClass: "Cisco AP c9120"}, "", "network"},
		{"iphone hostname", Fingerprint{Hostname: "iPhone-de-Ana"}, "iOS/iPadOS", "phone"},
		{"macbook hostname", Fingerprint{Hostname: "macbook-air"}, "macOS", "computer"},
		{"android hostname", Fingerprint{Hostname: "android-5f2e"}, "Android", "phone"},
		{"windows hostname", Fingerprint{Hostname: "DESKTOP-1ABC2D"}, "Windows", "computer"},
		{"printer", Fingerprint{Hostname: "HP-LaserJet"}, "", "printer"},
		{"camera", Fingerprint{Hostname: "hikvision-01"}, "", "camera"},
		{"windows prl", Fingerprint{ParamList: codes(1, 15, 3, 6, 44, 46, 47, 31, 33, 121, 249, 43)}, "Windows", "computer"},
		{"apple prl", Fingerprint{ParamList: codes(1, 121, 3, 6, 15, 119, 252, 95, 44, 46)}, "macOS/iOS", "unknown"},
		{"android prl", Fingerprint{ParamList: codes(1, 3, 6, 15, 26, 28, 51, 58, 59, 43)}, "Android", "phone"},
		{"printer with windows prl", Fingerprint{Hostname: "office-printer", ParamList: codes(1, 15, 3, 6, 44, 46, 47, 31, 33, 121, 249, 43)}, "Windows", "printer"},
		{"nothing", Fingerprint{}, "", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(tt.fp)
			if c.OS != tt.os {
				t.Errorf("OS = %q, want %q", c.OS, tt.os)
			}
			if c.DeviceType != tt.deviceType {
				t.Errorf("DeviceType = %q, want %q", c.DeviceType, tt.deviceType)
			}
		})
	}

	if c := Classify(Fingerprint{}); c.Confidence != 0 {
		t.Errorf("unknown Confidence = %d, want 0", c.Confidence)
	}
}
