package capture

import (
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/dhcpy/dhcpy/internal/dhcp"
	"github.com/dhcpy/dhcpy/internal/fingerprint"
	"github.com/dhcpy/dhcpy/pkg/dhcpv4"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "captures.db"))
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// discoverBytes encodes a DHCPDISCOVER from chaddr.
func discoverBytes(t *testing.T, chaddr string, xid uint32) []byte {
	t.Helper()
	m := &dhcp.Message{
		Op:      dhcpv4.OpCodeBootRequest,
		HType:   dhcpv4.HardwareTypeEthernet,
		HLen:    6,
		XID:     xid,
		CHAddr:  chaddr,
		Options: []dhcp.Option{
			dhcp.OptMessageType(dhcpv4.MessageTypeDiscover),
			dhcp.OptParameterRequestList(1, 3, 6, 15),
		},
	}
	b, err := m.Encode()
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	return b
}

func testRequest(t *testing.T, chaddr string, xid uint32) *dhcp.Request {
	t.Helper()
	raw := discoverBytes(t, chaddr, xid)
	m, err := dhcp.DecodeMessage(raw)
	if err != nil {
		t.Fatalf("DecodeMessage error: %v", err)
	}
	return &dhcp.Request{
		Message:   m,
		Raw:       raw,
		Src:       &net.UDPAddr{IP: net.IPv4zero, Port: dhcpv4.ClientPort},
		Interface: "eth0",
	}
}

func TestOpenEmpty(t *testing.T) {
	store := newTestStore(t)
	n, err := store.Count()
	if err != nil {
		t.Fatalf("Count error: %v", err)
	}
	if n != 0 {
		t.Errorf("Count() = %d, want 0", n)
	}
}

func TestStorePutAndGet(t *testing.T) {
	store := newTestStore(t)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	req := testRequest(t, "001122334455", 0xABCD)
	m0 := req.Message
	rec := NewRecord(req, at)
	id, err := store.Put(rec)
	if err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if id != 1 {
		t.Errorf("first ID = %d, want 1", id)
	}

	got, err := store.Get(id)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.XID != 0xABCD {
		t.Errorf("XID = %#x, want 0xABCD", got.XID)
	}
	if got.CHAddr != "001122334455" {
		t.Errorf("CHAddr = %q", got.CHAddr)
	}
	if got.MsgType != "DHCPDISCOVER" {
		t.Errorf("MsgType = %q", got.MsgType)
	}
	if want := fingerprint.FromMessage(m0).Hash(); got.Fingerprint != want || want == "" {
		t.Errorf("Fingerprint = %q, want %q", got.Fingerprint, want)
	}
	if got.Src != "0.0.0.0:68" {
		t.Errorf("Src = %q", got.Src)
	}
	if !got.ReceivedAt.Equal(at) {
		t.Errorf("ReceivedAt = %v, want %v", got.ReceivedAt, at)
	}

	m, err := got.Decode(nil)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if m.XID != 0xABCD {
		t.Errorf("re-decoded XID = %#x", m.XID)
	}
}

func TestStoreGetMissing(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Get(42); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(42) error = %v, want ErrNotFound", err)
	}
}

func TestStoreListNewestFirst(t *testing.T) {
	store := newTestStore(t)
	for i := uint32(1); i <= 5; i++ {
		if _, err := store.Put(NewRecord(testRequest(t, "001122334455", i), time.Now())); err != nil {
			t.Fatalf("Put error: %v", err)
		}
	}

	recs, err := store.List(3)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("List(3) returned %d records", len(recs))
	}
	for i, want := range []uint32{5, 4, 3} {
		if recs[i].XID != want {
			t.Errorf("recs[%d].XID = %d, want %d", i, recs[i].XID, want)
		}
	}

	all, err := store.List(0)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("List(0) returned %d records, want 5", len(all))
	}
}

func TestStoreListByCHAddr(t *testing.T) {
	store := newTestStore(t)
	store.Put(NewRecord(testRequest(t, "001122334455", 1), time.Now()))
	store.Put(NewRecord(testRequest(t, "AABBCCDDEEFF", 2), time.Now()))
	store.Put(NewRecord(testRequest(t, "001122334455", 3), time.Now()))

	recs, err := store.ListByCHAddr("001122334455", 0)
	if err != nil {
		t.Fatalf("ListByCHAddr error: %v", err)
	}
	if len(recs) != 2 || recs[0].XID != 3 || recs[1].XID != 1 {
		t.Errorf("ListByCHAddr = %+v", recs)
	}

	recs, _ = store.ListByCHAddr("aabbccddeeff", 0)
	if len(recs) != 1 {
		t.Errorf("lowercase lookup returned %d records, want 1", len(recs))
	}
}

func TestStorePrune(t *testing.T) {
	store := newTestStore(t)
	for i := uint32(1); i <= 10; i++ {
		store.Put(NewRecord(testRequest(t, "001122334455", i), time.Now()))
	}

	removed, err := store.Prune(4)
	if err != nil {
		t.Fatalf("Prune error: %v", err)
	}
	if removed != 6 {
		t.Errorf("Prune removed %d, want 6", removed)
	}
	n, _ := store.Count()
	if n != 4 {
		t.Errorf("Count() = %d, want 4", n)
	}
	if _, err := store.Get(6); !errors.Is(err, ErrNotFound) {
		t.Error("oldest records survived Prune")
	}
	if _, err := store.Get(7); err != nil {
		t.Errorf("Get(7) error: %v", err)
	}

	removed, _ = store.Prune(100)
	if removed != 0 {
		t.Errorf("Prune above count removed %d", removed)
	}
}

func TestStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "captures.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	store.Put(NewRecord(testRequest(t, "001122334455", 1), time.Now()))
	store.Close()

	store, err = Open(path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer store.Close()

	id, err := store.Put(NewRecord(testRequest(t, "001122334455", 2), time.Now()))
	if err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if id != 2 {
		t.Errorf("ID after reopen = %d, want 2", id)
	}
}
