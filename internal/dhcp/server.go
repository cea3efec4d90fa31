package dhcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/net/ipv4"

	"github.com/dhcpy/dhcpy/internal/metrics"
	"github.com/dhcpy/dhcpy/pkg/dhcpv4"
)

// Request is a decoded client message plus where it came from.
type Request struct {
	Message   *Message
	Raw       []byte // private copy of the datagram
	Src       net.Addr
	IfIndex   int    // 0 when the platform gives no control message
	Interface string // receiving interface name, if known
}

// Handler consumes decoded requests. It must be safe for concurrent use.
type Handler interface {
	HandleRequest(ctx context.Context, req *Request) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req *Request) error

func (f HandlerFunc) HandleRequest(ctx context.Context, req *Request) error {
	return f(ctx, req)
}

// Chain calls every handler in order and joins their errors.
func Chain(handlers ...Handler) Handler {
	return HandlerFunc(func(ctx context.Context, req *Request) error {
		var errs []error
		for _, h := range handlers {
			if err := h.HandleRequest(ctx, req); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// Server listens for DHCPv4 client traffic and hands decoded requests to a
// Handler. It never replies.
type Server struct {
	conn    *ipv4.PacketConn
	handler Handler
	decoder *Decoder
	logger  *slog.Logger
	addr    string
	iface   string
	wg      sync.WaitGroup
	done    chan struct{}
}

// NewServer creates a listener. addr defaults to ":67"; a nil decoder means
// a zero Decoder.
func NewServer(handler Handler, decoder *Decoder, iface, addr string, logger *slog.Logger) *Server {
	if addr == "" {
		addr = fmt.Sprintf(":%d", dhcpv4.ServerPort)
	}
	if decoder == nil {
		decoder = &Decoder{}
	}
	return &Server{
		handler: handler,
		decoder: decoder,
		logger:  logger,
		addr:    addr,
		iface:   iface,
		done:    make(chan struct{}),
	}
}

// Start binds the UDP socket and begins serving in the background.
func (s *Server) Start(ctx context.Context) error {
	l, err := net.ListenPacket("udp4", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}
	s.conn = ipv4.NewPacketConn(l)
	if err := s.conn.SetControlMessage(ipv4.FlagInterface, true); err != nil {
		// Still usable, just without per-packet interface info.
		s.logger.Warn("interface control messages unavailable", "error", err)
	}

	s.logger.Info("DHCP listener started",
		"address", l.LocalAddr().String(),
		"interface", s.iface)
	metrics.ServerStartTime.SetToCurrentTime()

	s.wg.Add(1)
	go s.serve(ctx)

	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

func (s *Server) serve(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		default:
		}

		buf := GetBuffer()
		n, cm, src, err := s.conn.ReadFrom(buf)
		if err != nil {
			PutBuffer(buf)
			select {
			case <-s.done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("reading UDP packet", "error", err)
			continue
		}

		ifIndex := 0
		if cm != nil {
			ifIndex = cm.IfIndex
		}

		s.wg.Add(1)
		go func(data []byte, length int, src net.Addr, ifIndex int) {
			defer s.wg.Done()
			defer PutBuffer(data)

			s.processPacket(ctx, data[:length], src, ifIndex)
		}(buf, n, src, ifIndex)
	}
}

func (s *Server) processPacket(ctx context.Context, data []byte, src net.Addr, ifIndex int) {
	start := time.Now()
	defer func() {
		metrics.ProcessingDuration.Observe(time.Since(start).Seconds())
	}()

	msg, err := s.decoder.Decode(data)
	if err != nil {
		metrics.PacketsDropped.WithLabelValues("decode_error").Inc()
		s.logger.Warn("dropping malformed packet",
			"error", err,
			"kind", dhcpv4.ErrorKind(err),
			"src", src.String(),
			"size", len(data))
		return
	}

	if msg.Op != dhcpv4.OpCodeBootRequest {
		metrics.PacketsDropped.WithLabelValues("not_request").Inc()
		return
	}

	req := &Request{
		Message:   msg,
		Raw:       append([]byte(nil), data...),
		Src:       src,
		IfIndex:   ifIndex,
		Interface: s.interfaceName(ifIndex),
	}

	mt, _ := msg.MessageType()
	s.logger.Debug("received DHCP message",
		"msg_type", mt.String(),
		"xid", msg.XID,
		"chaddr", msg.CHAddr,
		"interface", req.Interface)

	if err := s.handler.HandleRequest(ctx, req); err != nil {
		s.logger.Error("handling DHCP message",
			"error", err,
			"chaddr", msg.CHAddr,
			"msg_type", mt.String())
	}
}

func (s *Server) interfaceName(ifIndex int) string {
	if ifIndex == 0 {
		return s.iface
	}
	ifi, err := net.InterfaceByIndex(ifIndex)
	if err != nil {
		return s.iface
	}
	return ifi.Name
}

// Stop closes the socket and waits for in-flight handlers.
func (s *Server) Stop() {
	close(s.done)
	if s.conn != nil {
		s.conn.Close()
	}
	s.wg.Wait()
	s.logger.Info("DHCP listener stopped")
}
