// Package transport implements the stateful query session against a single
// switch: a broadcast transmit socket, a reply socket, sequence/token
// correlation, and the login-per-write handshake the firmware expects.
//
// A session is strictly serial. Every query is send-then-block-on-receive;
// issuing a second request before the first reply would corrupt the token
// handshake, so sessions must not be shared across goroutines.
package transport

import (
	"errors"
	"fmt"
	"math/rand"
	"net"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/ipv4"

	"github.com/hausnet/easysmart/pkg/protocol"
)

// Sentinel errors shared with callers.
var (
	// ErrConnection covers socket errors and reply timeouts. Not retried
	// internally; the caller may retry the whole operation.
	ErrConnection = errors.New("connection problem")
	// ErrAuthentication is inferred from a non-zero error code in a write
	// response header; the protocol has no dedicated status field.
	ErrAuthentication = errors.New("authentication failed")
)

// DefaultTimeout bounds every blocking receive.
const DefaultTimeout = 10 * time.Second

// broadcastTTL keeps management datagrams on the local segment.
const broadcastTTL = 1

// maxFrameSize bounds a received datagram; the device never sends more
// than one MTU.
const maxFrameSize = 1500

// Options override the protocol's fixed endpoints, which package tests use
// to run a fake switch on loopback. The zero value selects production
// defaults.
type Options struct {
	// DeviceAddr is the request destination. Default 255.255.255.255:29808.
	DeviceAddr string
	// ListenAddr is the reply socket bind. Default 255.255.255.255:29809.
	ListenAddr string
	// SendPort is the transmit socket's local port. Default 29809; the
	// device addresses replies to this port on the broadcast domain.
	SendPort int
	// Timeout bounds each receive. Default 10s.
	Timeout time.Duration
	// Logger defaults to a nop logger.
	Logger *zap.Logger
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.DeviceAddr == "" {
		out.DeviceAddr = fmt.Sprintf("%s:%d", protocol.BroadcastAddr, protocol.DevicePort)
	}
	if out.ListenAddr == "" {
		out.ListenAddr = fmt.Sprintf("%s:%d", protocol.BroadcastAddr, protocol.HostPort)
	}
	if out.SendPort == 0 {
		out.SendPort = protocol.HostPort
	}
	if out.Timeout == 0 {
		out.Timeout = DefaultTimeout
	}
	if out.Logger == nil {
		out.Logger = zap.NewNop()
	}
	return out
}

// Session holds the per-device query state. Create one per logical
// operation; state is never persisted across runs.
type Session struct {
	switchMAC protocol.MAC
	hostMAC   protocol.MAC

	seq   int16 // monotonic mod 1000, bumped on every send
	token int16 // echoed from the last reply into the next request

	send    *net.UDPConn
	recv    *net.UDPConn
	dst     *net.UDPAddr
	timeout time.Duration
	log     *zap.Logger
}

// Open binds both session sockets on the given host interface address. The
// caller must Close the session on every path once Open succeeds.
func Open(hostIP net.IP, hostMAC, switchMAC protocol.MAC, opts Options) (*Session, error) {
	o := opts.withDefaults()

	dst, err := net.ResolveUDPAddr("udp4", o.DeviceAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve device addr: %v", ErrConnection, err)
	}

	// The net package enables SO_BROADCAST on UDP sockets, so broadcasting
	// to 255.255.255.255 needs no extra socket setup.
	send, err := net.ListenUDP("udp4", &net.UDPAddr{IP: hostIP, Port: o.SendPort})
	if err != nil {
		return nil, fmt.Errorf("%w: bind send socket: %v", ErrConnection, err)
	}
	if err := ipv4.NewPacketConn(send).SetTTL(broadcastTTL); err != nil {
		o.Logger.Debug("could not pin ttl on send socket", zap.Error(err))
	}

	listen, err := net.ResolveUDPAddr("udp4", o.ListenAddr)
	if err != nil {
		send.Close()
		return nil, fmt.Errorf("%w: resolve listen addr: %v", ErrConnection, err)
	}
	recv, err := net.ListenUDP("udp4", listen)
	if err != nil {
		send.Close()
		return nil, fmt.Errorf("%w: bind reply socket: %v", ErrConnection, err)
	}

	s := &Session{
		switchMAC: switchMAC,
		hostMAC:   hostMAC,
		seq:       int16(rand.Intn(1000)),
		send:      send,
		recv:      recv,
		dst:       dst,
		timeout:   o.Timeout,
		log:       o.Logger,
	}
	s.log.Debug("session open",
		zap.Stringer("switch_mac", switchMAC),
		zap.String("host", send.LocalAddr().String()),
		zap.String("device", dst.String()))
	return s, nil
}

// Close releases both sockets. Safe to call more than once.
func (s *Session) Close() error {
	var errs []error
	if s.send != nil {
		errs = append(errs, s.send.Close())
		s.send = nil
	}
	if s.recv != nil {
		errs = append(errs, s.recv.Close())
		s.recv = nil
	}
	return errors.Join(errs...)
}

// Send builds a header from the session state, bumps the sequence id and
// transmits one request. Callers almost always want Query instead.
func (s *Session) Send(op protocol.OpCode, fields []protocol.Field) error {
	s.seq = (s.seq + 1) % 1000
	p := &protocol.Packet{
		Header: protocol.Header{
			Version:    protocol.Version,
			Op:         op,
			SwitchMAC:  s.switchMAC,
			HostMAC:    s.hostMAC,
			SequenceID: s.seq,
			TokenID:    s.token,
		},
		Fields: fields,
	}
	wire, err := p.Marshal()
	if err != nil {
		return fmt.Errorf("marshal %s: %w", op, err)
	}
	if _, err := s.send.WriteToUDP(wire, s.dst); err != nil {
		return fmt.Errorf("%w: send %s: %v", ErrConnection, op, err)
	}
	s.log.Debug("request sent", zap.Stringer("op", op), zap.Int16("seq", s.seq), zap.Int("bytes", len(wire)))
	return nil
}

// Receive blocks for one reply, honoring the session timeout. Replies from
// a different switch MAC are dropped while the deadline allows, unless the
// session targets the zero MAC (discovery sweeps accept anyone). The reply
// token id is captured for the next outgoing header.
func (s *Session) Receive() (*protocol.Packet, error) {
	buf := make([]byte, maxFrameSize)
	deadline := time.Now().Add(s.timeout)
	for {
		if err := s.recv.SetReadDeadline(deadline); err != nil {
			return nil, fmt.Errorf("%w: set deadline: %v", ErrConnection, err)
		}
		n, from, err := s.recv.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return nil, fmt.Errorf("%w: timeout waiting for switch reply", ErrConnection)
			}
			return nil, fmt.Errorf("%w: receive: %v", ErrConnection, err)
		}

		pkt, err := protocol.Unmarshal(buf[:n])
		if err != nil {
			return nil, fmt.Errorf("reply from %s: %w", from, err)
		}

		if !s.switchMAC.IsZero() && pkt.Header.SwitchMAC != s.switchMAC {
			s.log.Debug("dropping reply from unexpected device",
				zap.Stringer("got", pkt.Header.SwitchMAC),
				zap.Stringer("want", s.switchMAC))
			continue
		}

		s.token = pkt.Header.TokenID
		s.log.Debug("reply received",
			zap.Stringer("op", pkt.Header.Op),
			zap.Int16("seq", pkt.Header.SequenceID),
			zap.Int16("token", pkt.Header.TokenID),
			zap.Int32("error_code", pkt.Header.ErrorCode))
		return pkt, nil
	}
}

// Query is one request/reply round trip.
func (s *Session) Query(op protocol.OpCode, fields []protocol.Field) (*protocol.Packet, error) {
	if err := s.Send(op, fields); err != nil {
		return nil, err
	}
	return s.Receive()
}

// QueryAll broadcasts one request and collects every reply that arrives
// within the session timeout. An empty result is not an error; discovery
// sweeps on a quiet segment legitimately find nothing.
func (s *Session) QueryAll(op protocol.OpCode, fields []protocol.Field) ([]*protocol.Packet, error) {
	if err := s.Send(op, fields); err != nil {
		return nil, err
	}

	var replies []*protocol.Packet
	buf := make([]byte, maxFrameSize)
	deadline := time.Now().Add(s.timeout)
	for {
		if err := s.recv.SetReadDeadline(deadline); err != nil {
			return replies, fmt.Errorf("%w: set deadline: %v", ErrConnection, err)
		}
		n, from, err := s.recv.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return replies, nil
			}
			return replies, fmt.Errorf("%w: receive: %v", ErrConnection, err)
		}
		pkt, err := protocol.Unmarshal(buf[:n])
		if err != nil {
			s.log.Debug("ignoring undecodable datagram", zap.String("from", from.String()), zap.Error(err))
			continue
		}
		s.token = pkt.Header.TokenID
		replies = append(replies, pkt)
	}
}

func loginFields(username, password string) []protocol.Field {
	return []protocol.Field{
		protocol.StringField(protocol.TypeUsername, username),
		protocol.StringField(protocol.TypePassword, password),
	}
}

// Login refreshes the session token and authenticates. The device does not
// signal bad credentials here; a wrong password only surfaces as a non-zero
// error code on the first write.
func (s *Session) Login(username, password string) error {
	if _, err := s.Query(protocol.OpGet, []protocol.Field{protocol.EmptyField(protocol.TypeTokenRequest)}); err != nil {
		return fmt.Errorf("token fetch: %w", err)
	}
	if _, err := s.Query(protocol.OpLogin, loginFields(username, password)); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	return nil
}

// Set performs one authenticated write: a token refresh, then a single
// Login-framed query carrying credentials plus the payload. Every write
// re-authenticates; the protocol keeps no session beyond token correlation.
// A non-zero error code in the reply header maps to ErrAuthentication.
func (s *Session) Set(username, password string, fields []protocol.Field) (*protocol.Packet, error) {
	if _, err := s.Query(protocol.OpGet, []protocol.Field{protocol.EmptyField(protocol.TypeTokenRequest)}); err != nil {
		return nil, fmt.Errorf("token fetch: %w", err)
	}
	payload := append(loginFields(username, password), fields...)
	resp, err := s.Query(protocol.OpLogin, payload)
	if err != nil {
		return nil, err
	}
	if resp.Header.ErrorCode != 0 {
		return resp, fmt.Errorf("%w: device error code %d", ErrAuthentication, resp.Header.ErrorCode)
	}
	return resp, nil
}
