// Package client exposes typed operations against one Easy Smart switch:
// the VLAN and PVID tables, the 802.1Q mode flag, network settings, and a
// segment-wide discovery sweep. Every operation maps to one or more
// request/reply round trips on an underlying transport session.
package client

import (
	"fmt"
	"net"

	"go.uber.org/zap"

	"github.com/hausnet/easysmart/pkg/protocol"
	"github.com/hausnet/easysmart/pkg/transport"
)

// Conn is the session surface the client drives. *transport.Session
// implements it; tests substitute an in-memory fake.
type Conn interface {
	Query(op protocol.OpCode, fields []protocol.Field) (*protocol.Packet, error)
	QueryAll(op protocol.OpCode, fields []protocol.Field) ([]*protocol.Packet, error)
	Set(username, password string, fields []protocol.Field) (*protocol.Packet, error)
	Login(username, password string) error
	Close() error
}

// Client talks to a single switch. Not safe for concurrent use; the
// underlying session is strictly serial.
type Client struct {
	conn     Conn
	username string
	password string
	log      *zap.Logger
}

// Dial opens a session bound to the given host interface and logs in.
// Login is fire-and-forget by protocol design: bad credentials only
// surface as an authentication error on the first write.
func Dial(hostIP net.IP, hostMAC, switchMAC protocol.MAC, username, password string, opts transport.Options) (*Client, error) {
	s, err := transport.Open(hostIP, hostMAC, switchMAC, opts)
	if err != nil {
		return nil, err
	}
	c, err := New(s, username, password, opts.Logger)
	if err != nil {
		s.Close()
		return nil, err
	}
	return c, nil
}

// DialAnonymous opens a session without logging in. Read-only queries and
// discovery sweeps do not require authentication.
func DialAnonymous(hostIP net.IP, hostMAC, switchMAC protocol.MAC, opts transport.Options) (*Client, error) {
	s, err := transport.Open(hostIP, hostMAC, switchMAC, opts)
	if err != nil {
		return nil, err
	}
	return &Client{conn: s, log: logOrNop(opts.Logger)}, nil
}

// New wraps an existing connection and performs the login handshake.
func New(conn Conn, username, password string, log *zap.Logger) (*Client, error) {
	c := &Client{conn: conn, username: username, password: password, log: logOrNop(log)}
	if err := conn.Login(username, password); err != nil {
		return nil, err
	}
	return c, nil
}

func logOrNop(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}

// Close releases the underlying session.
func (c *Client) Close() error { return c.conn.Close() }

// VLANEnabled reports whether 802.1Q VLAN mode is active.
func (c *Client) VLANEnabled() (bool, error) {
	resp, err := c.conn.Query(protocol.OpGet, []protocol.Field{protocol.EmptyField(protocol.TypeVLANEnabled)})
	if err != nil {
		return false, fmt.Errorf("get vlan mode: %w", err)
	}
	for _, f := range resp.Fields {
		if f.Type == protocol.TypeVLANEnabled {
			return f.Nonzero(), nil
		}
	}
	return false, nil
}

// SetVLANEnabled switches 802.1Q VLAN mode on or off.
func (c *Client) SetVLANEnabled(enabled bool) error {
	_, err := c.conn.Set(c.username, c.password, []protocol.Field{protocol.BoolField(protocol.TypeVLANEnabled, enabled)})
	if err != nil {
		return fmt.Errorf("set vlan mode %v: %w", enabled, err)
	}
	c.log.Info("vlan mode set", zap.Bool("enabled", enabled))
	return nil
}

// VLANs reads the whole VLAN table in one query.
func (c *Client) VLANs() ([]protocol.VLANEntry, error) {
	resp, err := c.conn.Query(protocol.OpGet, []protocol.Field{protocol.EmptyField(protocol.TypeVLAN)})
	if err != nil {
		return nil, fmt.Errorf("get vlans: %w", err)
	}
	var out []protocol.VLANEntry
	for _, f := range resp.Fields {
		if f.Type != protocol.TypeVLAN || len(f.Value) == 0 {
			continue
		}
		e, err := f.VLAN()
		if err != nil {
			return nil, fmt.Errorf("get vlans: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// SetVLANs writes VLAN entries. The firmware accepts only one VLAN
// composite per write, so this fans out to one authenticated round trip
// per entry; it is not an atomic batch.
func (c *Client) SetVLANs(entries []protocol.VLANEntry) error {
	for _, e := range entries {
		if _, err := c.conn.Set(c.username, c.password, []protocol.Field{protocol.VLANField(e)}); err != nil {
			return fmt.Errorf("set vlan %d (%s): %w", e.ID, e.Name, err)
		}
		c.log.Info("vlan written",
			zap.Uint16("vlan_id", e.ID),
			zap.String("name", e.Name),
			zap.Ints("members", e.Members.Ports()),
			zap.Ints("tagged", e.Tagged.Ports()))
	}
	return nil
}

// PVIDs reads the PVID table.
func (c *Client) PVIDs() ([]protocol.PortVLAN, error) {
	resp, err := c.conn.Query(protocol.OpGet, []protocol.Field{protocol.EmptyField(protocol.TypePVID)})
	if err != nil {
		return nil, fmt.Errorf("get pvids: %w", err)
	}
	var out []protocol.PortVLAN
	for _, f := range resp.Fields {
		if f.Type != protocol.TypePVID || len(f.Value) == 0 {
			continue
		}
		pv, err := f.PVID()
		if err != nil {
			return nil, fmt.Errorf("get pvids: %w", err)
		}
		out = append(out, pv)
	}
	return out, nil
}

// SetPVIDs writes PVID assignments, one round trip per port as with
// SetVLANs.
func (c *Client) SetPVIDs(pvids []protocol.PortVLAN) error {
	for _, pv := range pvids {
		if _, err := c.conn.Set(c.username, c.password, []protocol.Field{protocol.PVIDField(pv)}); err != nil {
			return fmt.Errorf("set pvid %d on port %d: %w", pv.VLAN, pv.Port, err)
		}
		c.log.Info("pvid written", zap.Int("port", pv.Port), zap.Uint16("vlan_id", pv.VLAN))
	}
	return nil
}

// NetConfig is the device's IP configuration.
type NetConfig struct {
	DHCP    bool
	IP      net.IP
	Mask    net.IP // the device reports the mask as a dotted address
	Gateway net.IP
}

// NetConfig reads the device's current IP configuration. No login needed.
func (c *Client) NetConfig() (NetConfig, error) {
	resp, err := c.conn.Query(protocol.OpGet, []protocol.Field{protocol.EmptyField(protocol.TypeDHCP)})
	if err != nil {
		return NetConfig{}, fmt.Errorf("get net config: %w", err)
	}
	var cfg NetConfig
	for _, f := range resp.Fields {
		switch f.Type {
		case protocol.TypeDHCP:
			cfg.DHCP = f.Bool()
		case protocol.TypeIPAddr:
			cfg.IP = f.IP()
		case protocol.TypeIPMask:
			cfg.Mask = f.IP()
		case protocol.TypeGateway:
			cfg.Gateway = f.IP()
		}
	}
	return cfg, nil
}

// SetCredentials replaces the device's username and password. The current
// credentials are sent both as the authentication fields and as the
// explicit password field the firmware wants alongside the new values.
func (c *Client) SetCredentials(currentUser, currentPass, newUser, newPass string) error {
	fields := []protocol.Field{
		protocol.StringField(protocol.TypePassword, currentPass),
		protocol.StringField(protocol.TypeNewUsername, newUser),
		protocol.StringField(protocol.TypeNewPassword, newPass),
	}
	if _, err := c.conn.Set(currentUser, currentPass, fields); err != nil {
		return fmt.Errorf("set credentials: %w", err)
	}
	c.username, c.password = newUser, newPass
	c.log.Info("credentials replaced", zap.String("username", newUser))
	return nil
}

// SetNetConfig writes the device's IP configuration using the client's
// current credentials.
func (c *Client) SetNetConfig(cfg NetConfig) error {
	ipf, err := protocol.IPField(protocol.TypeIPAddr, cfg.IP)
	if err != nil {
		return fmt.Errorf("set net config: %w", err)
	}
	maskf, err := protocol.IPField(protocol.TypeIPMask, cfg.Mask)
	if err != nil {
		return fmt.Errorf("set net config: %w", err)
	}
	gwf, err := protocol.IPField(protocol.TypeGateway, cfg.Gateway)
	if err != nil {
		return fmt.Errorf("set net config: %w", err)
	}
	fields := []protocol.Field{
		protocol.BoolField(protocol.TypeDHCP, cfg.DHCP),
		ipf, maskf, gwf,
	}
	if _, err := c.conn.Set(c.username, c.password, fields); err != nil {
		return fmt.Errorf("set net config: %w", err)
	}
	c.log.Info("net config written",
		zap.Bool("dhcp", cfg.DHCP),
		zap.Stringer("ip", cfg.IP),
		zap.Stringer("mask", cfg.Mask),
		zap.Stringer("gateway", cfg.Gateway))
	return nil
}

// DeviceInfo is one discovery reply.
type DeviceInfo struct {
	Model    string `json:"model,omitempty"`
	Hostname string `json:"hostname,omitempty"`
	MAC      string `json:"mac"`
	IP       string `json:"ip,omitempty"`
	Mask     string `json:"mask,omitempty"`
	Gateway  string `json:"gateway,omitempty"`
	Firmware string `json:"firmware,omitempty"`
	Hardware string `json:"hardware,omitempty"`
	DHCP     bool   `json:"dhcp"`
	Ports    int    `json:"ports,omitempty"`
}

// Discover broadcasts a discovery request and decodes every device that
// answers within the session timeout. Use with a zero switch MAC so the
// reply filter accepts all devices.
func (c *Client) Discover() ([]DeviceInfo, error) {
	replies, err := c.conn.QueryAll(protocol.OpDiscovery, nil)
	if err != nil {
		return nil, fmt.Errorf("discovery sweep: %w", err)
	}
	out := make([]DeviceInfo, 0, len(replies))
	for _, r := range replies {
		info := DeviceInfo{MAC: r.Header.SwitchMAC.String()}
		for _, f := range r.Fields {
			switch f.Type {
			case protocol.TypeDeviceType:
				info.Model = f.ASCII()
			case protocol.TypeHostname:
				info.Hostname = f.ASCII()
			case protocol.TypeIPAddr:
				info.IP = ipString(f.IP())
			case protocol.TypeIPMask:
				info.Mask = ipString(f.IP())
			case protocol.TypeGateway:
				info.Gateway = ipString(f.IP())
			case protocol.TypeFirmware:
				info.Firmware = f.ASCII()
			case protocol.TypeHardware:
				info.Hardware = f.ASCII()
			case protocol.TypeDHCP:
				info.DHCP = f.Bool()
			case protocol.TypeNumPorts:
				info.Ports = int(f.Uint())
			}
		}
		out = append(out, info)
	}
	return out, nil
}

func ipString(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}
