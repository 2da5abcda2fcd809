// Package ownership moves a factory-reset switch onto the caller's network:
// it replaces the factory credentials and writes a static IP configuration
// derived from the host interface. The device reboots its management plane
// after the address change, so the flow is one-shot per device.
package ownership

import (
	"errors"
	"fmt"
	"net"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hausnet/easysmart/pkg/client"
	"github.com/hausnet/easysmart/pkg/hostaddr"
	"github.com/hausnet/easysmart/pkg/protocol"
	"github.com/hausnet/easysmart/pkg/transport"
)

// Factory credentials every device ships with.
const (
	FactoryUsername = "admin"
	FactoryPassword = "admin"
)

// ErrInvalidSettings flags a target configuration that cannot be applied.
var ErrInvalidSettings = errors.New("invalid ownership settings")

// Settings is the identity the device should end up with.
type Settings struct {
	SwitchIP  net.IP
	SwitchMAC protocol.MAC
	Username  string
	Password  string
}

// Validate rejects settings the flow cannot express on the wire.
func (s Settings) Validate() error {
	if s.SwitchIP == nil || s.SwitchIP.To4() == nil {
		return fmt.Errorf("%w: switch ip must be ipv4, got %v", ErrInvalidSettings, s.SwitchIP)
	}
	if s.SwitchMAC.IsZero() {
		return fmt.Errorf("%w: switch mac is required", ErrInvalidSettings)
	}
	if s.Username == "" || s.Password == "" {
		return fmt.Errorf("%w: username and password are required", ErrInvalidSettings)
	}
	return nil
}

// Device is the narrow client surface the flow needs. *client.Client
// satisfies it.
type Device interface {
	NetConfig() (client.NetConfig, error)
	SetCredentials(currentUser, currentPass, newUser, newPass string) error
	SetNetConfig(cfg client.NetConfig) error
}

// Result is the machine-readable outcome of one take-ownership run.
type Result struct {
	RunID   string `json:"run_id"`
	Changed bool   `json:"changed"`
	DryRun  bool   `json:"dry_run,omitempty"`
	Message string `json:"message"`
	IP      string `json:"ip,omitempty"`
	Mask    string `json:"mask,omitempty"`
	Gateway string `json:"gateway,omitempty"`
	DHCP    bool   `json:"dhcp"`
}

func maskToIP(m net.IPMask) net.IP {
	if len(m) == net.IPv4len {
		return net.IPv4(m[0], m[1], m[2], m[3])
	}
	return nil
}

func configsEqual(a, b client.NetConfig) bool {
	return a.DHCP == b.DHCP &&
		a.IP.Equal(b.IP) &&
		a.Mask.Equal(b.Mask) &&
		a.Gateway.Equal(b.Gateway)
}

// Take reads the device's current addressing, and when it differs from the
// derived target, replaces the factory credentials and writes the static
// configuration. host must be the local interface on the device's
// destination subnet, not the factory one: its netmask becomes the
// device's, and its address becomes the gateway, so the managing
// workstation is the device's only route.
func Take(dev Device, host hostaddr.Host, settings Settings, dryRun bool, log *zap.Logger) (Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := settings.Validate(); err != nil {
		return Result{}, err
	}
	hostNet := host.IP.Mask(host.Mask)
	if !settings.SwitchIP.To4().Mask(host.Mask).Equal(hostNet) {
		return Result{}, fmt.Errorf("%w: switch ip %s is outside %s's network %s",
			ErrInvalidSettings, settings.SwitchIP, host.Interface, hostNet)
	}

	desired := client.NetConfig{
		DHCP:    false,
		IP:      settings.SwitchIP.To4(),
		Mask:    maskToIP(host.Mask),
		Gateway: host.IP,
	}
	result := Result{
		RunID:   uuid.NewString(),
		DryRun:  dryRun,
		IP:      desired.IP.String(),
		Mask:    desired.Mask.String(),
		Gateway: desired.Gateway.String(),
	}

	actual, err := dev.NetConfig()
	if err != nil {
		return result, fmt.Errorf("read device addressing: %w", err)
	}
	if configsEqual(actual, desired) {
		result.Message = "device already carries the target configuration"
		return result, nil
	}
	result.Changed = true
	if dryRun {
		result.Message = "would replace factory credentials and assign static addressing"
		return result, nil
	}

	if err := dev.SetCredentials(FactoryUsername, FactoryPassword, settings.Username, settings.Password); err != nil {
		return result, fmt.Errorf("replace factory credentials: %w", err)
	}
	log.Info("factory credentials replaced", zap.String("username", settings.Username))

	if err := dev.SetNetConfig(desired); err != nil {
		return result, fmt.Errorf("write static addressing: %w", err)
	}
	log.Info("static addressing written",
		zap.Stringer("ip", desired.IP),
		zap.Stringer("mask", desired.Mask),
		zap.Stringer("gateway", desired.Gateway))

	result.Message = "device adopted; it is reachable at the new address after its management plane restarts"
	return result, nil
}

// Run resolves two local interfaces: the factory-subnet one carries the
// UDP session (the device still answers on 192.168.0.0/24), while the one
// sharing the target address's subnet supplies the permanent netmask and
// gateway. It then dials with factory credentials and executes the flow.
func Run(settings Settings, dryRun bool, opts transport.Options, log *zap.Logger) (Result, error) {
	factory, err := hostaddr.FindFactoryDefault()
	if err != nil {
		return Result{}, err
	}
	target, err := hostaddr.FindForTarget(settings.SwitchIP)
	if err != nil {
		return Result{}, err
	}
	c, err := client.Dial(factory.IP, factory.MAC, settings.SwitchMAC, FactoryUsername, FactoryPassword, opts)
	if err != nil {
		return Result{}, err
	}
	defer c.Close()
	return Take(c, target, settings, dryRun, log)
}
