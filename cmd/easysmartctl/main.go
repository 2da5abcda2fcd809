package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hausnet/easysmart/pkg/client"
	"github.com/hausnet/easysmart/pkg/hostaddr"
	"github.com/hausnet/easysmart/pkg/logging"
	"github.com/hausnet/easysmart/pkg/ownership"
	"github.com/hausnet/easysmart/pkg/params"
	"github.com/hausnet/easysmart/pkg/protocol"
	"github.com/hausnet/easysmart/pkg/reconcile"
	"github.com/hausnet/easysmart/pkg/transport"
)

var log *zap.Logger

// --- Output helpers ---

// output prints the result record to stdout. stdout carries nothing else;
// logs go to stderr or the log file.
func output(data interface{}) {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		fatalCode("internal", "encode result: %v", err)
	}
	fmt.Println(string(b))
}

func fatalCode(code string, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	b, _ := json.Marshal(map[string]string{
		"status":  "error",
		"code":    code,
		"message": msg,
	})
	fmt.Fprintln(os.Stderr, string(b))
	os.Exit(1)
}

// fatal maps a sentinel error to its stable code and exits.
func fatal(err error) {
	switch {
	case errors.Is(err, transport.ErrAuthentication):
		fatalCode("authentication_failure", "%v", err)
	case errors.Is(err, transport.ErrConnection):
		fatalCode("connection_problem", "%v", err)
	case errors.Is(err, protocol.ErrMalformedPacket):
		fatalCode("malformed_packet", "%v", err)
	case errors.Is(err, hostaddr.ErrNoInterface):
		fatalCode("no_interface", "%v", err)
	case errors.Is(err, params.ErrInvalidParams),
		errors.Is(err, reconcile.ErrInvalidVLAN),
		errors.Is(err, ownership.ErrInvalidSettings):
		fatalCode("invalid_params", "%v", err)
	default:
		fatalCode("internal", "%v", err)
	}
}

// --- Arg parsing helpers ---

// parseFlags extracts --key=value and --flag from args, returns remaining
// positional args.
func parseFlags(args []string) (map[string]string, []string) {
	flags := map[string]string{}
	var pos []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if strings.HasPrefix(a, "--") {
			key := a[2:]
			if idx := strings.Index(key, "="); idx >= 0 {
				flags[key[:idx]] = key[idx+1:]
			} else if i+1 < len(args) && !strings.HasPrefix(args[i+1], "--") {
				flags[key] = args[i+1]
				i++
			} else {
				flags[key] = "true"
			}
		} else {
			pos = append(pos, a)
		}
	}
	return flags, pos
}

func flagString(flags map[string]string, key string, def string) string {
	if v, ok := flags[key]; ok {
		return v
	}
	return def
}

func flagBool(flags map[string]string, key string) bool {
	v, ok := flags[key]
	return ok && (v == "true" || v == "1" || v == "")
}

func flagDuration(flags map[string]string, key string, def time.Duration) time.Duration {
	v, ok := flags[key]
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		fatalCode("invalid_params", "invalid duration for --%s: %v", key, err)
	}
	return d
}

func loadBundle(flags map[string]string) *params.Bundle {
	path := flagString(flags, "params", "")
	if path == "" {
		fatalCode("invalid_params", "--params <file> is required")
	}
	b, err := params.Load(path)
	if err != nil {
		fatal(err)
	}
	return b
}

// --- Usage ---

func usage() {
	fmt.Fprintf(os.Stderr, `easysmartctl — Easy Smart switch management

Commands:
  easysmartctl vlan --params <file> [--check]
  easysmartctl takeown --params <file> [--check]
  easysmartctl discover [--timeout <dur>]

Flags:
  --params <file>      YAML parameter bundle (switch identity, credentials, vlans)
  --check              Plan only; report what would change without writing
  --timeout <dur>      Reply wait per round trip (default 10s)
  --log-level <level>  debug, info, warn, error (default info)
  --log-format <fmt>   console or json (default console)
  --log-file <path>    Log to a rotated file instead of stderr

Output:
  stdout carries a single JSON result record. Errors are JSON envelopes
  on stderr: {status:error, code:string, message:string}.

Error codes:
  invalid_params          Bad bundle or usage (do not retry)
  no_interface            No local interface on the device subnet
  connection_problem      Send failure or reply timeout (may retry)
  authentication_failure  Device rejected the write credentials
  malformed_packet        Undecodable reply from the device
  internal                Unexpected error
`)
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	cmd := os.Args[1]
	flags, _ := parseFlags(os.Args[2:])

	log = logging.New(
		flagString(flags, "log-level", "info"),
		flagString(flags, "log-format", "console"),
		flagString(flags, "log-file", ""),
	)
	defer log.Sync()

	switch cmd {
	case "vlan":
		cmdVLAN(flags)
	case "takeown":
		cmdTakeOwnership(flags)
	case "discover":
		cmdDiscover(flags)
	default:
		usage()
	}
}

func sessionOptions(flags map[string]string) transport.Options {
	return transport.Options{
		Timeout: flagDuration(flags, "timeout", transport.DefaultTimeout),
		Logger:  log,
	}
}

// cmdVLAN reconciles the device's VLAN table with the bundle.
func cmdVLAN(flags map[string]string) {
	bundle := loadBundle(flags)
	dryRun := flagBool(flags, "check")

	host, err := hostaddr.FindForTarget(bundle.SwitchIPAddr())
	if err != nil {
		fatal(err)
	}
	log.Info("using interface",
		zap.String("interface", host.Interface),
		zap.Stringer("host_ip", host.IP))

	c, err := client.Dial(host.IP, host.MAC, bundle.SwitchMACAddr(),
		bundle.Username, bundle.Password, sessionOptions(flags))
	if err != nil {
		fatal(err)
	}
	defer c.Close()

	result, err := reconcile.Run(c, bundle.Spec(), dryRun, log)
	if err != nil {
		fatal(err)
	}
	output(struct {
		Interface string `json:"interface"`
		HostIP    string `json:"host_ip"`
		reconcile.Result
	}{host.Interface, host.IP.String(), result})
}

// cmdTakeOwnership adopts a factory-reset device.
func cmdTakeOwnership(flags map[string]string) {
	bundle := loadBundle(flags)
	dryRun := flagBool(flags, "check")

	settings := ownership.Settings{
		SwitchIP:  bundle.SwitchIPAddr(),
		SwitchMAC: bundle.SwitchMACAddr(),
		Username:  bundle.Username,
		Password:  bundle.Password,
	}
	result, err := ownership.Run(settings, dryRun, sessionOptions(flags), log)
	if err != nil {
		fatal(err)
	}
	output(result)
}

// cmdDiscover sweeps the local segment for devices.
func cmdDiscover(flags map[string]string) {
	host, err := hostaddr.First()
	if err != nil {
		fatal(err)
	}
	log.Info("sweeping segment",
		zap.String("interface", host.Interface),
		zap.Stringer("host_ip", host.IP))

	opts := sessionOptions(flags)
	if _, ok := flags["timeout"]; !ok {
		// A sweep waits out the full window; keep the default short.
		opts.Timeout = 3 * time.Second
	}
	c, err := client.DialAnonymous(host.IP, host.MAC, protocol.MACZero, opts)
	if err != nil {
		fatal(err)
	}
	defer c.Close()

	devices, err := c.Discover()
	if err != nil {
		fatal(err)
	}
	output(map[string]interface{}{
		"devices": devices,
		"total":   len(devices),
	})
}
