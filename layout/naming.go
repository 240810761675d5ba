package layout

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/modelrail/go-trackside/protocol"
)

// DefaultPort is assumed when an entity name omits the port of its remote
// endpoint.
const DefaultPort = 10000

// Endpoint identifies the remote peripheral an entity lives on.
type Endpoint struct {
	Host string
	Port int
}

// Alias returns the lowercase-normalized endpoint identity.
func (e Endpoint) Alias() string {
	return strings.ToLower(e.Host + ":" + strconv.Itoa(e.Port))
}

// SensorName is the decoded form of a sensor entity name,
// "<prefix>$<gpio>:<host>[:<port>]", e.g. "IS.RPI$5:pi3b:14200".
type SensorName struct {
	GPIO     int
	Endpoint Endpoint
}

// TurnoutName is the decoded form of a turnout entity name,
// "<prefix>$<servo>[<thrown>][<closed>]:<host>[:<port>]",
// e.g. "IT.RPI$3[85][95]:pi3b:14200".
type TurnoutName struct {
	Servo       int
	ThrownAngle int
	ClosedAngle int
	Endpoint    Endpoint
}

// SignalHeadName is the decoded form of a signal head entity name,
// "<prefix>$<head>$<boardHex>$R<red>$G<green>:<host>[:<port>]",
// e.g. "IH.RPI$SM1-SH1$0x24$R6$G14:pi3b:14200". Target is the middle
// section verbatim; it becomes the target field of OUT_SH frames.
type SignalHeadName struct {
	Target   string
	Endpoint Endpoint
}

// ParseSensorName decodes a sensor entity name.
func ParseSensorName(name string) (SensorName, error) {
	local, endpoint, err := splitEndpoint(name)
	if err != nil {
		return SensorName{}, fmt.Errorf("sensor name %q: %w", name, err)
	}

	parts := strings.Split(local, "$")
	if len(parts) != 2 {
		return SensorName{}, fmt.Errorf("sensor name %q: want <prefix>$<gpio>", name)
	}

	gpio, err := strconv.Atoi(parts[1])
	if err != nil || gpio < 0 {
		return SensorName{}, fmt.Errorf("sensor name %q: invalid gpio %q", name, parts[1])
	}

	return SensorName{GPIO: gpio, Endpoint: endpoint}, nil
}

// ParseTurnoutName decodes a turnout entity name.
func ParseTurnoutName(name string) (TurnoutName, error) {
	local, endpoint, err := splitEndpoint(name)
	if err != nil {
		return TurnoutName{}, fmt.Errorf("turnout name %q: %w", name, err)
	}

	parts := strings.Split(local, "$")
	if len(parts) != 2 {
		return TurnoutName{}, fmt.Errorf("turnout name %q: want <prefix>$<servo>[<thrown>][<closed>]", name)
	}

	// decode the target exactly as the wire grammar would
	cmd, err := protocol.Parse("OUT_TO:" + parts[1] + ":0")
	if err != nil {
		return TurnoutName{}, fmt.Errorf("turnout name %q: invalid target %q", name, parts[1])
	}

	set, ok := cmd.(protocol.TurnoutSet)
	if !ok {
		return TurnoutName{}, fmt.Errorf("turnout name %q: invalid target %q", name, parts[1])
	}

	return TurnoutName{
		Servo:       set.Servo,
		ThrownAngle: set.ThrownAngle,
		ClosedAngle: set.ClosedAngle,
		Endpoint:    endpoint,
	}, nil
}

// ParseSignalHeadName decodes a signal head entity name.
func ParseSignalHeadName(name string) (SignalHeadName, error) {
	local, endpoint, err := splitEndpoint(name)
	if err != nil {
		return SignalHeadName{}, fmt.Errorf("signal head name %q: %w", name, err)
	}

	sep := strings.IndexByte(local, '$')
	if sep < 0 {
		return SignalHeadName{}, fmt.Errorf("signal head name %q: missing target", name)
	}

	target := local[sep+1:]

	// the target must form a valid OUT_SH frame
	if _, err := protocol.Parse("OUT_SH:" + target + ":d"); err != nil {
		return SignalHeadName{}, fmt.Errorf("signal head name %q: invalid target %q", name, target)
	}

	return SignalHeadName{Target: target, Endpoint: endpoint}, nil
}

// splitEndpoint separates "<local>:<host>[:<port>]" into the local part
// and the endpoint, applying DefaultPort when the port is omitted.
func splitEndpoint(name string) (string, Endpoint, error) {
	tokens := strings.Split(name, ":")
	if len(tokens) != 2 && len(tokens) != 3 {
		return "", Endpoint{}, fmt.Errorf("want <local>:<host>[:<port>]")
	}

	host := strings.TrimSpace(tokens[1])
	if host == "" {
		return "", Endpoint{}, fmt.Errorf("empty host")
	}

	port := DefaultPort
	if len(tokens) == 3 {
		p, err := strconv.Atoi(strings.TrimSpace(tokens[2]))
		if err != nil || p < 1 || p > 65535 {
			return "", Endpoint{}, fmt.Errorf("invalid port %q", tokens[2])
		}
		port = p
	}

	return tokens[0], Endpoint{Host: host, Port: port}, nil
}
