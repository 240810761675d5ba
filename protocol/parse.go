package protocol

import (
	"strconv"
	"strings"
)

// Parse decodes one wire frame into a typed Command.
//
// The frame must not contain the '|' delimiter or heartbeat spaces; both are
// handled by the link layer before frames reach the parser. Any mismatch
// against the grammar returns a *ParseError referencing the raw frame.
func Parse(frame string) (Command, error) {
	tokens := strings.Split(frame, ":")
	if len(tokens) < 2 {
		return nil, parseErrorf(frame, "not enough tokens for a command")
	}

	switch strings.ToUpper(tokens[0]) {
	case "IN":
		return parseSensor(frame, tokens)
	case "OUT_TO":
		return parseTurnout(frame, tokens)
	case "OUT_SH":
		return parseSignalHead(frame, tokens)
	default:
		return nil, parseErrorf(frame, ErrUnknownCommand.Error()+" "+tokens[0])
	}
}

func parseSensor(frame string, tokens []string) (Command, error) {
	gpio, err := strconv.Atoi(tokens[1])
	if err != nil || gpio < 0 {
		return nil, parseErrorf(frame, "invalid sensor gpio")
	}

	switch len(tokens) {
	case 2:
		return SensorRegister{GPIO: gpio}, nil
	case 3:
		switch tokens[2] {
		case "0":
			return SensorReport{GPIO: gpio, Level: false}, nil
		case "1":
			return SensorReport{GPIO: gpio, Level: true}, nil
		default:
			return nil, parseErrorf(frame, "sensor level must be 0 or 1")
		}
	default:
		return nil, parseErrorf(frame, "wrong number of tokens for sensor command")
	}
}

func parseTurnout(frame string, tokens []string) (Command, error) {
	if len(tokens) != 3 {
		return nil, parseErrorf(frame, "not enough parameters for servo control")
	}

	servo, thrown, closed, ok := parseTurnoutTarget(tokens[1])
	if !ok {
		return nil, parseErrorf(frame, "could not parse parameters for servo control")
	}

	var active bool
	switch tokens[2] {
	case "0":
		active = false
	case "1":
		active = true
	default:
		return nil, parseErrorf(frame, "turnout state must be 0 or 1")
	}

	return TurnoutSet{
		Servo:       servo,
		ThrownAngle: thrown,
		ClosedAngle: closed,
		Active:      active,
	}, nil
}

// parseTurnoutTarget decodes "<servo>[<thrown>][<closed>]".
func parseTurnoutTarget(s string) (servo, thrown, closed int, ok bool) {
	rest := s

	servo, rest, ok = scanInt(rest)
	if !ok {
		return 0, 0, 0, false
	}

	thrown, rest, ok = scanBracketed(rest)
	if !ok {
		return 0, 0, 0, false
	}

	closed, rest, ok = scanBracketed(rest)
	if !ok || rest != "" {
		return 0, 0, 0, false
	}

	return servo, thrown, closed, true
}

func parseSignalHead(frame string, tokens []string) (Command, error) {
	if len(tokens) != 3 {
		return nil, parseErrorf(frame, "not enough parameters for signal head control")
	}

	parts := strings.Split(tokens[1], "$")
	if len(parts) != 4 {
		return nil, parseErrorf(frame, "signal head target must have id, board and two pins")
	}

	headID := parts[0]
	if headID == "" {
		return nil, parseErrorf(frame, "empty signal head id")
	}

	board, err := strconv.ParseInt(strings.TrimPrefix(parts[1], "0x"), 16, 32)
	if err != nil || board < 0 {
		return nil, parseErrorf(frame, "invalid board address "+parts[1])
	}

	redPin, ok := scanPin(parts[2], 'R')
	if !ok {
		return nil, parseErrorf(frame, "invalid red pin "+parts[2])
	}

	greenPin, ok := scanPin(parts[3], 'G')
	if !ok {
		return nil, parseErrorf(frame, "invalid green pin "+parts[3])
	}

	aspect, err := ParseAspect(tokens[2])
	if err != nil {
		return nil, parseErrorf(frame, err.Error())
	}

	return SignalHeadSet{
		HeadID:   headID,
		Board:    int(board),
		RedPin:   redPin,
		GreenPin: greenPin,
		Aspect:   aspect,
	}, nil
}

// scanInt consumes a leading run of decimal digits.
func scanInt(s string) (val int, rest string, ok bool) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, s, false
	}

	val, err := strconv.Atoi(s[:i])
	if err != nil {
		return 0, s, false
	}

	return val, s[i:], true
}

// scanBracketed consumes "[<digits>]".
func scanBracketed(s string) (val int, rest string, ok bool) {
	if len(s) < 3 || s[0] != '[' {
		return 0, s, false
	}

	end := strings.IndexByte(s, ']')
	if end < 2 {
		return 0, s, false
	}

	val, err := strconv.Atoi(s[1:end])
	if err != nil {
		return 0, s, false
	}

	return val, s[end+1:], true
}

// scanPin consumes "<prefix><digits>", e.g. "R6" or "G14".
func scanPin(s string, prefix byte) (int, bool) {
	if len(s) < 2 || s[0] != prefix {
		return 0, false
	}

	pin, err := strconv.Atoi(s[1:])
	if err != nil || pin < 0 || pin > 15 {
		return 0, false
	}

	return pin, true
}
