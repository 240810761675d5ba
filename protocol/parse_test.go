package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTurnout(t *testing.T) {
	require := require.New(t)

	t.Run("Thrown", func(t *testing.T) {
		cmd, err := Parse("OUT_TO:3[85][95]:0")
		require.NoError(err)

		set, ok := cmd.(TurnoutSet)
		require.True(ok)
		require.Equal(3, set.Servo)
		require.Equal(85, set.ThrownAngle)
		require.Equal(95, set.ClosedAngle)
		require.False(set.Active)
		require.Equal(85, set.Angle())
	})

	t.Run("Closed", func(t *testing.T) {
		cmd, err := Parse("OUT_TO:3[85][95]:1")
		require.NoError(err)

		set, ok := cmd.(TurnoutSet)
		require.True(ok)
		require.True(set.Active)
		require.Equal(95, set.Angle())
	})

	t.Run("RoundTrip", func(t *testing.T) {
		set := TurnoutSet{Servo: 12, ThrownAngle: 60, ClosedAngle: 120, Active: true}
		cmd, err := Parse(set.Frame())
		require.NoError(err)
		require.Equal(set, cmd)
	})

	t.Run("Malformed", func(t *testing.T) {
		for _, frame := range []string{
			"OUT_TO:3[85][95]",      // missing state
			"OUT_TO:3[85]:0",        // missing closed angle
			"OUT_TO:[85][95]:0",     // missing servo
			"OUT_TO:3[85][95]x:0",   // trailing garbage
			"OUT_TO:3[85][95]:2",    // state out of range
			"OUT_TO:3[85][95]:0:1",  // too many tokens
			"OUT_TO:three[85][95]:0",
		} {
			_, err := Parse(frame)
			require.Error(err, "frame %q", frame)

			var perr *ParseError
			require.ErrorAs(err, &perr)
			require.Equal(frame, perr.Raw)
		}
	})
}

func TestParseSignalHead(t *testing.T) {
	require := require.New(t)

	t.Run("Green", func(t *testing.T) {
		cmd, err := Parse("OUT_SH:SM1-SH1$0x24$R6$G14:g")
		require.NoError(err)

		set, ok := cmd.(SignalHeadSet)
		require.True(ok)
		require.Equal("SM1-SH1", set.HeadID)
		require.Equal(0x24, set.Board)
		require.Equal(6, set.RedPin)
		require.Equal(14, set.GreenPin)
		require.Equal(AspectGreen, set.Aspect)
	})

	t.Run("AllAspects", func(t *testing.T) {
		for code, want := range map[string]Aspect{
			"r":  AspectRed,
			"g":  AspectGreen,
			"fr": AspectFlashRed,
			"fg": AspectFlashGreen,
			"d":  AspectDark,
		} {
			cmd, err := Parse("OUT_SH:H$0x20$R0$G1:" + code)
			require.NoError(err)
			require.Equal(want, cmd.(SignalHeadSet).Aspect)
		}
	})

	t.Run("BoardWithoutHexPrefix", func(t *testing.T) {
		cmd, err := Parse("OUT_SH:H$24$R0$G1:d")
		require.NoError(err)
		require.Equal(0x24, cmd.(SignalHeadSet).Board)
	})

	t.Run("RoundTrip", func(t *testing.T) {
		set := SignalHeadSet{HeadID: "SM2-SH3", Board: 0x21, RedPin: 2, GreenPin: 3, Aspect: AspectFlashRed}
		cmd, err := Parse(set.Frame())
		require.NoError(err)
		require.Equal(set, cmd)
	})

	t.Run("Malformed", func(t *testing.T) {
		for _, frame := range []string{
			"OUT_SH:SM1-SH1$0x24$R6:g",      // missing green pin
			"OUT_SH:$0x24$R6$G14:g",         // empty head id
			"OUT_SH:H$0xZZ$R6$G14:g",        // bad board address
			"OUT_SH:H$0x24$G6$R14:g",        // swapped pin prefixes
			"OUT_SH:H$0x24$R16$G14:g",       // pin out of range
			"OUT_SH:H$0x24$R6$G14:x",        // unknown aspect
			"OUT_SH:H$0x24$R6$G14",          // missing aspect
		} {
			_, err := Parse(frame)
			require.Error(err, "frame %q", frame)
		}
	})
}

func TestParseSensor(t *testing.T) {
	require := require.New(t)

	t.Run("Register", func(t *testing.T) {
		cmd, err := Parse("IN:5")
		require.NoError(err)
		require.Equal(SensorRegister{GPIO: 5}, cmd)
	})

	t.Run("Report", func(t *testing.T) {
		cmd, err := Parse("IN:5:1")
		require.NoError(err)
		require.Equal(SensorReport{GPIO: 5, Level: true}, cmd)

		cmd, err = Parse("IN:5:0")
		require.NoError(err)
		require.Equal(SensorReport{GPIO: 5, Level: false}, cmd)
	})

	t.Run("Malformed", func(t *testing.T) {
		for _, frame := range []string{"IN:abc", "IN:-1", "IN:5:2", "IN:5:1:0"} {
			_, err := Parse(frame)
			require.Error(err, "frame %q", frame)
		}
	})
}

func TestParseUnknownCommand(t *testing.T) {
	require := require.New(t)

	_, err := Parse("NOPE:1:2")
	require.Error(err)

	var perr *ParseError
	require.ErrorAs(err, &perr)
	require.Contains(perr.Reason, "unknown command")

	_, err = Parse("justtext")
	require.Error(err)
}

func TestParseCaseInsensitiveFamily(t *testing.T) {
	require := require.New(t)

	cmd, err := Parse("out_to:1[10][20]:1")
	require.NoError(err)
	require.IsType(TurnoutSet{}, cmd)

	cmd, err = Parse("in:7")
	require.NoError(err)
	require.IsType(SensorRegister{}, cmd)
}

func TestParseErrorDiagnostic(t *testing.T) {
	require := require.New(t)

	_, err := Parse("OUT_TO:nonsense:5")
	require.Error(err)

	var perr *ParseError
	require.ErrorAs(err, &perr)
	require.Equal("OUT_TO:nonsense:5:ERROR - "+perr.Reason, perr.Diagnostic())
}

func TestAspectCodes(t *testing.T) {
	require := require.New(t)

	for _, a := range []Aspect{AspectDark, AspectRed, AspectGreen, AspectFlashRed, AspectFlashGreen} {
		got, err := ParseAspect(a.Code())
		require.NoError(err)
		require.Equal(a, got)
	}

	require.True(AspectFlashRed.IsFlashing())
	require.True(AspectFlashGreen.IsFlashing())
	require.False(AspectRed.IsFlashing())
	require.False(AspectDark.IsFlashing())

	_, err := ParseAspect("purple")
	require.ErrorIs(err, ErrUnknownAspect)
}
