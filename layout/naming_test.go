package layout

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSensorName(t *testing.T) {
	require := require.New(t)

	t.Run("WithPort", func(t *testing.T) {
		name, err := ParseSensorName("IS.RPI$5:pi3b:14200")
		require.NoError(err)
		require.Equal(5, name.GPIO)
		require.Equal(Endpoint{Host: "pi3b", Port: 14200}, name.Endpoint)
	})

	t.Run("DefaultPort", func(t *testing.T) {
		name, err := ParseSensorName("IS.RPI$7:pi3b")
		require.NoError(err)
		require.Equal(DefaultPort, name.Endpoint.Port)
	})

	t.Run("Malformed", func(t *testing.T) {
		for _, n := range []string{
			"IS.RPI$5",             // no endpoint
			"IS.RPI$x:pi3b",        // bad gpio
			"IS.RPI$-1:pi3b",       // negative gpio
			"IS.RPI:pi3b",          // missing gpio
			"IS.RPI$5:pi3b:0",      // port out of range
			"IS.RPI$5:pi3b:1:2",    // too many tokens
			"IS.RPI$5: :14200",     // empty host
			"IS.RPI$5$6:pi3b",      // extra dollar section
		} {
			_, err := ParseSensorName(n)
			require.Error(err, "name %q", n)
		}
	})
}

func TestParseTurnoutName(t *testing.T) {
	require := require.New(t)

	t.Run("Full", func(t *testing.T) {
		name, err := ParseTurnoutName("IT.RPI$3[85][95]:pi3b:14200")
		require.NoError(err)
		require.Equal(3, name.Servo)
		require.Equal(85, name.ThrownAngle)
		require.Equal(95, name.ClosedAngle)
		require.Equal(Endpoint{Host: "pi3b", Port: 14200}, name.Endpoint)
	})

	t.Run("Malformed", func(t *testing.T) {
		for _, n := range []string{
			"IT.RPI$3[85]:pi3b",       // missing closed angle
			"IT.RPI$[85][95]:pi3b",    // missing servo
			"IT.RPI$3[85][95]x:pi3b",  // trailing garbage
			"IT.RPI$3[85][95]",        // no endpoint
		} {
			_, err := ParseTurnoutName(n)
			require.Error(err, "name %q", n)
		}
	})
}

func TestParseSignalHeadName(t *testing.T) {
	require := require.New(t)

	t.Run("Full", func(t *testing.T) {
		name, err := ParseSignalHeadName("IH.RPI$SM1-SH1$0x24$R6$G14:pi3b:14200")
		require.NoError(err)
		require.Equal("SM1-SH1$0x24$R6$G14", name.Target)
		require.Equal(Endpoint{Host: "pi3b", Port: 14200}, name.Endpoint)
	})

	t.Run("Malformed", func(t *testing.T) {
		for _, n := range []string{
			"IH.RPI$SM1-SH1$0x24$R6:pi3b",      // missing green pin
			"IH.RPI$SM1-SH1$zz$R6$G14:pi3b",    // bad board address
			"IH.RPI:pi3b",                      // missing target
			"IH.RPI$SM1-SH1$0x24$R6$G14",       // no endpoint
		} {
			_, err := ParseSignalHeadName(n)
			require.Error(err, "name %q", n)
		}
	})
}

func TestEndpointAlias(t *testing.T) {
	require := require.New(t)

	require.Equal("pi3b:14200", Endpoint{Host: "Pi3B", Port: 14200}.Alias())
	require.Equal("192.168.1.20:10000", Endpoint{Host: "192.168.1.20", Port: 10000}.Alias())
}
