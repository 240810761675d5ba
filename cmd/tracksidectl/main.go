// Command tracksidectl sends one-shot commands to a trackside peripheral
// and prints whatever the peripheral sends back. Useful for bench testing
// a peripheral without a full host application.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/modelrail/go-trackside/layout"
	"github.com/modelrail/go-trackside/link"
	"github.com/modelrail/go-trackside/logger"
	"github.com/modelrail/go-trackside/protocol"
)

type ctlOptions struct {
	host   string
	port   int
	listen time.Duration
}

func main() {
	opts := &ctlOptions{}

	root := &cobra.Command{
		Use:           "tracksidectl",
		Short:         "Send commands to a trackside peripheral",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.host, "host", "localhost", "peripheral host")
	root.PersistentFlags().IntVar(&opts.port, "port", 14200, "peripheral port")
	root.PersistentFlags().DurationVar(&opts.listen, "listen", 2*time.Second, "how long to listen for replies after sending")

	root.AddCommand(newSendCmd(opts), newTurnoutCmd(opts), newSignalCmd(opts), newSensorCmd(opts))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newSendCmd(opts *ctlOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "send <frame>",
		Short: "Send a raw frame verbatim",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return deliver(opts, args[0])
		},
	}
}

func newTurnoutCmd(opts *ctlOptions) *cobra.Command {
	var thrown, closed int
	var position string

	cmd := &cobra.Command{
		Use:   "turnout <servo>",
		Short: "Move a turnout servo to its thrown or closed position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var servo int
			if _, err := fmt.Sscanf(args[0], "%d", &servo); err != nil || servo < 0 {
				return fmt.Errorf("invalid servo number %q", args[0])
			}

			if position != "thrown" && position != "closed" {
				return fmt.Errorf("position must be thrown or closed, got %q", position)
			}

			set := protocol.TurnoutSet{
				Servo:       servo,
				ThrownAngle: thrown,
				ClosedAngle: closed,
				Active:      position == "closed",
			}

			return deliver(opts, set.Frame())
		},
	}

	cmd.Flags().IntVar(&thrown, "thrown-angle", 85, "servo angle of the thrown position")
	cmd.Flags().IntVar(&closed, "closed-angle", 95, "servo angle of the closed position")
	cmd.Flags().StringVar(&position, "position", "closed", "target position (thrown or closed)")

	return cmd
}

func newSignalCmd(opts *ctlOptions) *cobra.Command {
	var aspect string

	cmd := &cobra.Command{
		Use:   "signal <target>",
		Short: "Set a signal head aspect, target is <head>$<boardHex>$R<red>$G<green>",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			frame := fmt.Sprintf("OUT_SH:%s:%s", args[0], aspect)
			if _, err := protocol.Parse(frame); err != nil {
				return fmt.Errorf("invalid signal command: %w", err)
			}

			return deliver(opts, frame)
		},
	}

	cmd.Flags().StringVar(&aspect, "aspect", "d", "aspect code (r, g, fr, fg, d)")

	return cmd
}

func newSensorCmd(opts *ctlOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sensor <gpio>",
		Short: "Register a sensor and print its reports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var gpio int
			if _, err := fmt.Sscanf(args[0], "%d", &gpio); err != nil || gpio < 0 {
				return fmt.Errorf("invalid gpio number %q", args[0])
			}

			return deliver(opts, protocol.SensorRegister{GPIO: gpio}.Frame())
		},
	}
}

// deliver connects to the peripheral, sends one frame and prints every
// reply received during the listen window.
func deliver(opts *ctlOptions, frame string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := logger.NewSlog(logger.WarnLevel, false)

	cfg, err := link.NewConfig(opts.host, opts.port,
		link.WithActive(),
		link.WithLogger(log),
	)
	if err != nil {
		return err
	}

	printReply := func(reply string, _ *link.Manager) {
		fmt.Println(reply)
	}

	mgr, err := link.NewManager(ctx, cfg, printReply)
	if err != nil {
		return err
	}
	defer mgr.Stop()

	if err := mgr.Open(true); err != nil {
		return fmt.Errorf("could not reach %s: %w", layout.Endpoint{Host: opts.host, Port: opts.port}.Alias(), err)
	}

	if err := mgr.Send(frame); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	time.Sleep(opts.listen)

	return nil
}
