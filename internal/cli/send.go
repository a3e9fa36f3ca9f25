package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/stagehand-audio/stagehand"
	"github.com/stagehand-audio/stagehand/sproto"
)

const sendActions = `Actions:
  start               start the transport
  stop                stop the transport
  zero                return the transport to zero
  next                load the next cue
  prev                load the previous cue
  goto N              load cue N
  jump [on|off]       toggle, enable, or disable jump mode
  playrate N          set the playrate to N percent
  gain CH DB          set the gain of channel CH
  name CH NAME        rename channel CH
  device ID           select the audio device
  samplerate HZ       set the sample rate
  buffer FRAMES       set the buffer size
  route SRC DST on|off connect or disconnect an audio route
  initialize          ask the host to initialize
  notify              ask the host to notify its subscribers
  shutdown            shut the host down`

func (a *app) newSendCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "send <action> [args...]",
		Short: "Send one command to the host",
		Long:  "Subscribe to the host, send one command, and unsubscribe.\n\n" + sendActions,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := parseAction(args)
			if err != nil {
				return err
			}

			if a.cfg.Host == "" {
				return errors.New("no host configured; use --host a.b.c.d:port")
			}

			log, closeLog, err := a.newLogger(os.Stderr)
			if err != nil {
				return err
			}
			defer closeLog()

			tr, err := stagehand.NewTransport(log.With("sys", "transport"), a.cfg.TransportConfig())
			if err != nil {
				return fmt.Errorf("failed to create transport: %w", err)
			}
			defer tr.Close()

			ctx := cmd.Context()
			if err := tr.Start(ctx); err != nil {
				return fmt.Errorf("failed to start transport: %w", err)
			}

			remote, err := tr.ConnectAddr(string(tr.Local().Identifier), a.cfg.Host)
			if err != nil {
				return fmt.Errorf("failed to connect: %w", err)
			}

			sendErr := tr.SendMsg(req)
			if err := tr.Disconnect(); err != nil {
				log.Warn("Failed to unsubscribe", "err", err)
			}
			if sendErr != nil {
				return sendErr
			}

			fmt.Fprintf(cmd.OutOrStdout(), "sent %s to %s\n", describe(req), remote.Address)
			return nil
		},
	}
}

// parseAction turns command line words into a request.
func parseAction(args []string) (sproto.Request, error) {
	if len(args) == 0 {
		return nil, errors.New("missing action")
	}

	name, rest := strings.ToLower(args[0]), args[1:]

	want := func(n int) error {
		if len(rest) != n {
			return fmt.Errorf("%s takes %d argument(s), got %d", name, n, len(rest))
		}
		return nil
	}

	control := func(a sproto.ControlAction) (sproto.Request, error) {
		return sproto.ControlCommand{Action: a}, nil
	}
	configure := func(c sproto.ConfigurationChange) (sproto.Request, error) {
		return sproto.ChangeConfiguration{Change: c}, nil
	}

	switch name {
	case "start", "stop", "zero", "next", "prev", "initialize", "notify", "shutdown":
		if err := want(0); err != nil {
			return nil, err
		}
	}

	switch name {
	case "start":
		return control(sproto.ControlAction{Op: sproto.TransportStart})
	case "stop":
		return control(sproto.ControlAction{Op: sproto.TransportStop})
	case "zero":
		return control(sproto.ControlAction{Op: sproto.TransportZero})
	case "next":
		return control(sproto.ControlAction{Op: sproto.LoadNextCue})
	case "prev":
		return control(sproto.ControlAction{Op: sproto.LoadPreviousCue})

	case "goto":
		if err := want(1); err != nil {
			return nil, err
		}
		idx, err := strconv.ParseUint(rest[0], 10, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid cue index %q: %w", rest[0], err)
		}
		return control(sproto.ControlAction{Op: sproto.LoadCueByIndex, CueIndex: uint8(idx)})

	case "jump":
		mode := sproto.JumpModeToggle
		if len(rest) > 1 {
			return nil, fmt.Errorf("jump takes at most 1 argument, got %d", len(rest))
		}
		if len(rest) == 1 {
			on, err := parseOnOff(rest[0])
			if err != nil {
				return nil, err
			}
			mode = sproto.JumpModeDisable
			if on {
				mode = sproto.JumpModeEnable
			}
		}
		return control(sproto.ControlAction{Op: sproto.ChangeJumpMode, JumpMode: mode})

	case "playrate":
		if err := want(1); err != nil {
			return nil, err
		}
		pct, err := strconv.ParseUint(rest[0], 10, 16)
		if err != nil || pct == 0 {
			return nil, fmt.Errorf("invalid playrate %q: must be 1-65535", rest[0])
		}
		return control(sproto.ControlAction{Op: sproto.ChangePlayrate, PlayratePercent: uint16(pct)})

	case "gain":
		if err := want(2); err != nil {
			return nil, err
		}
		ch, err := parseChannel(rest[0])
		if err != nil {
			return nil, err
		}
		db, err := strconv.ParseFloat(rest[1], 32)
		if err != nil {
			return nil, fmt.Errorf("invalid gain %q: %w", rest[1], err)
		}
		return configure(sproto.ConfigurationChange{Op: sproto.SetChannelGain, Channel: ch, Gain: float32(db)})

	case "name":
		if err := want(2); err != nil {
			return nil, err
		}
		ch, err := parseChannel(rest[0])
		if err != nil {
			return nil, err
		}
		if len(rest[1]) > sproto.MaxChannelNameLen {
			return nil, fmt.Errorf("channel name longer than %d bytes", sproto.MaxChannelNameLen)
		}
		return configure(sproto.ConfigurationChange{Op: sproto.SetChannelName, Channel: ch, Name: rest[1]})

	case "device":
		if err := want(1); err != nil {
			return nil, err
		}
		if len(rest[0]) > sproto.MaxDeviceIDLen {
			return nil, fmt.Errorf("device id longer than %d bytes", sproto.MaxDeviceIDLen)
		}
		return configure(sproto.ConfigurationChange{Op: sproto.SetAudioDevice, DeviceID: rest[0]})

	case "samplerate", "buffer":
		if err := want(1); err != nil {
			return nil, err
		}
		v, err := strconv.ParseUint(rest[0], 10, 32)
		if err != nil || v == 0 {
			return nil, fmt.Errorf("invalid %s %q", name, rest[0])
		}
		op := sproto.SetSampleRate
		if name == "buffer" {
			op = sproto.SetBufferSize
		}
		return configure(sproto.ConfigurationChange{Op: op, Value: uint32(v)})

	case "route":
		if err := want(3); err != nil {
			return nil, err
		}
		src, err := parseChannel(rest[0])
		if err != nil {
			return nil, err
		}
		dst, err := parseChannel(rest[1])
		if err != nil {
			return nil, err
		}
		on, err := parseOnOff(rest[2])
		if err != nil {
			return nil, err
		}
		return sproto.ChangeRouting{Source: src, Destination: dst, Connect: on}, nil

	case "initialize":
		return sproto.Initialize{}, nil
	case "notify":
		return sproto.NotifySubscribers{}, nil
	case "shutdown":
		return sproto.Shutdown{}, nil
	}

	return nil, fmt.Errorf("unknown action %q", args[0])
}

func parseChannel(s string) (uint8, error) {
	ch, err := strconv.ParseUint(s, 10, 8)
	if err != nil || ch >= sproto.ChannelCount {
		return 0, fmt.Errorf("invalid channel %q: must be 0-%d", s, sproto.ChannelCount-1)
	}
	return uint8(ch), nil
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

func describe(req sproto.Request) string {
	switch r := req.(type) {
	case sproto.ControlCommand:
		return fmt.Sprintf("%s(%s)", req.Kind(), r.Action.Op)
	case sproto.ChangeConfiguration:
		return fmt.Sprintf("%s(%s)", req.Kind(), r.Change.Op)
	default:
		return req.Kind().String()
	}
}
