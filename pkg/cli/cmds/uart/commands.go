// Package uart provides shell commands driving a link.
package uart

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/swuart/pkg/cli/sh"
	"github.com/robotalks/swuart/pkg/swuart"
)

// DefaultRunTicks limits the run command when no limit is given.
const DefaultRunTicks = 1 << 20

var (
	// SendCmd queues text.
	SendCmd = ishell.Cmd{
		Name:    "send",
		Aliases: []string{"s"},
		Help:    "TEXT|\"QUOTED TEXT\"",
		Func: sh.MustHaveLink(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("TEXT required"))
				return
			}
			text, err := ParseText(strings.Join(c.Args, " "))
			if err != nil {
				c.Err(err)
				return
			}
			sh.ShellFrom(c).Link.SendString(text)
		}),
	}

	// SendHexCmd queues bytes in hex.
	SendHexCmd = ishell.Cmd{
		Name:    "sendhex",
		Aliases: []string{"sx"},
		Help:    "HEX...",
		Func: sh.MustHaveLink(func(c *ishell.Context) {
			data, err := hex.DecodeString(strings.Join(c.Args, ""))
			if err != nil {
				c.Err(fmt.Errorf("Invalid HEX: %v", err))
				return
			}
			l := sh.ShellFrom(c).Link
			for _, b := range data {
				l.Send(uint16(b))
			}
		}),
	}

	// SendUnitsCmd queues units wider than a byte.
	SendUnitsCmd = ishell.Cmd{
		Name:    "sendunits",
		Aliases: []string{"su"},
		Help:    "UNIT...",
		Func: sh.MustHaveLink(func(c *ishell.Context) {
			units, err := ParseUnits(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			sh.ShellFrom(c).Link.Send(units...)
		}),
	}

	// TickCmd steps the link.
	TickCmd = ishell.Cmd{
		Name:    "tick",
		Aliases: []string{"t"},
		Help:    "[COUNT]",
		Func: sh.MustHaveLink(func(c *ishell.Context) {
			count, err := parseCount(c.Args, 1)
			if err != nil {
				c.Err(err)
				return
			}
			s := sh.ShellFrom(c)
			for n := 0; n < count; n++ {
				s.Link.Step(context.Background())
			}
			wire := s.Link.Wire()
			s.Output(c, map[string]interface{}{
				"ticks":       s.Link.Stats().Ticks,
				"line":        wire.GetLine().String(),
				"transitions": wire.Transitions,
				"receiving":   s.Link.Receiver().Receiving(),
			}, fmt.Sprintf("tick=%d line=%s transitions=%d receiving=%v",
				s.Link.Stats().Ticks, wire.GetLine(), wire.Transitions, s.Link.Receiver().Receiving()))
		}),
	}

	// RunCmd steps the link until idle.
	RunCmd = ishell.Cmd{
		Name:    "run",
		Aliases: []string{"r"},
		Help:    "[MAX-TICKS]",
		Func: sh.MustHaveLink(func(c *ishell.Context) {
			limit, err := parseCount(c.Args, DefaultRunTicks)
			if err != nil {
				c.Err(err)
				return
			}
			s := sh.ShellFrom(c)
			n := s.Link.Run(context.Background(), limit)
			s.Output(c, map[string]interface{}{"ticks": n, "idle": s.Link.Idle()},
				fmt.Sprintf("%d ticks, idle=%v", n, s.Link.Idle()))
		}),
	}

	// RecvCmd pulls all received units.
	RecvCmd = ishell.Cmd{
		Name:    "recv",
		Aliases: []string{"rx"},
		Help:    "",
		Func: sh.MustHaveLink(func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			rx := s.Link.Receiver()
			units := []uint16{}
			for u := rx.PullUnit(); u != swuart.NoUnit; u = rx.PullUnit() {
				units = append(units, u)
			}
			s.Output(c, units, FormatUnits(units))
		}),
	}

	// PeekCmd shows a received unit without pulling it.
	PeekCmd = ishell.Cmd{
		Name: "peek",
		Help: "[INDEX]",
		Func: sh.MustHaveLink(func(c *ishell.Context) {
			index, err := parseCount(c.Args, 0)
			if err != nil {
				c.Err(err)
				return
			}
			s := sh.ShellFrom(c)
			u := s.Link.Receiver().PeekUnitAt(index)
			if u == swuart.NoUnit {
				c.Err(fmt.Errorf("no unit at %d", index))
				return
			}
			s.Output(c, u, FormatUnits([]uint16{u}))
		}),
	}

	// PendingCmd shows the number of received units.
	PendingCmd = ishell.Cmd{
		Name: "pending",
		Help: "",
		Func: sh.MustHaveLink(func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			n := s.Link.Receiver().Pending()
			s.Output(c, n, strconv.Itoa(n))
		}),
	}

	// FlushCmd drops received units.
	FlushCmd = ishell.Cmd{
		Name: "flush",
		Help: "",
		Func: sh.MustHaveLink(func(c *ishell.Context) {
			sh.ShellFrom(c).Link.Receiver().Flush()
		}),
	}

	// DrainCmd takes received units as frames.
	DrainCmd = ishell.Cmd{
		Name:    "drain",
		Aliases: []string{"d"},
		Help:    "",
		Func: sh.MustHaveLink(func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			s.Link.Drain(context.Background())
			frames := s.Frames
			s.Frames = nil
			if s.OutputJSON {
				out := make([]interface{}, len(frames))
				for n, f := range frames {
					out[n] = f.Message()
				}
				s.Output(c, out, "")
				return
			}
			if len(frames) == 0 {
				c.Println("No frames")
				return
			}
			for _, f := range frames {
				c.Println(sh.FormatFrame(f))
			}
		}),
	}

	// ErrorsCmd shows reception errors.
	ErrorsCmd = ishell.Cmd{
		Name:    "errors",
		Aliases: []string{"err"},
		Help:    "[clear]",
		Func: sh.MustHaveLink(func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			errs := s.Link.Errors(len(c.Args) > 0 && c.Args[0] == "clear")
			s.Output(c, uint8(errs), errs.String())
		}),
	}

	// StatusCmd shows counters.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"st"},
		Help:    "",
		Func: sh.MustHaveLink(func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			status := s.Link.Status()
			s.Output(c, status, status.String())
		}),
	}

	// NoiseCmd shows or sets the line noise rate.
	NoiseCmd = ishell.Cmd{
		Name: "noise",
		Help: "[RATE]",
		Func: sh.MustHaveLink(func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			noise := s.Link.Noise()
			if len(c.Args) > 0 {
				rate, err := strconv.ParseFloat(c.Args[0], 64)
				if err != nil {
					c.Err(fmt.Errorf("Invalid RATE: %v", err))
					return
				}
				noise.SetRate(rate)
			}
			s.Output(c, map[string]interface{}{"rate": noise.Rate(), "flips": noise.Flips()},
				fmt.Sprintf("rate=%g flips=%d", noise.Rate(), noise.Flips()))
		}),
	}
)

// ParseText unquotes text in double quotes so escapes like \n can be sent.
func ParseText(text string) (string, error) {
	if len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"' {
		unquoted, err := strconv.Unquote(text)
		if err != nil {
			return "", fmt.Errorf("Invalid TEXT: %v", err)
		}
		return unquoted, nil
	}
	return text, nil
}

// ParseUnits parses decimal, 0x hex or 0b binary units.
func ParseUnits(args []string) ([]uint16, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("UNIT required")
	}
	units := make([]uint16, len(args))
	for n, arg := range args {
		val, err := strconv.ParseUint(arg, 0, 16)
		if err != nil {
			return nil, fmt.Errorf("Invalid UNIT %q: %v", arg, err)
		}
		units[n] = uint16(val)
	}
	return units, nil
}

// FormatUnits prints units in hex followed by printable text.
func FormatUnits(units []uint16) string {
	if len(units) == 0 {
		return "No units"
	}
	hexes := make([]string, len(units))
	text := make([]byte, len(units))
	for n, u := range units {
		hexes[n] = fmt.Sprintf("%02x", u)
		if u >= 0x20 && u < 0x7f {
			text[n] = byte(u)
		} else {
			text[n] = '.'
		}
	}
	return strings.Join(hexes, " ") + "  |" + string(text) + "|"
}

func parseCount(args []string, def int) (int, error) {
	if len(args) == 0 {
		return def, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("Invalid COUNT %q", args[0])
	}
	return n, nil
}

func init() {
	sh.AddCmds(
		&SendCmd,
		&SendHexCmd,
		&SendUnitsCmd,
		&TickCmd,
		&RunCmd,
		&RecvCmd,
		&PeekCmd,
		&PendingCmd,
		&FlushCmd,
		&DrainCmd,
		&ErrorsCmd,
		&StatusCmd,
		&NoiseCmd,
	)
}
