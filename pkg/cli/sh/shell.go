package sh

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"strings"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	"github.com/robotalks/swuart/pkg/env"
	"github.com/robotalks/swuart/pkg/link"
)

// Shell provides ishell backed interactive shell over a local link.
// The link only advances when a command steps it.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell  *ishell.Shell
	Config *env.Config
	Link   *link.Link
	// Frames are drained from the link and not yet printed.
	Frames []*link.Frame
}

const shellKey = "$shell"

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&ConfigCmd,
		&ResetCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt("[none] > ")
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustHaveLink wraps command func requires a link.
func MustHaveLink(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Link == nil {
			c.Err(fmt.Errorf("no link, use config to create one"))
			return
		}
		fn(c)
	}
}

// Reset recreates the link from Config. Queued and received units are lost.
func (s *Shell) Reset() error {
	l, err := s.Config.NewLink()
	if err != nil {
		return err
	}
	l.AutoDrain = false
	l.Handler = link.HandleFrameFunc(s.collectFrame)
	s.Link, s.Frames = l, nil
	cfg := l.Config()
	s.Shell.SetPrompt(fmt.Sprintf("[%s/%d] > ", cfg, cfg.BitWidth))
	return nil
}

// Output prints v in JSON when OutputJSON is set, otherwise text.
func (s *Shell) Output(c *ishell.Context, v interface{}, text string) {
	if s.OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Println(text)
}

// FormatFrame prints a frame into friendly string for display.
func FormatFrame(frame *link.Frame) string {
	var w strings.Builder
	fmt.Fprintf(&w, "@%d %q", frame.Tick, frame.Bytes())
	if frame.Errors != 0 {
		fmt.Fprintf(&w, " errors=%s", frame.Errors)
	}
	return w.String()
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if err := s.Reset(); err != nil {
		glog.Fatalf("create link failed: %v", err)
	}
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			glog.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	glog.Fatalln("command expected")
}

var (
	// ConfigCmd shows or changes the link configuration.
	ConfigCmd = ishell.Cmd{
		Name:    "config",
		Aliases: []string{"cfg"},
		Help:    "[FORMAT [BIT-WIDTH [triple]]]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) == 0 {
				if s.Link == nil {
					c.Err(fmt.Errorf("no link"))
					return
				}
				cfg := s.Link.Config()
				opts := s.Link.Options()
				s.Output(c, map[string]interface{}{
					"format":      cfg.String(),
					"bit_width":   cfg.BitWidth,
					"triple_scan": cfg.TripleScan,
					"fifo":        s.Link.Receiver().FIFO().Cap(),
					"delimiter":   opts.Delimiter,
				}, fmt.Sprintf("%s width=%d triple=%v fifo=%d delim=%d",
					cfg, cfg.BitWidth, cfg.TripleScan, s.Link.Receiver().FIFO().Cap(), opts.Delimiter))
				return
			}
			conf := *s.Config
			conf.Format = c.Args[0]
			if len(c.Args) > 1 {
				var width uint
				if _, err := fmt.Sscan(c.Args[1], &width); err != nil {
					c.Err(fmt.Errorf("Invalid BIT-WIDTH: %v", err))
					return
				}
				conf.BitWidth = width
			}
			conf.TripleScan = len(c.Args) > 2 && c.Args[2] == "triple"
			prev := s.Config
			s.Config = &conf
			if err := s.Reset(); err != nil {
				s.Config = prev
				c.Err(err)
			}
		},
	}

	// ResetCmd recreates the link.
	ResetCmd = ishell.Cmd{
		Name: "reset",
		Help: "",
		Func: func(c *ishell.Context) {
			if err := ShellFrom(c).Reset(); err != nil {
				c.Err(err)
			}
		},
	}
)

func (s *Shell) collectFrame(_ context.Context, frame *link.Frame) {
	s.Frames = append(s.Frames, frame)
}

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(env.NewConfig()).Run(flag.Args()...)
}
