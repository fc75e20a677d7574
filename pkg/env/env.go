// Package env assembles a link and its bridges from flags and environment
// variables.
package env

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"

	"github.com/robotalks/swuart/pkg/bridge/mqtt"
	"github.com/robotalks/swuart/pkg/bridge/serial"
	"github.com/robotalks/swuart/pkg/bridge/websocket"
	fx "github.com/robotalks/swuart/pkg/framework"
	"github.com/robotalks/swuart/pkg/link"
	"github.com/robotalks/swuart/pkg/swuart"
)

// AppID scopes the machine ID used as the default node name.
const AppID = "swuart"

// Config provides the options of a link node.
type Config struct {
	// Node names the link on MQTT topics.
	Node string
	// Format is the framing like "8N1".
	Format string
	// BitWidth is the number of ticks per bit.
	BitWidth   uint
	TripleScan bool
	FIFOBits   uint
	// Delimiter is the unit closing a frame, or -1.
	Delimiter int
	NoiseRate float64
	NoiseSeed int64
	// TickPeriod is the real time of a tick.
	TickPeriod time.Duration
	// LoopInterval is the loop iteration interval when no tick is signaled.
	LoopInterval time.Duration

	// SerialDevice, if set, bridges a host serial port.
	SerialDevice string
	SerialBaud   int
	// MQTTBrokerURL, if set, publishes to MQTT.
	// e.g. mqtt://host:port/topic-prefix/
	MQTTBrokerURL string
	// StatusInterval is the period of status publishing over MQTT.
	StatusInterval time.Duration
	// WebsocketAddr, if set, serves websocket clients.
	WebsocketAddr string
}

var defaultConfig = Config{
	Format:       "8N1",
	BitWidth:     8,
	FIFOBits:     swuart.DefaultFIFOBits,
	Delimiter:    '\n',
	NoiseSeed:    1,
	TickPeriod:   100 * time.Microsecond,
	LoopInterval: fx.DefaultInterval,
	SerialBaud:   9600,
	// MQTT
	StatusInterval: 5 * time.Second,
}

func init() {
	defaultConfig.Node = DefaultNode()
	if val := os.Getenv("SWUART_NODE"); val != "" {
		defaultConfig.Node = val
	}
	if val := os.Getenv("SWUART_FORMAT"); val != "" {
		defaultConfig.Format = val
	}
	if val := os.Getenv("SWUART_BIT_WIDTH"); val != "" {
		if n, err := strconv.ParseUint(val, 10, 16); err == nil {
			defaultConfig.BitWidth = uint(n)
		}
	}
	if val := os.Getenv("SWUART_MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
	if val := os.Getenv("SWUART_SERIAL"); val != "" {
		defaultConfig.SerialDevice = val
	}
	if val := os.Getenv("SWUART_WS_ADDR"); val != "" {
		defaultConfig.WebsocketAddr = val
	}
}

// DefaultNode derives a node name from the machine ID, or the host name
// if the machine ID is not available.
func DefaultNode() string {
	if id, err := machineid.ProtectedID(AppID); err == nil && len(id) >= 12 {
		return id[:12]
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}

// SetupFlags binds command line flags to the default config.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Node, "node", defaultConfig.Node, "Node name")
	flag.StringVar(&defaultConfig.Format, "format", defaultConfig.Format, "Frame format, e.g. 8N1, 7E2")
	flag.UintVar(&defaultConfig.BitWidth, "bit-width", defaultConfig.BitWidth, "Ticks per bit")
	flag.BoolVar(&defaultConfig.TripleScan, "triple-scan", defaultConfig.TripleScan, "Sample each bit 3 times")
	flag.UintVar(&defaultConfig.FIFOBits, "fifo-bits", defaultConfig.FIFOBits, "Receive FIFO size in bits")
	flag.IntVar(&defaultConfig.Delimiter, "delim", defaultConfig.Delimiter, "Frame delimiter unit, -1 for none")
	flag.Float64Var(&defaultConfig.NoiseRate, "noise", defaultConfig.NoiseRate, "Probability of a line read being inverted")
	flag.Int64Var(&defaultConfig.NoiseSeed, "noise-seed", defaultConfig.NoiseSeed, "Seed of line noise")
	flag.DurationVar(&defaultConfig.TickPeriod, "tick", defaultConfig.TickPeriod, "Tick period")
	flag.DurationVar(&defaultConfig.LoopInterval, "loop-interval", defaultConfig.LoopInterval, "Loop interval")
	flag.StringVar(&defaultConfig.SerialDevice, "serial", defaultConfig.SerialDevice, "Host serial port to bridge")
	flag.IntVar(&defaultConfig.SerialBaud, "baud", defaultConfig.SerialBaud, "Host serial port baud rate")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL")
	flag.DurationVar(&defaultConfig.StatusInterval, "status-interval", defaultConfig.StatusInterval, "MQTT status publishing interval, 0 to disable")
	flag.StringVar(&defaultConfig.WebsocketAddr, "ws", defaultConfig.WebsocketAddr, "Websocket listen address")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config from the defaults.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// UARTConfig parses the framing.
func (c *Config) UARTConfig() (swuart.Config, error) {
	cfg, err := swuart.ParseFormat(c.Format)
	if err != nil {
		return cfg, err
	}
	if c.BitWidth == 0 || c.BitWidth > 0xffff {
		return cfg, fmt.Errorf("invalid bit width %d", c.BitWidth)
	}
	cfg.BitWidth = uint16(c.BitWidth)
	cfg.TripleScan = c.TripleScan
	return cfg, nil
}

// LinkOptions builds the options of the link.
func (c *Config) LinkOptions() (link.Options, error) {
	cfg, err := c.UARTConfig()
	if err != nil {
		return link.Options{}, err
	}
	delim := c.Delimiter
	if delim < 0 || delim > int(cfg.UnitMask()) {
		delim = link.NoDelimiter
	}
	return link.Options{
		Config:     cfg,
		FIFOBits:   c.FIFOBits,
		Delimiter:  delim,
		NoiseRate:  c.NoiseRate,
		NoiseSeed:  c.NoiseSeed,
		TickPeriod: c.TickPeriod,
	}, nil
}

// NewLink creates a link without bridges.
func (c *Config) NewLink() (*link.Link, error) {
	opts, err := c.LinkOptions()
	if err != nil {
		return nil, err
	}
	return link.New(opts)
}

// Env is a link with its bridges.
type Env struct {
	Config *Config
	Link   *link.Link
	MQTT   *mqtt.Bridge
	Serial *serial.Bridge
	Hub    *websocket.Hub

	frames link.FrameMux
}

// NewEnv creates the link and the configured bridges.
func (c *Config) NewEnv() (*Env, error) {
	l, err := c.NewLink()
	if err != nil {
		return nil, fmt.Errorf("create link error: %w", err)
	}
	env := &Env{Config: c, Link: l}
	if c.MQTTBrokerURL != "" {
		meta := mqtt.MetaOf(c.Node, l.Config())
		if env.MQTT, err = mqtt.NewBridge(c.MQTTBrokerURL, meta); err != nil {
			return nil, fmt.Errorf("create MQTT bridge error: %w", err)
		}
		env.MQTT.Link = l
		env.MQTT.StatusInterval = c.StatusInterval
		env.frames.Add(env.MQTT)
		l.Notifier = env.MQTT
	}
	if c.SerialDevice != "" {
		if env.Serial, err = serial.Open(c.SerialDevice, c.SerialBaud, l.Config()); err != nil {
			return nil, err
		}
		env.frames.Add(env.Serial)
	}
	if c.WebsocketAddr != "" {
		env.Hub = websocket.NewHub(c.WebsocketAddr)
		env.frames.Add(env.Hub)
	}
	if len(env.frames.Handlers) == 0 {
		glog.Warning("no bridge configured, received frames are only logged")
		env.frames.Add(link.HandleFrameFunc(logFrame))
	}
	l.Handler = &env.frames
	return env, nil
}

// MustNewEnv creates Env and exits on error.
func (c *Config) MustNewEnv() *Env {
	env, err := c.NewEnv()
	if err != nil {
		glog.Fatalln(err)
	}
	return env
}

// AddToLoop implements LoopAdder.
func (e *Env) AddToLoop(loop *fx.Loop) {
	loop.Interval = e.Config.LoopInterval
	loop.Add(e.Link)
	if e.MQTT != nil {
		loop.Add(e.MQTT)
	}
	if e.Serial != nil {
		loop.Add(e.Serial)
	}
	if e.Hub != nil {
		loop.Add(e.Hub)
	}
}
