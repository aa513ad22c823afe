package config

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"artnet-node/internal/artnet"
)

// maxPorts is the number of ports one ArtPollReply can describe
const maxPorts = 4

// PortConfig is one DMX output port of the node
type PortConfig struct {
	Net      uint8 `mapstructure:"net"`
	SubNet   uint8 `mapstructure:"subNet"`
	Universe uint8 `mapstructure:"universe"`
}

// PortAddress converts the port to its Art-Net address
func (p PortConfig) PortAddress() artnet.PortAddress {
	return artnet.PortAddress{Net: p.Net, SubNet: p.SubNet, Universe: p.Universe}
}

// NodeConfig describes the node's identity on the network and its UDP listener
type NodeConfig struct {
	Listen          string        `mapstructure:"listen"`
	Port            int           `mapstructure:"port"`
	IP              string        `mapstructure:"ip"`
	MAC             string        `mapstructure:"mac"`
	ShortName       string        `mapstructure:"shortName"`
	LongName        string        `mapstructure:"longName"`
	OEM             uint16        `mapstructure:"oem"`
	ESTACode        string        `mapstructure:"estaCode"`
	FirmwareVersion uint16        `mapstructure:"firmwareVersion"`
	Ports           []PortConfig  `mapstructure:"ports"`
	ReplyRate       float64       `mapstructure:"replyRate"`
	ReplyBurst      int           `mapstructure:"replyBurst"`
	LimiterIdle     time.Duration `mapstructure:"limiterIdle"`
	BufferSize      int           `mapstructure:"bufferSize"`
	QueueSize       int           `mapstructure:"queueSize"`
	// UniverseTTL is how long a silent universe is kept before it is
	// forgotten. Zero keeps universes forever.
	UniverseTTL time.Duration `mapstructure:"universeTTL"`
}

// LumberjackConfig configures the rolling log file
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig configures level, encoding and outputs
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	Stdout bool             `mapstructure:"stdout"`
	File   LumberjackConfig `mapstructure:"file"`
}

// HTTPConfig configures the status API
type HTTPConfig struct {
	Enable       bool          `mapstructure:"enable"`
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
}

// MetricsConfig configures Prometheus exposition
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// TUIConfig configures the terminal monitor
type TUIConfig struct {
	Enable     bool          `mapstructure:"enable"`
	StaleAfter time.Duration `mapstructure:"staleAfter"`
}

// Config is the top-level configuration
type Config struct {
	Node    NodeConfig    `mapstructure:"node"`
	Logging LoggingConfig `mapstructure:"logging"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	TUI     TUIConfig     `mapstructure:"tui"`
}

// Load reads configuration from a YAML file and ARTNET_* environment variables.
// If path is empty ARTNET_CONFIG is consulted, then ./artnet-node.yaml and
// ./configs/artnet-node.yaml. A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = os.Getenv("ARTNET_CONFIG")
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("artnet-node")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	// ARTNET_NODE_SHORTNAME overrides node.shortName
	v.SetEnvPrefix("ARTNET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("node.listen", "0.0.0.0")
	v.SetDefault("node.port", artnet.Port)
	v.SetDefault("node.ip", "127.0.0.1")
	v.SetDefault("node.mac", "00:00:00:00:00:00")
	v.SetDefault("node.shortName", "artnet-node")
	v.SetDefault("node.longName", "Art-Net Node")
	v.SetDefault("node.oem", 0x00FF)
	v.SetDefault("node.estaCode", "")
	v.SetDefault("node.firmwareVersion", 1)
	v.SetDefault("node.replyRate", 2.0)
	v.SetDefault("node.replyBurst", 4)
	v.SetDefault("node.limiterIdle", "5m")
	v.SetDefault("node.bufferSize", 65507)
	v.SetDefault("node.queueSize", 1000)
	v.SetDefault("node.universeTTL", "10m")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.stdout", false)
	v.SetDefault("logging.file.filename", "logs/artnet-node.log")
	v.SetDefault("logging.file.maxSize", 50)
	v.SetDefault("logging.file.maxBackups", 3)
	v.SetDefault("logging.file.maxAge", 14)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("http.enable", true)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.readTimeout", "5s")
	v.SetDefault("http.writeTimeout", "10s")

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("tui.enable", true)
	v.SetDefault("tui.staleAfter", "5s")
}

// Validate checks the configuration for values the node cannot run with
func (c *Config) Validate() error {
	if err := c.Node.Validate(); err != nil {
		return fmt.Errorf("node config: %w", err)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging config: unknown level %q", c.Logging.Level)
	}

	if c.Metrics.Enable && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics config: path %q must start with /", c.Metrics.Path)
	}
	return nil
}

// Validate checks addresses, names and ports
func (n *NodeConfig) Validate() error {
	if n.Port <= 0 || n.Port > 65535 {
		return fmt.Errorf("invalid port: %d", n.Port)
	}
	if _, err := n.ipAddress(); err != nil {
		return err
	}
	if _, err := n.macAddress(); err != nil {
		return err
	}
	if l := len(n.ESTACode); l != 0 && l != 2 {
		return fmt.Errorf("estaCode must be 2 characters, got %q", n.ESTACode)
	}
	if n.BufferSize < artnet.PollReplySize {
		return fmt.Errorf("bufferSize %d is smaller than an ArtPollReply (%d)", n.BufferSize, artnet.PollReplySize)
	}
	if n.ReplyRate <= 0 || n.ReplyBurst <= 0 {
		return fmt.Errorf("replyRate and replyBurst must be positive")
	}
	if n.UniverseTTL < 0 {
		return fmt.Errorf("universeTTL must not be negative, got %s", n.UniverseTTL)
	}

	if len(n.Ports) > maxPorts {
		return fmt.Errorf("too many ports: %d (maximum %d)", len(n.Ports), maxPorts)
	}
	for i, p := range n.Ports {
		if p.Net > 0x7F || p.SubNet > 0x0F || p.Universe > 0x0F {
			return fmt.Errorf("port %d: address %d:%d:%d out of range", i, p.Net, p.SubNet, p.Universe)
		}
		// one reply page shares NetSwitch and SubSwitch across its ports
		if p.Net != n.Ports[0].Net || p.SubNet != n.Ports[0].SubNet {
			return fmt.Errorf("port %d: all ports must share net and sub-net", i)
		}
	}
	return nil
}

func (n *NodeConfig) ipAddress() ([4]byte, error) {
	addr, err := netip.ParseAddr(n.IP)
	if err != nil || !addr.Is4() {
		return [4]byte{}, fmt.Errorf("invalid IPv4 address %q", n.IP)
	}
	return addr.As4(), nil
}

func (n *NodeConfig) macAddress() ([6]byte, error) {
	var mac [6]byte
	hw, err := net.ParseMAC(n.MAC)
	if err != nil || len(hw) != len(mac) {
		return mac, fmt.Errorf("invalid MAC address %q", n.MAC)
	}
	copy(mac[:], hw)
	return mac, nil
}

// PortAddresses returns the addresses of the configured output ports
func (n *NodeConfig) PortAddresses() []artnet.PortAddress {
	addrs := make([]artnet.PortAddress, len(n.Ports))
	for i, p := range n.Ports {
		addrs[i] = p.PortAddress()
	}
	return addrs
}

// PollReply builds the ArtPollReply the node answers discovery with
func (n *NodeConfig) PollReply() (artnet.PollReply, error) {
	ip, err := n.ipAddress()
	if err != nil {
		return artnet.PollReply{}, err
	}
	mac, err := n.macAddress()
	if err != nil {
		return artnet.PollReply{}, err
	}

	r := artnet.DefaultPollReply()
	r.IPAddress = ip
	r.BindIPAddress = ip
	r.Port = uint16(n.Port)
	r.FirmwareVersion = n.FirmwareVersion
	r.OEM = n.OEM
	r.ShortName = n.ShortName
	r.LongName = n.LongName
	r.MACAddress = mac
	r.Status2 = artnet.Status2PortAddress15
	if len(n.ESTACode) == 2 {
		r.ESTAManufacturerCode = artnet.ESTAManufacturerCode{Lo: n.ESTACode[0], Hi: n.ESTACode[1]}
	}

	r.NumPorts = uint16(len(n.Ports))
	for i, p := range n.Ports {
		r.NetSwitch = p.Net
		r.SubSwitch = p.SubNet
		r.PortTypes[i] = artnet.PortTypeOutput
		r.GoodOutputA[i] = artnet.GoodOutputDataTx
		r.SwOut[i] = p.Universe
	}

	return r, nil
}
