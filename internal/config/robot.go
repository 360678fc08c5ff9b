package config

import (
	"fmt"
	"net"
	"os"

	"github.com/teslashibe/frc-vision/pkg/table"
)

// DefaultPath is where the image writes the coprocessor config.
const DefaultPath = "/boot/frc.json"

// Path returns the config path from the first positional argument,
// falling back to DefaultPath.
func Path(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return DefaultPath
}

// TableURL is the websocket URL of the robot's table server in client mode.
func (c *Config) TableURL() string {
	host := c.Server.TableAddress
	if host == "" {
		host = table.TeamAddress(c.Team)
	}
	port := c.Server.TablePort
	if port == 0 {
		port = table.DefaultPort
	}
	return fmt.Sprintf("ws://%s%s", net.JoinHostPort(host, fmt.Sprint(port)), table.DefaultPath)
}

// AdvertiseHost is the host dashboards should use to reach our streams.
// Falls back to the machine hostname.
func (c *Config) AdvertiseHost() string {
	if c.Server.Advertise != "" {
		return c.Server.Advertise
	}
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "localhost"
}

// ListenPort returns the port part of Server.Listen.
func (c *Config) ListenPort() string {
	_, port, err := net.SplitHostPort(c.Server.Listen)
	if err != nil {
		return "1181"
	}
	return port
}

// TableListen is the extra address the table server listens on in server
// mode, so clients using the default table port find it. Empty when the
// port is already served by Server.Listen or in client mode.
func (c *Config) TableListen() string {
	if c.NTMode != ModeServer || c.Server.TablePort <= 0 {
		return ""
	}
	port := fmt.Sprint(c.Server.TablePort)
	if port == c.ListenPort() {
		return ""
	}
	host, _, err := net.SplitHostPort(c.Server.Listen)
	if err != nil {
		host = ""
	}
	return net.JoinHostPort(host, port)
}
