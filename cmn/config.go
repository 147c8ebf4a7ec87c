package cmn

import (
	"encoding/json"
	"net"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Config supplies a node's listening endpoints, its AAE neighbor list, and
// the data directory its collections live under - the minimal shim a
// daemon needs to exist.
type Config struct {
	// DataDir is the root directory under which every collection's
	// data/ and metadata/ sub-directories live.
	DataDir string `json:"data_dir"`

	// ClientPort is the TCP port the client endpoint listens on.
	// Defaults to 50000.
	ClientPort int `json:"client_port"`

	Current   Endpoints  `json:"current"`
	Neighbors []Neighbor `json:"neighbors"`
}

// Endpoints names this node's own AAE sockets.
type Endpoints struct {
	SnapshotReceiver Addr `json:"snapshot_receiver"`
	DocumentReceiver Addr `json:"document_receiver"`
}

// Neighbor is one AAE peer this node gossips with.
type Neighbor struct {
	Name             string `json:"name"`
	SnapshotReceiver Addr   `json:"snapshot_receiver"`
	DocumentReceiver Addr   `json:"document_receiver"`
}

// Addr is a bare host:port pair.
type Addr struct {
	Addr string `json:"addr"`
	Port int    `json:"port"`
}

func (a Addr) String() string {
	return net.JoinHostPort(a.Addr, strconv.Itoa(a.Port))
}

const DefaultClientPort = 50000

func defaultConfig() *Config {
	return &Config{
		DataDir:    ".",
		ClientPort: DefaultClientPort,
	}
}

// LoadConfig reads a JSON configuration file, falling back to defaults when
// path is empty.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config %s", path)
	}
	if err := json.Unmarshal(b, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config %s", path)
	}
	return cfg, nil
}

// gco is the global config owner: a single atomically-swapped holder every
// package reads through instead of passing *Config everywhere.
var gco atomic.Value

func init() { gco.Store(defaultConfig()) }

// GCO returns the process-wide configuration holder.
func GCO() *Config { return gco.Load().(*Config) }

// SetGCO atomically installs a new process-wide configuration.
func SetGCO(c *Config) { gco.Store(c) }
