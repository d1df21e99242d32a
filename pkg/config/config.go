// Package config loads session and node settings from a file, DKG_
// environment variables and defaults.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/Caqil/gennaro-dkg/pkg/crypto/curve"
	"github.com/Caqil/gennaro-dkg/pkg/keygen"
	"github.com/Caqil/gennaro-dkg/pkg/logger"
)

// EnvPrefix prefixes every environment override, e.g. DKG_THRESHOLD or
// DKG_TRANSPORT_NATS_URL
const EnvPrefix = "DKG"

const (
	TransportMemory = "memory"
	TransportNATS   = "nats"
)

var (
	// ErrInvalidConfig is returned when a setting is missing or malformed
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config is the resolved configuration
type Config struct {
	Curve           string
	Threshold       int
	Participants    []uint32
	Scheme          string
	DismissalPolicy string
	ComplaintQuorum int
	RoundTimeout    time.Duration

	LogLevel  string
	LogPretty bool
	AuditFile string

	TransportKind string
	NATSURL       string

	// SessionID is a UUID or any other string shared by all participants
	SessionID string

	// Seed makes simulations reproducible; empty means crypto/rand
	Seed string

	// NodeID is the local participant of a node
	NodeID uint32

	// IdentityKey is the hex X25519 private key of the node
	IdentityKey string

	// PeerKeys maps participant ids to hex X25519 public keys
	PeerKeys map[string]string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("curve", curve.Secp256k1.String())
	v.SetDefault("threshold", 2)
	v.SetDefault("participants", 3)
	v.SetDefault("scheme", keygen.SchemeFeldman.String())
	v.SetDefault("dismissal_policy", keygen.DismissOnVerification.String())
	v.SetDefault("complaint_quorum", 0)
	v.SetDefault("round_timeout", 10*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("audit_file", "")
	v.SetDefault("transport.kind", TransportMemory)
	v.SetDefault("transport.nats_url", "nats://127.0.0.1:4222")
	v.SetDefault("session_id", "")
	v.SetDefault("seed", "")
	v.SetDefault("node.id", 0)
	v.SetDefault("node.identity_key", "")
}

// NewViper returns a viper instance with the defaults and environment
// bindings applied. path, when set, names a YAML, JSON or TOML file.
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}
	return v, nil
}

// Load reads the configuration from path (optional) and the environment
func Load(path string) (*Config, error) {
	v, err := NewViper(path)
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

// FromViper resolves a Config from v
func FromViper(v *viper.Viper) (*Config, error) {
	participants, err := parseParticipants(v.Get("participants"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Curve:           v.GetString("curve"),
		Threshold:       v.GetInt("threshold"),
		Participants:    participants,
		Scheme:          v.GetString("scheme"),
		DismissalPolicy: v.GetString("dismissal_policy"),
		ComplaintQuorum: v.GetInt("complaint_quorum"),
		RoundTimeout:    v.GetDuration("round_timeout"),
		LogLevel:        v.GetString("log.level"),
		LogPretty:       v.GetBool("log.pretty"),
		AuditFile:       v.GetString("audit_file"),
		TransportKind:   strings.ToLower(v.GetString("transport.kind")),
		NATSURL:         v.GetString("transport.nats_url"),
		SessionID:       v.GetString("session_id"),
		Seed:            v.GetString("seed"),
		NodeID:          v.GetUint32("node.id"),
		IdentityKey:     v.GetString("node.identity_key"),
		PeerKeys:        v.GetStringMapString("node.peers"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that do not depend on the keygen package
func (c *Config) Validate() error {
	if _, err := curve.ParseCurveType(c.Curve); err != nil {
		return fmt.Errorf("%w: curve %q", ErrInvalidConfig, c.Curve)
	}
	if c.RoundTimeout <= 0 {
		return fmt.Errorf("%w: round_timeout must be positive", ErrInvalidConfig)
	}
	switch c.TransportKind {
	case TransportMemory, TransportNATS:
	default:
		return fmt.Errorf("%w: transport.kind %q", ErrInvalidConfig, c.TransportKind)
	}
	return nil
}

// Parameters builds the keygen parameters. An empty session id is replaced
// by a random UUID, which only makes sense for simulations.
func (c *Config) Parameters() (keygen.Parameters, error) {
	ct, err := curve.ParseCurveType(c.Curve)
	if err != nil {
		return keygen.Parameters{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	g, err := curve.NewGroup(ct)
	if err != nil {
		return keygen.Parameters{}, err
	}
	scheme, err := keygen.ParseScheme(c.Scheme)
	if err != nil {
		return keygen.Parameters{}, err
	}
	policy, err := keygen.ParseDismissalPolicy(c.DismissalPolicy)
	if err != nil {
		return keygen.Parameters{}, err
	}

	p := keygen.Parameters{
		Group:           g,
		Threshold:       c.Threshold,
		Participants:    append([]uint32(nil), c.Participants...),
		Scheme:          scheme,
		Dismissal:       policy,
		ComplaintQuorum: c.ComplaintQuorum,
		SessionID:       c.SessionBytes(),
	}
	if len(p.SessionID) == 0 {
		id := uuid.New()
		p.SessionID = id[:]
	}
	return p, p.Validate()
}

// SessionBytes returns the binary session id: the 16 bytes of a UUID, or
// the raw string otherwise
func (c *Config) SessionBytes() []byte {
	if c.SessionID == "" {
		return nil
	}
	if u, err := uuid.Parse(c.SessionID); err == nil {
		return u[:]
	}
	return []byte(c.SessionID)
}

// SeedBytes returns the simulation seed, or nil
func (c *Config) SeedBytes() []byte {
	if c.Seed == "" {
		return nil
	}
	return []byte(c.Seed)
}

// Logger builds the configured logger writing to stderr
func (c *Config) Logger() *logger.Logger {
	cfg := logger.DefaultConfig()
	cfg.Level = c.LogLevel
	cfg.Pretty = c.LogPretty
	cfg.Output = os.Stderr
	return logger.New(cfg)
}

// NodeKeys decodes the node's identity key and the peers' public keys
func (c *Config) NodeKeys() (private []byte, peers map[uint32][]byte, err error) {
	if c.NodeID == 0 {
		return nil, nil, fmt.Errorf("%w: node.id is required", ErrInvalidConfig)
	}
	private, err = hex.DecodeString(c.IdentityKey)
	if err != nil || len(private) == 0 {
		return nil, nil, fmt.Errorf("%w: node.identity_key must be hex", ErrInvalidConfig)
	}

	peers = make(map[uint32][]byte, len(c.PeerKeys))
	for key, value := range c.PeerKeys {
		id, err := strconv.ParseUint(key, 10, 32)
		if err != nil || id == 0 {
			return nil, nil, fmt.Errorf("%w: peer id %q", ErrInvalidConfig, key)
		}
		pub, err := hex.DecodeString(value)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: peer %d key must be hex", ErrInvalidConfig, id)
		}
		peers[uint32(id)] = pub
	}
	for _, id := range c.Participants {
		if _, ok := peers[id]; !ok && id != c.NodeID {
			return nil, nil, fmt.Errorf("%w: no public key for participant %d", ErrInvalidConfig, id)
		}
	}
	return private, peers, nil
}

// parseParticipants accepts a count n (meaning ids 1..n) or an explicit
// list of ids, either as a sequence or a comma separated string
func parseParticipants(raw any) ([]uint32, error) {
	switch v := raw.(type) {
	case int:
		return roster(v)
	case int64:
		return roster(int(v))
	case float64:
		return roster(int(v))
	case string:
		parts := strings.Split(v, ",")
		if len(parts) == 1 {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("%w: participants %q", ErrInvalidConfig, v)
			}
			return roster(n)
		}
		return parseIDs(parts)
	case []any:
		parts := make([]string, len(v))
		for i, p := range v {
			parts[i] = fmt.Sprint(p)
		}
		return parseIDs(parts)
	case []int:
		parts := make([]string, len(v))
		for i, p := range v {
			parts[i] = strconv.Itoa(p)
		}
		return parseIDs(parts)
	case []string:
		return parseIDs(v)
	default:
		return nil, fmt.Errorf("%w: participants has type %T", ErrInvalidConfig, raw)
	}
}

func roster(n int) ([]uint32, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: participant count %d", ErrInvalidConfig, n)
	}
	ids := make([]uint32, n)
	for i := range ids {
		ids[i] = uint32(i + 1)
	}
	return ids, nil
}

func parseIDs(parts []string) ([]uint32, error) {
	ids := make([]uint32, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseUint(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: participant id %q", ErrInvalidConfig, p)
		}
		ids = append(ids, uint32(id))
	}
	return ids, nil
}
