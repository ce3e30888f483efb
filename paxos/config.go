// Package paxos implements the Proposer, Acceptor, and Learner state
// machines and the Node that composes them, generalized from the
// teacher's paxos/acceptor.go, paxos/proposer.go, paxos/learner.go.
package paxos

import (
	"fmt"
	"io/ioutil"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v2"
)

// Config holds the options a Node is built from. Generalized from
// the teacher's paxos/config/config.go Conf: DB_PATH/PID/NODES/QUORUM
// become StoragePath/UID/Nodes/QuorumSize here, and
// WAIT_BEFORE_AUTOMATIC_REQUEST/SEEK_TIMEOUT collapse into the spec's
// TakeCutoff/DelayBeforeClaimingLeadership, since this port drives
// retries through retry.Coordinator rather than a flat sleep.
type Config struct {
	UID  string `yaml:"uid"`
	Port int    `yaml:"port"`

	Nodes      []string `yaml:"nodes"`
	QuorumSize int      `yaml:"quorum_size"`

	TakeCutoff                    time.Duration `yaml:"take_cutoff"`
	DelayBeforeClaimingLeadership time.Duration `yaml:"delay_before_claiming_leadership"`

	StorageBackend string `yaml:"storage_backend"` // "memory", "sqlite", or "redis"
	StoragePath    string `yaml:"storage_path"`     // sqlite file path
	RedisAddr      string `yaml:"redis_addr"`
}

// LoadConfigFile loads a yaml Config file, mirroring the teacher's
// Conf.LoadConfigFile.
func LoadConfigFile(path string) (Config, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("paxos: read config %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return Config{}, fmt.Errorf("paxos: parse config %s: %w", path, err)
	}
	c.FillDefaults()
	return c, nil
}

// NewUID returns a random tie-break-ready node identifier, mirroring
// the teacher's random-PID default for an unconfigured node uid.
func NewUID() string {
	return uuid.New().String()
}

// FillDefaults fills fields left empty by the yaml file, mirroring
// the teacher's Conf.FillEmptyFields.
func (c *Config) FillDefaults() {
	if c.UID == "" {
		c.UID = NewUID()
	}
	if c.QuorumSize == 0 {
		c.QuorumSize = len(c.Nodes)
	}
	if c.TakeCutoff == 0 {
		c.TakeCutoff = 100 * time.Millisecond
	}
	if c.DelayBeforeClaimingLeadership == 0 {
		c.DelayBeforeClaimingLeadership = 500 * time.Millisecond
	}
	if c.StorageBackend == "" {
		c.StorageBackend = "memory"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
}

// CalculateMajority returns the minimum number of agreeing acceptors
// needed to choose or promise for a quorum of the given size:
// floor(n/2)+1.
func CalculateMajority(quorumSize int) int {
	return quorumSize/2 + 1
}
