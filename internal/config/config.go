package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"gopkg.in/yaml.v3"
)

type HostType string

const (
	HostLocal  HostType = "local"
	HostRemote HostType = "remote"
	HostS3     HostType = "s3"
)

const TargetVolume = "volume"

// volumeName is the set of names docker accepts for volumes. Target names are
// also used as archive file names, so this keeps them inside the host path.
var volumeName = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

type Host struct {
	Name     string    `yaml:"name"`
	Type     HostType  `yaml:"host_type"`
	Path     string    `yaml:"path"`
	Hostname string    `yaml:"hostname,omitempty"`
	User     string    `yaml:"user,omitempty"`
	Port     int       `yaml:"port,omitempty"`
	S3       *S3Config `yaml:"s3,omitempty"`
}

type Target struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type S3Config struct {
	Bucket       string             `yaml:"bucket"`
	Region       string             `yaml:"region"`
	Endpoint     string             `yaml:"endpoint"`
	StorageClass types.StorageClass `yaml:"storage_class"`
	Retry        struct {
		MaxAttempts int `yaml:"max_attempts"`
	} `yaml:"retry,omitempty"`
}

type Images struct {
	Archive       string `yaml:"archive"`
	RemoteArchive string `yaml:"remote_archive"`
}

type SSHConfig struct {
	Dir                   string `yaml:"dir"`
	KnownHosts            string `yaml:"known_hosts"`
	InsecureIgnoreHostKey bool   `yaml:"insecure_ignore_host_key"`
}

type Config struct {
	Hosts      []Host    `yaml:"hosts"`
	Targets    []Target  `yaml:"targets"`
	Images     Images    `yaml:"images"`
	StagingDir string    `yaml:"staging_dir"`
	LogDir     string    `yaml:"log_dir"`
	SSH        SSHConfig `yaml:"ssh"`
}

func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if len(c.Hosts) == 0 {
		return fmt.Errorf("at least one host is required")
	}
	if len(c.Targets) == 0 {
		return fmt.Errorf("at least one target is required")
	}

	hostNames := make(map[string]bool)
	for i, h := range c.Hosts {
		if h.Name == "" {
			return fmt.Errorf("hosts[%d].name is required", i)
		}
		if hostNames[h.Name] {
			return fmt.Errorf("hosts[%d].name %q is duplicated", i, h.Name)
		}
		hostNames[h.Name] = true
		if h.Path == "" {
			return fmt.Errorf("hosts[%d].path is required", i)
		}
		switch h.Type {
		case HostLocal:
		case HostRemote:
			if h.Hostname == "" {
				return fmt.Errorf("hosts[%d].hostname is required for remote hosts", i)
			}
			if h.User == "" {
				return fmt.Errorf("hosts[%d].user is required for remote hosts", i)
			}
			if h.Port < 0 || h.Port > 65535 {
				return fmt.Errorf("hosts[%d].port %d is out of range", i, h.Port)
			}
		case HostS3:
			if h.S3 == nil {
				return fmt.Errorf("hosts[%d].s3 is required for s3 hosts", i)
			}
			if h.S3.Bucket == "" {
				return fmt.Errorf("hosts[%d].s3.bucket is required", i)
			}
			if h.S3.Region == "" {
				return fmt.Errorf("hosts[%d].s3.region is required", i)
			}
		default:
			return fmt.Errorf("hosts[%d].host_type must be one of local, remote, s3, got %q", i, h.Type)
		}
	}

	targetNames := make(map[string]bool)
	for i, t := range c.Targets {
		if t.Name == "" {
			return fmt.Errorf("targets[%d].name is required", i)
		}
		if !volumeName.MatchString(t.Name) {
			return fmt.Errorf("targets[%d].name %q is not a valid volume name", i, t.Name)
		}
		if targetNames[t.Name] {
			return fmt.Errorf("targets[%d].name %q is duplicated", i, t.Name)
		}
		targetNames[t.Name] = true
		if t.Type != TargetVolume {
			return fmt.Errorf("targets[%d].type must be %q, got %q", i, TargetVolume, t.Type)
		}
	}
	return nil
}

func (c *Config) FindHost(name string) (*Host, error) {
	for _, h := range c.Hosts {
		if h.Name == name {
			return &h, nil
		}
	}
	return nil, fmt.Errorf("host not found: %s", name)
}

func (c *Config) ArchiveImage() string {
	if c.Images.Archive != "" {
		return c.Images.Archive
	}
	return "ubuntu"
}

func (c *Config) RemoteArchiveImage() string {
	if c.Images.RemoteArchive != "" {
		return c.Images.RemoteArchive
	}
	return "kroniak/ssh-client"
}

func (c *Config) Staging() string {
	if c.StagingDir != "" {
		return c.StagingDir
	}
	return filepath.Join(os.TempDir(), "privateer")
}

// SSHDir falls back to ~/.ssh, or an empty string when the home directory is unknown.
func (c *Config) SSHDir() string {
	if c.SSH.Dir != "" {
		return c.SSH.Dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ssh")
}

func (c *Config) KnownHostsFile() string {
	if c.SSH.KnownHosts != "" {
		return c.SSH.KnownHosts
	}
	return filepath.Join(c.SSHDir(), "known_hosts")
}

func (h *Host) SSHPort() int {
	if h.Port > 0 {
		return h.Port
	}
	return 22
}

func (s *S3Config) RetryAttempts() int {
	if s.Retry.MaxAttempts > 0 {
		return s.Retry.MaxAttempts
	}
	return 3
}

func (s *S3Config) Class() types.StorageClass {
	if s.StorageClass != "" {
		return s.StorageClass
	}
	return types.StorageClassStandard
}
