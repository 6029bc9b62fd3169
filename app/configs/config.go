package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

type Config struct {
	Server ServerConfig `json:"server"`
	LLM    LLMConfig    `json:"llm"`
	Task   TaskConfig   `json:"task"`
	Paths  PathsConfig  `json:"paths"`
}

type ServerConfig struct {
	Port int `json:"port"`
}

type LLMConfig struct {
	Model           string `json:"model"`
	ParseTimeoutSec int    `json:"parse_timeout_sec"`
}

type TaskConfig struct {
	ExecuteTimeoutSec  int    `json:"execute_timeout_sec"`
	ReaperIntervalSec  int    `json:"reaper_interval_sec"`
	StuckMaxAgeSec     int    `json:"stuck_max_age_sec"`
	RecentEmailLimit   int    `json:"recent_email_limit"`
	DispatchWorkers    int    `json:"dispatch_workers"`
	DispatchBufferSize int    `json:"dispatch_buffer_size"`
	CLIUserID          string `json:"cli_user_id"`
}

type PathsConfig struct {
	DataDir string `json:"data_dir"`
	LogDir  string `json:"log_dir"`
}

type Manager struct {
	path string
	mu   sync.RWMutex
	cfg  Config
}

func DefaultPath() string {
	return filepath.Join("config", "config.json")
}

func NewManager(path string) (*Manager, error) {
	mgr := &Manager{
		path: path,
		cfg:  defaultConfig(),
	}
	if err := mgr.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}
	if err := mgr.save(); err != nil {
		return nil, err
	}
	return mgr, nil
}

func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) Update(apply func(*Config)) (Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	apply(&m.cfg)
	applyDefaults(&m.cfg)
	if err := m.saveLocked(); err != nil {
		return Config{}, err
	}
	return m.cfg, nil
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return err
	}
	var fileCfg Config
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		return err
	}
	m.cfg = fileCfg
	applyDefaults(&m.cfg)
	return nil
}

func (m *Manager) save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked()
}

func (m *Manager) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m.cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0644)
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port: 8090,
		},
		LLM: LLMConfig{
			Model:           "gpt-4o-mini",
			ParseTimeoutSec: 15,
		},
		Task: TaskConfig{
			ExecuteTimeoutSec:  30,
			ReaperIntervalSec:  60,
			StuckMaxAgeSec:     300,
			RecentEmailLimit:   10,
			DispatchWorkers:    2,
			DispatchBufferSize: 32,
			CLIUserID:          "local_user",
		},
		Paths: PathsConfig{
			DataDir: "data",
			LogDir:  "logs",
		},
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		cfg.Server.Port = 8090
	}
	if strings.TrimSpace(cfg.LLM.Model) == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.ParseTimeoutSec <= 0 {
		cfg.LLM.ParseTimeoutSec = 15
	}
	if cfg.Task.ExecuteTimeoutSec <= 0 {
		cfg.Task.ExecuteTimeoutSec = 30
	}
	if cfg.Task.ReaperIntervalSec <= 0 {
		cfg.Task.ReaperIntervalSec = 60
	}
	if cfg.Task.StuckMaxAgeSec <= 0 {
		cfg.Task.StuckMaxAgeSec = 300
	}
	if cfg.Task.RecentEmailLimit <= 0 {
		cfg.Task.RecentEmailLimit = 10
	}
	if cfg.Task.DispatchWorkers <= 0 {
		cfg.Task.DispatchWorkers = 2
	}
	if cfg.Task.DispatchBufferSize <= 0 {
		cfg.Task.DispatchBufferSize = 32
	}
	if strings.TrimSpace(cfg.Task.CLIUserID) == "" {
		cfg.Task.CLIUserID = "local_user"
	}
	if strings.TrimSpace(cfg.Paths.DataDir) == "" {
		cfg.Paths.DataDir = "data"
	}
	if strings.TrimSpace(cfg.Paths.LogDir) == "" {
		cfg.Paths.LogDir = "logs"
	}
}
