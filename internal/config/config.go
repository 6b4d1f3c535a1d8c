package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config is the union of every setting either the dispatcher or the worker
// binary can take. Only the relevant section is read by each; both tolerate
// the other's section being absent or zero-valued.
type Config struct {
	Dispatcher DispatcherConfig
	Worker     WorkerConfig
	Redis      RedisConfig
	History    HistoryConfig
	Metrics    MetricsConfig
	Auth       AuthConfig
	LogLevel   string
}

// DispatcherConfig configures the coordinator process: where it listens for
// worker connections, where it serves the HTTP query surface, and the
// timing of its scheduler and reaper ticks.
type DispatcherConfig struct {
	ListenAddr       string
	HTTPAddr         string
	AdminPort        int
	SchedulerTick    time.Duration
	ReaperTick       time.Duration
	WorkerStaleAfter time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
}

// RedisConfig configures the event-bus connection used to feed the
// WebSocket dashboard. It plays no role in task dispatch itself.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// WorkerConfig configures one worker process.
type WorkerConfig struct {
	Name              string
	DispatcherAddr    string
	BindHost          string
	BasePort          int
	PortScanRange     int
	MaxJobs           int
	AllowShell        bool
	WorkDir           string
	HeartbeatInterval time.Duration
	ShutdownTimeout   time.Duration
}

// HistoryConfig configures the durable SQLite store.
type HistoryConfig struct {
	DBPath string
}

type MetricsConfig struct {
	Enabled bool
	Path    string
}

type AuthConfig struct {
	Enabled   bool
	JWTSecret string
	APIKeys   []string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/taskmesh")

	setDefaults()

	viper.SetEnvPrefix("TASKMESH")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("dispatcher.listenaddr", "0.0.0.0:7500")
	viper.SetDefault("dispatcher.httpaddr", "0.0.0.0:8080")
	viper.SetDefault("dispatcher.adminport", 8081)
	viper.SetDefault("dispatcher.schedulertick", 500*time.Millisecond)
	viper.SetDefault("dispatcher.reapertick", 10*time.Second)
	viper.SetDefault("dispatcher.workerstaleafter", 30*time.Second)
	viper.SetDefault("dispatcher.readtimeout", 30*time.Second)
	viper.SetDefault("dispatcher.writetimeout", 30*time.Second)
	viper.SetDefault("dispatcher.idletimeout", 120*time.Second)

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.poolsize", 100)
	viper.SetDefault("redis.minidleconns", 10)
	viper.SetDefault("redis.maxretries", 3)
	viper.SetDefault("redis.dialtimeout", 5*time.Second)
	viper.SetDefault("redis.readtimeout", 3*time.Second)
	viper.SetDefault("redis.writetimeout", 3*time.Second)

	viper.SetDefault("worker.name", "")
	viper.SetDefault("worker.dispatcheraddr", "localhost:7500")
	viper.SetDefault("worker.bindhost", "0.0.0.0")
	viper.SetDefault("worker.baseport", 7879)
	viper.SetDefault("worker.portscanrange", 100)
	viper.SetDefault("worker.maxjobs", 4)
	viper.SetDefault("worker.allowshell", true)
	viper.SetDefault("worker.workdir", "")
	viper.SetDefault("worker.heartbeatinterval", 5*time.Second)
	viper.SetDefault("worker.shutdowntimeout", 30*time.Second)

	viper.SetDefault("history.dbpath", "taskmesh.db")

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")

	viper.SetDefault("auth.enabled", false)
	viper.SetDefault("auth.jwtsecret", "")
	viper.SetDefault("auth.apikeys", []string{})

	viper.SetDefault("loglevel", "info")
}
