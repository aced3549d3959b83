package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

const ENV_PREFIX = "UNDERCOVER"

type GameConfig struct {
	RevealSeconds      int           `mapstructure:"reveal_seconds"`
	TurnSeconds        int           `mapstructure:"turn_seconds"`
	VoteSeconds        int           `mapstructure:"vote_seconds"`
	ResultSeconds      int           `mapstructure:"result_seconds"`
	FinalResultSeconds int           `mapstructure:"final_result_seconds"`
	TickInterval       time.Duration `mapstructure:"tick_interval"`
}

type WSConfig struct {
	EventsPerSecond float64 `mapstructure:"events_per_second"`
	EventBurst      int     `mapstructure:"event_burst"`
	SendBuffer      int     `mapstructure:"send_buffer"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type AppConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	LogLevel  string `mapstructure:"log_level"`
	StaticDir string `mapstructure:"static_dir"`
	// 为空时使用内置词库
	WordsFile string `mapstructure:"words_file"`

	Game    GameConfig    `mapstructure:"game"`
	WS      WSConfig      `mapstructure:"ws"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

func (c *AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate 一次性返回所有配置错误
func (c *AppConfig) Validate() error {
	var err error

	if c.Port < 1 || c.Port > 65535 {
		err = multierr.Append(err, fmt.Errorf("端口必须在 1-65535 之间: %d", c.Port))
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		err = multierr.Append(err, fmt.Errorf("未知的日志级别: %q", c.LogLevel))
	}

	seconds := []struct {
		key   string
		value int
	}{
		{"game.reveal_seconds", c.Game.RevealSeconds},
		{"game.turn_seconds", c.Game.TurnSeconds},
		{"game.vote_seconds", c.Game.VoteSeconds},
		{"game.result_seconds", c.Game.ResultSeconds},
		{"game.final_result_seconds", c.Game.FinalResultSeconds},
	}
	for _, s := range seconds {
		if s.value < 1 {
			err = multierr.Append(err, fmt.Errorf("%s 必须大于 0: %d", s.key, s.value))
		}
	}

	if c.Game.TickInterval <= 0 {
		err = multierr.Append(err, fmt.Errorf("game.tick_interval 必须大于 0: %s", c.Game.TickInterval))
	}

	if c.WS.EventsPerSecond <= 0 {
		err = multierr.Append(err, fmt.Errorf("ws.events_per_second 必须大于 0: %v", c.WS.EventsPerSecond))
	}

	if c.WS.EventBurst < 1 {
		err = multierr.Append(err, fmt.Errorf("ws.event_burst 必须大于 0: %d", c.WS.EventBurst))
	}

	if c.WS.SendBuffer < 1 {
		err = multierr.Append(err, fmt.Errorf("ws.send_buffer 必须大于 0: %d", c.WS.SendBuffer))
	}

	return err
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 3000)
	v.SetDefault("log_level", "info")
	v.SetDefault("static_dir", "./public")
	v.SetDefault("words_file", "")

	v.SetDefault("game.reveal_seconds", 10)
	v.SetDefault("game.turn_seconds", 30)
	v.SetDefault("game.vote_seconds", 20)
	v.SetDefault("game.result_seconds", 8)
	v.SetDefault("game.final_result_seconds", 10)
	v.SetDefault("game.tick_interval", "1s")

	v.SetDefault("ws.events_per_second", 10)
	v.SetDefault("ws.event_burst", 20)
	v.SetDefault("ws.send_buffer", 64)

	v.SetDefault("metrics.enabled", true)
}

// 命令行参数名 -> 配置项
var flagKeys = map[string]string{
	"host":       "host",
	"port":       "port",
	"log-level":  "log_level",
	"static-dir": "static_dir",
	"words-file": "words_file",
}

// RegisterFlags 注册可以覆盖配置文件的命令行参数
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to config file (default ./app_config.json)")
	fs.String("host", "0.0.0.0", "address to bind to (env: UNDERCOVER_HOST)")
	fs.IntP("port", "p", 3000, "port to listen on (env: UNDERCOVER_PORT)")
	fs.String("log-level", "info", "debug|info|warn|error (env: UNDERCOVER_LOG_LEVEL)")
	fs.String("static-dir", "./public", "directory served at / when it exists (env: UNDERCOVER_STATIC_DIR)")
	fs.String("words-file", "", "json word pair file, empty for the built-in set (env: UNDERCOVER_WORDS_FILE)")
}

// InitConfig 按 命令行 > 环境变量(.env) > 配置文件 > 默认值 的优先级加载配置
func InitConfig(fs *pflag.FlagSet) (*AppConfig, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(ENV_PREFIX)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	configFile := ""
	if fs != nil {
		configFile, _ = fs.GetString("config")
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("app_config")
		v.SetConfigType("json")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("加载配置失败: %w", err)
		}
	}

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("绑定命令行参数 %s 失败: %w", name, err)
				}
			}
		}
	}

	var config AppConfig

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	config.LogLevel = strings.ToLower(strings.TrimSpace(config.LogLevel))

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("配置无效: %w", err)
	}

	return &config, nil
}
