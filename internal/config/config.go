package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 配置主体
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	Client ClientConfig `mapstructure:"client"`
}

// ServerConfig 聊天室服务端配置
type ServerConfig struct {
	Addr       string        `mapstructure:"addr"`
	StaticDir  string        `mapstructure:"static_dir"`
	Heartbeat  time.Duration `mapstructure:"heartbeat"`
	SendBuffer int           `mapstructure:"send_buffer"`
}

// LogConfig 日志配置
type LogConfig struct {
	Dir    string `mapstructure:"dir"`
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text | json
}

// ClientConfig 终端客户端配置
type ClientConfig struct {
	URL  string `mapstructure:"url"`
	Name string `mapstructure:"name"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "0.0.0.0:80")
	v.SetDefault("server.static_dir", "dist")
	v.SetDefault("server.heartbeat", 20*time.Second)
	v.SetDefault("server.send_buffer", 100)
	v.SetDefault("log.dir", "logs")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("client.url", "ws://127.0.0.1:80/ws")
	v.SetDefault("client.name", "")
}

// LoadConfig 从 dir/config.yaml 加载配置，文件不存在时只用默认值和环境变量
func LoadConfig(dir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetEnvPrefix("CHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Server.SendBuffer <= 0 {
		return nil, fmt.Errorf("invalid server.send_buffer %d", cfg.Server.SendBuffer)
	}
	return &cfg, nil
}
