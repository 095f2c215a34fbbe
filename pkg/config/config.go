package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type appConfig struct {
	Server    Server    `mapstructure:"server"`
	Openai    Openai    `mapstructure:"openai"`
	Streaming Streaming `mapstructure:"streaming"`
	Redis     Redis     `mapstructure:"redis"`
	Mysql     Mysql     `mapstructure:"mysql"`
	Log       Log       `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8001")
	v.SetDefault("server.runMode", "release")
	v.SetDefault("server.corsOrigins", []string{
		"http://localhost:3000",
		"http://127.0.0.1:3000",
		"http://localhost:3100",
		"http://127.0.0.1:3100",
	})

	v.SetDefault("openai.baseUrl", "https://api.baichuan-ai.com/v1/")
	v.SetDefault("openai.model", "Baichuan-M2-Plus")
	v.SetDefault("openai.systemPrompt", defaultSystemPrompt)
	v.SetDefault("openai.followUpPrompt", defaultFollowUpPrompt)
	v.SetDefault("openai.temperature", 0.1)
	v.SetDefault("openai.topP", 0.9)
	v.SetDefault("openai.maxTokens", 2000)
	v.SetDefault("openai.llmFollowUps", false)

	v.SetDefault("streaming.wordDelay", 50*time.Millisecond)
	v.SetDefault("streaming.chunkTimeout", 60*time.Second)
	v.SetDefault("streaming.heartbeatInterval", 15*time.Second)
	v.SetDefault("streaming.maxQuestionLength", 2500)

	v.SetDefault("redis.ttl", 5*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Init 加载配置文件与环境变量（EVIDENCE_ 前缀），path 为空时按默认路径查找
func Init(path string) error {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.SetConfigName("config")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("EVIDENCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv 只对已知 key 生效，密钥没有默认值需要显式绑定
	_ = v.BindEnv("openai.apikey")
	_ = v.BindEnv("redis.addr")
	_ = v.BindEnv("redis.password")
	_ = v.BindEnv("mysql.host")
	_ = v.BindEnv("mysql.username")
	_ = v.BindEnv("mysql.password")
	_ = v.BindEnv("mysql.dbName")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return fmt.Errorf("read config: %w", err)
		}
		log.Warn("config file not found, using defaults and environment")
	}

	var c appConfig
	if err := v.Unmarshal(&c); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	apply(c)
	return nil
}

func apply(c appConfig) {
	serverConf = c.Server
	myopenai = c.Openai
	streamingConf = c.Streaming
	redisConf = c.Redis
	mysqlConf = c.Mysql
	logConf = c.Log
}

// InitLogger 根据 log 配置初始化 logrus
func InitLogger() {
	level, err := log.ParseLevel(logConf.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetOutput(os.Stdout)
	if strings.EqualFold(logConf.Format, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}
