package config

import "time"

var redisConf Redis

type Redis struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

func GetRedisConf() Redis {
	return redisConf
}

func (r Redis) Enabled() bool {
	return r.Addr != ""
}
