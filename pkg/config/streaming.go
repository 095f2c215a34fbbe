package config

import "time"

var streamingConf Streaming

type Streaming struct {
	WordDelay         time.Duration `mapstructure:"wordDelay"`
	ChunkTimeout      time.Duration `mapstructure:"chunkTimeout"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeatInterval"`
	MaxQuestionLength int           `mapstructure:"maxQuestionLength"`
}

func GetStreamingConf() Streaming {
	return streamingConf
}
