package services

import "errors"

var (
	// ErrChunkClassification 单个分块处理失败，跳过该分块
	ErrChunkClassification = errors.New("chunk classification fault")
	// ErrUpstreamStream 上游连接级失败，流以 error 事件终止
	ErrUpstreamStream = errors.New("upstream stream fault")
	// ErrNormalization 单条证据解析失败，回退为默认字段
	ErrNormalization = errors.New("normalization fault")
)
