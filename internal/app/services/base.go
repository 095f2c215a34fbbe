package services

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"evidence-agent/internal/app/models"
	"evidence-agent/internal/app/repositories"
	"evidence-agent/internal/pkg/storage"
	"evidence-agent/pkg/config"
	"evidence-agent/pkg/util"
)

var (
	initOnce sync.Once
	initErr  error
)

var (
	Chat         *UpstreamClient
	Orchestrator *StreamOrchestrator
	References   *ReferenceService
	Preferences  *PreferenceService
	ModelProbe   *Probe
)

// Init 按配置构建服务单例，需在 config 与 storage 初始化之后调用
func Init() error {
	initOnce.Do(func() {
		openaiConf := config.GetOpenaiConf()
		streamingConf := config.GetStreamingConf()

		Chat = NewUpstreamClient(openaiConf)
		ModelProbe = NewProbe(openaiConf.BaseURL, openaiConf.ApiKey)

		var store ReferenceStore = NewMemoryReferenceStore()
		if storage.Redis != nil {
			store = NewRedisReferenceStore(storage.Redis, config.GetRedisConf().TTL)
		}
		index, err := NewReferenceIndex()
		if err != nil {
			initErr = err
			return
		}
		References = NewReferenceService(store, index, util.SystemClock)
		if err := References.Warm(context.Background()); err != nil {
			log.Warnf("warm reference index failed: %v", err)
		}

		var repo PreferenceRepo
		if storage.DB != nil {
			repo = repositories.NewPreferenceRepository(storage.DB)
		}
		Preferences = NewPreferenceService(repo, openaiConf.Model)

		opts := append(PipelineOptions(openaiConf, streamingConf, Chat), WithReferencesHook(detachHook(References.Cache)))
		Orchestrator = NewStreamOrchestrator(Chat, opts...)
		log.Infof("services initialized, model: %s", openaiConf.Model)
	})
	return initErr
}

// PipelineOptions 按配置构建编排器选项，serve 与 ask 共用
func PipelineOptions(openaiConf config.Openai, streamingConf config.Streaming, completer Completer) []OrchestratorOption {
	var followUps FollowUpGenerator = KeywordFollowUps{}
	if openaiConf.LLMFollowUps {
		followUps = NewLLMFollowUps(completer, openaiConf.FollowUpPrompt)
	}
	return []OrchestratorOption{
		WithPacer(util.NewIntervalPacer(streamingConf.WordDelay, util.SystemClock)),
		WithChunkTimeout(streamingConf.ChunkTimeout),
		WithHeartbeat(streamingConf.HeartbeatInterval),
		WithFollowUps(followUps),
	}
}

const hookTimeout = 10 * time.Second

// detachHook 后台执行，不阻塞正文输出，也不随请求取消
func detachHook(h ReferencesHook) ReferencesHook {
	return func(ctx context.Context, refs []models.EvidenceRecord) {
		go func() {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), hookTimeout)
			defer cancel()
			h(ctx, refs)
		}()
	}
}
