package services

import (
	"context"
	"strings"
	"time"

	"github.com/imroc/req/v3"
	log "github.com/sirupsen/logrus"
)

// Probe 检查上游模型服务是否可用
type Probe struct {
	client  *req.Client
	baseURL string
	apiKey  string
}

func NewProbe(baseURL, apiKey string) *Probe {
	return &Probe{
		client:  req.C().SetTimeout(5 * time.Second),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

// Available GET {baseUrl}/models 返回 2xx 即可用
func (p *Probe) Available(ctx context.Context) bool {
	resp, err := p.client.R().
		SetContext(ctx).
		SetBearerAuthToken(p.apiKey).
		Get(p.baseURL + "/models")
	if err != nil {
		log.Warnf("model availability check failed: %v", err)
		return false
	}
	return resp.IsSuccessState()
}
