package util

import (
	"context"
	"time"
)

// Clock 时间来源，测试中可替换
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

var SystemClock Clock = systemClock{}

// Pacer 正文帧之间的最小间隔
type Pacer interface {
	Wait(ctx context.Context) error
}

type IntervalPacer struct {
	Delay time.Duration
	Clock Clock
}

func NewIntervalPacer(delay time.Duration, clock Clock) *IntervalPacer {
	if clock == nil {
		clock = SystemClock
	}
	return &IntervalPacer{Delay: delay, Clock: clock}
}

func (p *IntervalPacer) Wait(ctx context.Context) error {
	if p.Delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.Clock.After(p.Delay):
		return nil
	}
}

// NoPacer 不节流
type NoPacer struct{}

func (NoPacer) Wait(ctx context.Context) error { return ctx.Err() }
