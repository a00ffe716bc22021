package worker

import (
	"context"
	"time"

	"github.com/smallbiznis/habitquest/internal/snapshot/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Service domain.Service
	Config  Config `optional:"true"`
}

// Worker drains queued snapshot rebuild requests.
type Worker struct {
	log *zap.Logger
	svc domain.Service
	cfg Config
}

func NewWorker(p Params) *Worker {
	return &Worker{
		log: p.Log.Named("snapshot.worker"),
		svc: p.Service,
		cfg: p.Config.withDefaults(),
	}
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			w.log.Warn("snapshot rebuild run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) RunOnce(ctx context.Context) error {
	return w.svc.ProcessRebuildRequests(ctx, w.cfg.BatchSize)
}
