package janitor

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"peerhub/internal/session"
)

// Janitor runs the hub's background sweeps: aging out stale cursors every
// five seconds and evicting rooms that have sat empty past the idle window.
type Janitor struct {
	hub     *session.Hub
	cron    *cron.Cron
	idleFor time.Duration
	log     *zap.Logger
}

func New(hub *session.Hub, idleFor time.Duration, log *zap.Logger) *Janitor {
	return &Janitor{
		hub:     hub,
		cron:    cron.New(cron.WithSeconds()),
		idleFor: idleFor,
		log:     log,
	}
}

func (j *Janitor) Start() error {
	if _, err := j.cron.AddFunc("*/5 * * * * *", j.sweepCursors); err != nil {
		return err
	}
	if _, err := j.cron.AddFunc("0 * * * * *", j.evictIdleRooms); err != nil {
		return err
	}
	j.cron.Start()
	j.log.Info("janitor started", zap.Duration("roomIdleEviction", j.idleFor))
	return nil
}

// Stop halts scheduling and waits for in-flight sweeps.
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}

func (j *Janitor) sweepCursors() {
	j.hub.SweepCursors(time.Now())
}

func (j *Janitor) evictIdleRooms() {
	if n := j.hub.EvictIdle(time.Now(), j.idleFor); n > 0 {
		j.log.Info("idle room scan", zap.Int("evicted", n))
	}
}
