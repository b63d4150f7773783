package component

import (
	"context"
	"time"

	"distribution-service/pkg/config"
	"distribution-service/pkg/logger"
	"distribution-service/pkg/manager"
	"distribution-service/pkg/task"
)

// SessionSweeper app.UploadApp 中用到的部分
type SessionSweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// StaleRecoverer app.PipelineApp 中用到的部分
type StaleRecoverer interface {
	RecoverStale(ctx context.Context, olderThan time.Duration) (int, error)
	RecoverStalePublications(ctx context.Context, olderThan time.Duration) (int, error)
}

// StaleAfter 成片与发布各自的卡住判定时长，0 表示不回收
type StaleAfter struct {
	Variants     time.Duration
	Publications time.Duration
}

// SweepReport 一轮清理的结果
type SweepReport struct {
	SessionsRemoved       int
	VariantsRecovered     int
	PublicationsRecovered int
}

// Sweeper 清理过期上传会话，并回收卡住的成片和发布记录
type Sweeper struct {
	sessions  SessionSweeper
	recoverer StaleRecoverer
	stale     StaleAfter
}

func NewSweeper(sessions SessionSweeper, recoverer StaleRecoverer, stale StaleAfter) *Sweeper {
	return &Sweeper{sessions: sessions, recoverer: recoverer, stale: stale}
}

// SweepOnce 执行一轮，任一步失败不影响另一步
func (s *Sweeper) SweepOnce(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	var firstErr error
	if s.sessions != nil {
		n, err := s.sessions.SweepExpired(ctx)
		report.SessionsRemoved = n
		if err != nil {
			firstErr = err
		}
	}
	if s.recoverer == nil {
		return report, firstErr
	}
	if s.stale.Variants > 0 {
		n, err := s.recoverer.RecoverStale(ctx, s.stale.Variants)
		report.VariantsRecovered = n
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.stale.Publications > 0 {
		n, err := s.recoverer.RecoverStalePublications(ctx, s.stale.Publications)
		report.PublicationsRecovered = n
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return report, firstErr
}

type SessionSweeperPlugin struct{}

func (p *SessionSweeperPlugin) Name() string { return "sessionSweeper" }

func (p *SessionSweeperPlugin) MustCreateComponent(deps *manager.Dependencies) manager.Component {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.GetGlobalConfig()
	}
	if cfg == nil || cfg.Upload.SweepInterval <= 0 {
		return nil
	}
	sessions, _ := deps.UploadApp.(SessionSweeper)
	recoverer, _ := deps.PipelineApp.(StaleRecoverer)
	if sessions == nil && recoverer == nil {
		return nil
	}
	sweeper := NewSweeper(sessions, recoverer, StaleAfter{
		Variants:     cfg.Transcode.StaleAfter,
		Publications: cfg.Publish.StaleAfter,
	})
	return &sweeperComponent{
		periodic: task.NewPeriodic("sessionSweeper", cfg.Upload.SweepInterval, func(ctx context.Context) {
			report, err := sweeper.SweepOnce(ctx)
			if err != nil {
				logger.Warn("sweep round failed", map[string]interface{}{"error": err.Error()})
			}
			if report.SessionsRemoved > 0 || report.VariantsRecovered > 0 || report.PublicationsRecovered > 0 {
				logger.Info("sweep round finished", map[string]interface{}{
					"sessions_removed":       report.SessionsRemoved,
					"variants_recovered":     report.VariantsRecovered,
					"publications_recovered": report.PublicationsRecovered,
				})
			}
		}),
	}
}

type sweeperComponent struct {
	periodic *task.Periodic
}

func (c *sweeperComponent) Start() error {
	task.Register(c.periodic)
	return nil
}

func (c *sweeperComponent) Stop() error {
	return c.periodic.Stop()
}

func (c *sweeperComponent) GetName() string { return c.periodic.Name() }
