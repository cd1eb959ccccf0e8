package factory

import (
	"github.com/mikey/mail-ledger/internal/adapters/api"
	"github.com/mikey/mail-ledger/internal/adapters/intake"
	"github.com/mikey/mail-ledger/internal/config"
	"github.com/mikey/mail-ledger/internal/core"
	"github.com/mikey/mail-ledger/internal/ports"
	"github.com/mikey/mail-ledger/internal/scheduler"
	"github.com/mikey/mail-ledger/internal/whitelist"
	"go.uber.org/zap"
)

// RunnerFactory creates the long-running surfaces of the daemon
type RunnerFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	service *core.IngestionService
	repo    core.TransactionRepository
}

// NewRunnerFactory creates a new runner factory
func NewRunnerFactory(cfg *config.Config, logger *zap.Logger, service *core.IngestionService, repo core.TransactionRepository) *RunnerFactory {
	return &RunnerFactory{
		cfg:     cfg,
		logger:  logger,
		service: service,
		repo:    repo,
	}
}

// CreateRunners returns every enabled runner: API, SMTP intake, scheduler
func (f *RunnerFactory) CreateRunners() []ports.Runner {
	var runners []ports.Runner

	if apiCfg := f.cfg.GetAPI(); apiCfg.Enabled {
		runners = append(runners, api.NewServer(f.repo, f.service, f.logger.Named("api"), api.Options{
			ListenAddr:     apiCfg.ListenAddress,
			RefreshTimeout: apiCfg.RefreshTimeout,
		}))
	}

	if intakeCfg := f.cfg.GetIntake(); intakeCfg.Enabled {
		logger := f.logger.Named("intake")
		runners = append(runners, intake.NewSMTPIntake(
			f.service,
			whitelist.NewChecker(intakeCfg.AllowedSenders, logger),
			logger,
			intake.Options{
				ListenAddr:     intakeCfg.ListenAddress,
				Domain:         intakeCfg.Domain,
				Username:       intakeCfg.Username,
				Password:       intakeCfg.Password,
				MaxMessageSize: intakeCfg.MaxMessageSize,
			},
		))
	}

	if schedCfg := f.cfg.GetScheduler(); schedCfg.Enabled {
		runners = append(runners, scheduler.New(f.service, f.logger.Named("scheduler"), scheduler.Options{
			Interval:   schedCfg.Interval,
			RunOnStart: schedCfg.RunOnStart,
		}))
	}

	if len(runners) == 0 {
		f.logger.Warn("No runners enabled; enable api, intake or scheduler")
	}
	return runners
}
