package main

import (
	"time"

	"github.com/stillpoint/parley/internal/config"
	"github.com/stillpoint/parley/internal/engine"
	"github.com/stillpoint/parley/internal/infrastructure"
	"github.com/stillpoint/parley/internal/orders"
	"github.com/stillpoint/parley/pkg/mailer"
)

// Service bundles the infrastructure and the event engine behind one
// start/shutdown surface.
type Service struct {
	infra  *infrastructure.Infrastructure
	Engine *engine.Engine
	Domain *engine.Domain
}

// NewService assembles the full engine stack. The order lookup and mailer
// default to their unconfigured implementations; environments with real
// integrations swap them in here.
func NewService(cfg *config.Config) (*Service, error) {
	infra, err := infrastructure.New(cfg)
	if err != nil {
		return nil, err
	}

	runtime := engine.NewRuntime(cfg, infra)
	domain := engine.NewDomain(runtime, orders.Unconfigured(), mailer.Disabled(infra.Logger))

	infra.Logger.Info(
		"engine initialized",
		"version", cfg.Version,
		"env", cfg.Env(),
	)

	return &Service{
		infra:  infra,
		Engine: engine.New(runtime, domain),
		Domain: domain,
	}, nil
}

func (s *Service) Start() error {
	s.infra.Logger.Info("starting service")

	if err := s.infra.Start(); err != nil {
		return err
	}

	go func() {
		s.infra.Lifecycle.WaitForStartup()
		s.infra.Logger.Info("all subsystems ready")
	}()

	return nil
}

func (s *Service) Shutdown(timeout time.Duration) error {
	s.infra.Logger.Info("initiating shutdown")
	return s.infra.Lifecycle.Shutdown(timeout)
}
