package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/calvinmclean/dispenser/api"
	"github.com/calvinmclean/dispenser/config"
	"github.com/calvinmclean/dispenser/history"
	"github.com/calvinmclean/dispenser/link"
	"github.com/calvinmclean/dispenser/twchart"
)

// options are the command line choices that are not part of the config file
type options struct {
	mock        bool
	sessionName string
}

// session is a connected dispenser with everything that records or serves its readings
type session struct {
	device link.Device
	hub    *link.Hub

	store *history.Store
	chart *twchart.Recorder
	api   *api.API

	logger *zap.SugaredLogger
}

func connect(cfg *config.Config, opts options, logger *zap.SugaredLogger) (link.Device, error) {
	if opts.mock {
		sim, err := link.NewSimulator(&cfg.Mock, link.WithSimulatorLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("error creating simulator: %w", err)
		}
		if err := sim.Connect(); err != nil {
			return nil, fmt.Errorf("error starting simulator: %w", err)
		}
		logger.Infow("started simulated dispenser", "dispense_mode", cfg.Mock.DispenseMode)
		return sim, nil
	}

	s := link.New(cfg.Serial.Port, cfg.Serial.BaudRate, 32, link.WithLogger(logger))
	if err := s.Connect(); err != nil {
		return nil, fmt.Errorf("error connecting to %s: %w", cfg.Serial.Port, err)
	}
	logger.Infow("connected", "port", cfg.Serial.Port, "baud_rate", cfg.Serial.BaudRate)
	return s, nil
}

// start connects to the dispenser and starts the history, chart uploads and API that cfg enables. The
// returned session runs until ctx is cancelled or the device disconnects
func start(ctx context.Context, cfg *config.Config, opts options, logger *zap.SugaredLogger) (*session, error) {
	s := &session{logger: logger}

	var recorders link.Recorders

	if cfg.History.Path != "" {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, err
		}
		s.store = store

		hs, err := store.StartSession(ctx, opts.sessionName, time.Now())
		if err != nil {
			s.close()
			return nil, err
		}
		logger.Infow("recording history", "path", cfg.History.Path, "session_id", hs.ID)
		recorders = append(recorders, store)
	}

	if cfg.TWChart.Address != "" {
		probes, err := twchart.ParseProbes(cfg.TWChart.Probes)
		if err != nil {
			s.close()
			return nil, err
		}

		client := twchart.NewClient(cfg.TWChart.Address)
		id, err := client.CreateSession(ctx, opts.sessionName, probes)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("error creating chart session: %w", err)
		}
		logger.Infow("created chart session", "address", cfg.TWChart.Address, "session_id", id)

		s.chart = twchart.NewRecorder(client)
		recorders = append(recorders, s.chart)
	}

	d, err := connect(cfg, opts, logger)
	if err != nil {
		s.close()
		return nil, err
	}

	s.hub = link.NewHub(d.Readings(), link.WithRecorder(recorders), link.WithHubLogger(logger))
	s.device = link.Recorded(ctx, d, recorders, logger)
	go s.hub.Run(ctx)

	if cfg.API.Address != "" {
		apiOptions := []func(*api.API){api.WithLogger(logger)}
		if s.store != nil {
			apiOptions = append(apiOptions, api.WithHistory(s.store))
		}
		s.api = api.New(s.device, s.hub, apiOptions...)

		go func() {
			logger.Infow("starting API", "address", cfg.API.Address)
			if err := s.api.Listen(cfg.API.Address); err != nil {
				logger.Errorw("API stopped", "error", err)
			}
		}()
	}

	return s, nil
}

// close stops everything start created. The device is closed last so that the final commands are recorded
func (s *session) close() error {
	var errs []error

	if s.api != nil {
		errs = append(errs, s.api.Shutdown())
	}

	if s.chart != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, s.chart.Done(ctx))
		cancel()
	}

	if s.device != nil {
		errs = append(errs, s.device.Close())
	}

	if s.store != nil {
		errs = append(errs, s.store.Close())
	}

	err := errors.Join(errs...)
	if err != nil {
		s.logger.Errorw("error closing session", "error", err)
	}
	return err
}
