package mercury

import (
	"fmt"

	"github.com/hipsterbrown/mercury-servo/config"
	"github.com/hipsterbrown/mercury-servo/transports"
	"github.com/sirupsen/logrus"
)

// Open opens the serial port described by cfg and returns a Handler for the
// configured protocol. cfg is expected to be validated and normalized.
// Closing the handler's Port closes the serial port.
func Open(cfg config.Bus, logger logrus.FieldLogger) (*Handler, error) {
	proto := Protocol(cfg.Protocol)
	if !proto.Valid() {
		return nil, fmt.Errorf("unsupported protocol version: %d", cfg.Protocol)
	}

	t, err := transports.Open(transports.SerialConfig{
		Driver:   cfg.Driver,
		Port:     cfg.Port,
		BaudRate: cfg.BaudRate,
		Timeout:  cfg.PollInterval(),
	})
	if err != nil {
		return nil, err
	}
	return newBus(t, cfg, proto, logger)
}

func newBus(t Transport, cfg config.Bus, proto Protocol, logger logrus.FieldLogger) (*Handler, error) {
	port, err := NewPort(t, PortConfig{
		Name:         cfg.Port,
		BaudRate:     cfg.BaudRate,
		LatencyTimer: cfg.LatencyTimer(),
		PollInterval: cfg.PollInterval(),
		Logger:       logger,
	})
	if err != nil {
		t.Close()
		return nil, err
	}

	h, err := NewHandler(port, proto)
	if err != nil {
		port.Close()
		return nil, err
	}
	h.log.WithField("baud", port.BaudRate()).Info("bus opened")
	return h, nil
}
