package cmd

import (
	"fmt"
	"time"

	"github.com/signrelay/signrelay/internal/ailink"
	"github.com/signrelay/signrelay/internal/ailink/remote"
	"github.com/signrelay/signrelay/internal/config"
	"github.com/signrelay/signrelay/internal/httpclient"
	"github.com/signrelay/signrelay/internal/monitor"
	"github.com/signrelay/signrelay/internal/observability"
	"github.com/signrelay/signrelay/internal/orchestrator"
)

// generative is the responder side of the orchestrator: either the in-process
// connector or a remote genai service.
type generative struct {
	responder orchestrator.Responder
	service   monitor.Service
	connector *ailink.Connector
}

func (g *generative) Shutdown() {
	if g.connector != nil {
		g.connector.Shutdown()
	}
}

// TriggerCheck wakes the in-process connector's heartbeat.
func (g *generative) TriggerCheck() {
	if g.connector != nil {
		g.connector.TriggerImmediateCheck()
	}
}

func newConnector(cfg *config.Config) (*ailink.Connector, error) {
	drv, err := ailink.NewDriver(cfg.AILink)
	if err != nil {
		return nil, fmt.Errorf("build driver: %w", err)
	}
	return ailink.NewConnector(cfg.AILink, drv, ailink.WithLogger(observability.Logger()))
}

// newGenerative builds the responder selected by responder.mode. The remote
// client resolves its base URL through resolve on every call.
func newGenerative(cfg *config.Config, resolve func() string) (*generative, error) {
	if cfg.Responder.Mode == config.ResponderRemote {
		client := remote.New(resolve, httpclient.New(httpclient.Options{RetryMax: 0, Timeout: cfg.Responder.Timeout}), observability.Logger())
		return &generative{
			responder: client,
			service: monitor.Service{
				Name:       monitor.ServiceGenerative,
				Candidates: cfg.Responder.Candidates,
				Probe:      client,
			},
		}, nil
	}

	connector, err := newConnector(cfg)
	if err != nil {
		return nil, err
	}
	return &generative{
		responder: connector,
		connector: connector,
		service: monitor.Service{
			Name:       monitor.ServiceGenerative,
			Candidates: []string{"inproc://" + connector.Provider()},
			Probe:      monitor.ProbeFunc(connector.Probe),
		},
	}, nil
}

// dependencyServices describes the perception and UI probes.
func dependencyServices(cfg *config.Config) []monitor.Service {
	probeClient := httpclient.New(httpclient.Options{RetryMax: 0, Timeout: cfg.Monitor.ProbeTimeout})
	return []monitor.Service{
		{
			Name:       monitor.ServicePerception,
			Candidates: cfg.Perception.Candidates,
			Probe:      monitor.HTTPProbe{Path: cfg.Perception.LivenessPath, Accept: monitor.Accept2xx, Client: probeClient},
		},
		{
			Name:       monitor.ServiceUI,
			Candidates: cfg.UI.Candidates,
			Probe:      monitor.HTTPProbe{Path: "/", Accept: monitor.AcceptNon5xx, Client: probeClient},
			Fallback:   monitor.TCPProbe{},
		},
	}
}

func monitorConfig(cfg *config.Config) monitor.Config {
	return monitor.Config{ProbeTimeout: cfg.Monitor.ProbeTimeout, Interval: cfg.Monitor.Interval}
}

func clientTimeout(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
