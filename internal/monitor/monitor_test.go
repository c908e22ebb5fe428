package monitor

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/signrelay/signrelay/internal/core"
)

func TestRefreshFallsBackToSecondCandidate(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	var healthy atomic.Bool
	healthy.Store(true)
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer good.Close()

	var published []core.StatusSnapshot
	m := New(Config{ProbeTimeout: 100 * time.Millisecond}, []Service{{
		Name:       ServicePerception,
		Candidates: []string{slow.URL, good.URL},
		Probe:      HTTPProbe{Path: "/liveness"},
	}}, func(s core.StatusSnapshot) { published = append(published, s) })

	snapshot := m.Refresh(context.Background())
	require.True(t, snapshot[ServicePerception])

	ep, ok := m.Endpoint(ServicePerception)
	require.True(t, ok)
	require.Equal(t, good.URL, ep.Selected)
	require.True(t, ep.Reachable)
	require.Equal(t, good.URL, m.Resolve(ServicePerception))

	healthy.Store(false)
	require.NotPanics(t, func() {
		snapshot = m.Refresh(context.Background())
	})
	require.False(t, snapshot[ServicePerception])

	ep, _ = m.Endpoint(ServicePerception)
	require.Empty(t, ep.Selected)
	require.False(t, ep.Reachable)
	require.Equal(t, good.URL, ep.LastGood)
	require.NotEmpty(t, ep.LastError)
	require.Equal(t, good.URL, m.Resolve(ServicePerception), "resolve keeps the last good candidate")

	require.Len(t, published, 2)
	require.False(t, published[1][ServicePerception])
}

func TestRefreshUsesFallbackProbe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	m := New(Config{ProbeTimeout: time.Second}, []Service{{
		Name:       ServiceUI,
		Candidates: []string{"http://" + ln.Addr().String()},
		Probe: ProbeFunc(func(context.Context, string) error {
			return errors.New("inconclusive")
		}),
		Fallback: TCPProbe{},
	}}, nil)

	require.True(t, m.Refresh(context.Background())[ServiceUI])
}

func TestRefreshRecoversFromProbePanic(t *testing.T) {
	m := New(Config{}, []Service{{
		Name:       ServiceGenerative,
		Candidates: []string{"http://a", "http://b"},
		Probe: ProbeFunc(func(_ context.Context, base string) error {
			if base == "http://a" {
				panic("boom")
			}
			return nil
		}),
	}}, nil)

	snapshot := m.Refresh(context.Background())
	require.True(t, snapshot[ServiceGenerative])
	require.Equal(t, "http://b", m.Resolve(ServiceGenerative))
}

func TestServicesAreProbedConcurrently(t *testing.T) {
	var mu sync.Mutex
	inFlight, peak := 0, 0
	probe := ProbeFunc(func(ctx context.Context, _ string) error {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()
		time.Sleep(50 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		return nil
	})

	m := New(Config{}, []Service{
		{Name: "a", Candidates: []string{"http://a"}, Probe: probe},
		{Name: "b", Candidates: []string{"http://b"}, Probe: probe},
	}, nil)
	m.Refresh(context.Background())
	require.Equal(t, 2, peak)
}

func TestResolveBeforeFirstRefresh(t *testing.T) {
	m := New(Config{}, []Service{{Name: ServiceUI, Candidates: []string{"http://ui:8080", "http://localhost:8080"}}}, nil)
	require.Equal(t, "http://ui:8080", m.Resolve(ServiceUI))
	require.Empty(t, m.Resolve("unknown"))
}

func TestMissingProbeMarksUnreachable(t *testing.T) {
	m := New(Config{}, []Service{{Name: "x", Candidates: []string{"http://x"}}}, nil)
	require.False(t, m.Refresh(context.Background())["x"])
}

func TestTriggerRefreshWakesLoop(t *testing.T) {
	var calls atomic.Int32
	m := New(Config{Interval: time.Hour}, []Service{{
		Name:       "x",
		Candidates: []string{"http://x"},
		Probe: ProbeFunc(func(context.Context, string) error {
			calls.Add(1)
			return nil
		}),
	}}, nil)

	m.Start(context.Background())
	require.Equal(t, int32(1), calls.Load())

	m.TriggerRefresh()
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)

	m.Shutdown()
	m.Shutdown()
}

func TestCheckerReportsDegraded(t *testing.T) {
	m := New(Config{}, []Service{{
		Name:       ServicePerception,
		Candidates: []string{"http://p"},
		Probe:      ProbeFunc(func(context.Context, string) error { return errors.New("refused") }),
	}}, nil)
	m.Refresh(context.Background())

	err := Checker{Monitor: m, Service: ServicePerception}.CheckHealth(context.Background())
	var unreachable *UnreachableError
	require.ErrorAs(t, err, &unreachable)
	require.True(t, unreachable.Degraded())
	require.Contains(t, err.Error(), "refused")
}

func TestAcceptPredicates(t *testing.T) {
	require.True(t, AcceptNon5xx(404))
	require.False(t, AcceptNon5xx(502))
	require.True(t, Accept2xx(204))
	require.False(t, Accept2xx(301))
}

func TestHostPortDefaults(t *testing.T) {
	addr, err := hostPort("https://ui.local")
	require.NoError(t, err)
	require.Equal(t, "ui.local:443", addr)

	addr, err = hostPort("http://127.0.0.1:5001/path")
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:5001", addr)

	_, err = hostPort("not a url")
	require.Error(t, err)
}
