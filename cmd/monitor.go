package cmd

import (
	"expvar"
	"fmt"
	"math"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/CraigKelly/rotcurve/analysis"
	"github.com/CraigKelly/rotcurve/sampler"
)

type monitor struct {
	info    *expvar.Map
	stopped chan struct{}
	server  *http.Server
	start   time.Time

	Walkers        *expvar.Int
	BurnIn         *expvar.Int
	MCMCSteps      *expvar.Int
	Phase          *expvar.String
	Iterations     *expvar.Int
	RunTime        *expvar.Float
	MeanAcceptance *expvar.Float
	LastMeanLnProb *expvar.Float
	LnProbDrift    *expvar.Float
}

func newMonitor(walkers, burnIn, steps int) *monitor {
	m := &monitor{
		start:          time.Now(),
		Walkers:        new(expvar.Int),
		BurnIn:         new(expvar.Int),
		MCMCSteps:      new(expvar.Int),
		Phase:          new(expvar.String),
		Iterations:     new(expvar.Int),
		RunTime:        new(expvar.Float),
		MeanAcceptance: new(expvar.Float),
		LastMeanLnProb: new(expvar.Float),
		LnProbDrift:    new(expvar.Float),
	}

	m.Walkers.Set(int64(walkers))
	m.BurnIn.Set(int64(burnIn))
	m.MCMCSteps.Set(int64(steps))
	return m
}

// Update records one sampler step
func (m *monitor) Update(phase analysis.Phase, s sampler.Step) {
	m.Phase.Set(string(phase))
	m.Iterations.Add(1)
	m.RunTime.Set(time.Since(m.start).Seconds())
	m.MeanAcceptance.Set(s.MeanAcceptance)

	// expvar writes floats with strconv, which is not JSON for Inf/NaN
	if !math.IsInf(s.MeanLnProb, 0) && !math.IsNaN(s.MeanLnProb) {
		m.LastMeanLnProb.Set(s.MeanLnProb)
	}
	if s.DriftReady && !math.IsInf(s.Drift, 0) && !math.IsNaN(s.Drift) {
		m.LnProbDrift.Set(s.Drift)
	}
}

// Start publishes the progress variables and serves them over HTTP at addr
func (m *monitor) Start(addr string) error {
	if m.info != nil {
		return errors.Errorf("BUG: You may only start the process monitor once")
	}

	// A bad address fails here rather than in the server goroutine
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "Could not listen on %s for the monitor", addr)
	}

	m.info = expvar.NewMap("rotcurve-progress")
	m.info.Set("Walkers", m.Walkers)
	m.info.Set("Burn-In", m.BurnIn)
	m.info.Set("MCMC-Steps", m.MCMCSteps)
	m.info.Set("Phase", m.Phase)
	m.info.Set("Iterations", m.Iterations)
	m.info.Set("Run-Time", m.RunTime)
	m.info.Set("Mean-Acceptance", m.MeanAcceptance)
	m.info.Set("Last-Mean-LnProb", m.LastMeanLnProb)
	m.info.Set("LnProb-Drift", m.LnProbDrift)

	// Help the user and redirect to the only thing currently available:
	// the handler from the expvar package
	mux := http.NewServeMux()
	mux.Handle("/debug/vars", expvar.Handler())
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/debug/vars", http.StatusTemporaryRedirect)
	})

	m.stopped = make(chan struct{})
	m.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Actual server that will close the stopped channel on exit
	fmt.Fprintf(os.Stderr, "HTTP now available at %v (see debug/vars/)\n", listener.Addr())
	go func() {
		defer close(m.stopped)
		if err := m.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "HTTP monitor failed: %v\n", err)
		}
	}()

	return nil
}

func (m *monitor) Stop() {
	if m.info == nil || m.server == nil {
		return
	}

	m.server.Close()

	select {
	case <-m.stopped:
		fmt.Fprintf(os.Stderr, "HTTP Info Stopped\n")
	case <-time.After(2 * time.Second):
		fmt.Fprintf(os.Stderr, "HTTP would NOT stop: just continuing on\n")
	}
}
