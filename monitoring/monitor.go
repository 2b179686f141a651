// Package monitoring turns a running simulation into a small HTTP server so
// that the system state can be inspected from outside.
package monitoring

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"

	"github.com/sarchlab/pimdram/dram"
)

// Monitor exposes a DRAM system over HTTP.
type Monitor struct {
	system     *dram.System
	portNumber int
	noBrowser  bool
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port the monitoring server listens on. Port 0
// picks a random free port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is not allowed for the monitoring "+
				"server. Using a random port instead.\n",
			portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithoutBrowser stops the monitor from opening the dashboard in a browser.
func (m *Monitor) WithoutBrowser() *Monitor {
	m.noBrowser = true
	return m
}

// RegisterSystem registers the system to be monitored.
func (m *Monitor) RegisterSystem(s *dram.System) {
	m.system = s
}

// StartServer starts the monitoring server in the background.
func (m *Monitor) StartServer() {
	r := mux.NewRouter()
	r.HandleFunc("/api/cycle", m.serveCycle)
	r.HandleFunc("/api/cuts", m.serveCuts)
	r.HandleFunc("/api/process", m.serveProcess)

	listener, err := net.Listen("tcp",
		fmt.Sprintf(":%d", m.portNumber))
	if err != nil {
		panic(err)
	}

	url := fmt.Sprintf("http://localhost:%d/api/cycle",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring simulation at %s\n", url)

	if !m.noBrowser {
		go browser.OpenURL(url)
	}

	go func() {
		err := http.Serve(listener, r)
		if err != nil {
			panic(err)
		}
	}()
}

func (m *Monitor) serveCycle(w http.ResponseWriter, _ *http.Request) {
	m.serveJSON(w, map[string]any{
		"name":  m.system.Name(),
		"cycle": m.system.Cycle(),
	})
}

func (m *Monitor) serveCuts(w http.ResponseWriter, _ *http.Request) {
	m.serveJSON(w, m.system.CutStatus())
}

func (m *Monitor) serveProcess(w http.ResponseWriter, _ *http.Request) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	memInfo, err := p.MemoryInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	m.serveJSON(w, memInfo)
}

func (m *Monitor) serveJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
