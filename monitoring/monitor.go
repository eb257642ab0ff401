// Package monitoring serves the state of a running simulation over HTTP.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"reflect"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/sarchlab/memsym/memsym"
	"github.com/sarchlab/memsym/monitoring/web"
	"github.com/sarchlab/memsym/sim/id"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
)

// Monitor turns a simulation into a server that reports its state. The
// driver of the simulation publishes snapshots; the server only reads them.
type Monitor struct {
	portNumber  int
	idGenerator id.IDGenerator

	snapshotLock sync.RWMutex
	snapshot     memsym.Snapshot

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		idGenerator: id.NewUniqueIDGenerator(),
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// Publish replaces the state served by the monitor.
func (m *Monitor) Publish(snapshot memsym.Snapshot) {
	m.snapshotLock.Lock()
	defer m.snapshotLock.Unlock()

	m.snapshot = snapshot
}

// Snapshot returns the state last published.
func (m *Monitor) Snapshot() memsym.Snapshot {
	m.snapshotLock.RLock()
	defer m.snapshotLock.RUnlock()

	return m.snapshot
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        m.idGenerator.Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Router returns the handler of all the routes of the monitor.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/state", m.serializeState)
	r.HandleFunc("/api/stats", m.listStats)
	r.HandleFunc("/api/tlb", m.listTLB)
	r.HandleFunc("/api/pagetable/{pid}", m.listPageTable)
	r.HandleFunc("/api/registers/{pid}", m.listRegisters)
	r.HandleFunc("/api/field/{path}", m.listFieldValue)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server and returns the port it
// listens on.
func (m *Monitor) StartServer() (int, error) {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return 0, err
	}

	port := listener.Addr().(*net.TCPAddr).Port

	fmt.Fprintf(os.Stderr,
		"Monitoring simulation with http://localhost:%d\n", port)

	go func() {
		err := http.Serve(listener, m.Router())
		dieOnErr(err)
	}()

	return port, nil
}

func (m *Monitor) serializeState(w http.ResponseWriter, _ *http.Request) {
	snapshot := m.Snapshot()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&snapshot)
	serializer.SetMaxDepth(1)

	err := serializer.Serialize(w)
	dieOnErr(err)
}

func (m *Monitor) listStats(w http.ResponseWriter, _ *http.Request) {
	snapshot := m.Snapshot()

	writeJSON(w, struct {
		State      string       `json:"state"`
		Halted     string       `json:"halted,omitempty"`
		Policy     string       `json:"policy"`
		Clock      uint64       `json:"clock"`
		CurrentPID uint32       `json:"current_pid"`
		Stats      memsym.Stats `json:"stats"`
	}{
		State:      snapshot.State,
		Halted:     snapshot.Halted,
		Policy:     snapshot.Policy,
		Clock:      snapshot.Clock,
		CurrentPID: uint32(snapshot.CurrentPID),
		Stats:      snapshot.Stats,
	})
}

func (m *Monitor) listTLB(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, m.Snapshot().TLB)
}

func (m *Monitor) pidOr404(
	w http.ResponseWriter,
	r *http.Request,
	snapshot memsym.Snapshot,
) (int, bool) {
	pid, err := strconv.Atoi(mux.Vars(r)["pid"])
	if err != nil || pid < 0 || pid >= len(snapshot.Contexts) {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("Process not found"))
		dieOnErr(err)

		return 0, false
	}

	return pid, true
}

func (m *Monitor) listPageTable(w http.ResponseWriter, r *http.Request) {
	snapshot := m.Snapshot()

	pid, ok := m.pidOr404(w, r, snapshot)
	if !ok {
		return
	}

	writeJSON(w, snapshot.Pages[pid])
}

func (m *Monitor) listRegisters(w http.ResponseWriter, r *http.Request) {
	snapshot := m.Snapshot()

	pid, ok := m.pidOr404(w, r, snapshot)
	if !ok {
		return
	}

	writeJSON(w, snapshot.Contexts[pid])
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	snapshot := m.Snapshot()

	elem, err := walkFields(&snapshot, mux.Vars(r)["path"])
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	writeJSON(w, elem.Interface())
}

type fieldFormatError struct {
	field string
}

func (e fieldFormatError) Error() string {
	return "cannot walk into " + e.field
}

// walkFields follows a dot-separated path of field names and slice indices.
func walkFields(root any, fields string) (reflect.Value, error) {
	elem := reflect.ValueOf(root)

	fieldNames := strings.Split(fields, ".")

	for len(fieldNames) > 0 {
		switch elem.Kind() {
		case reflect.Ptr, reflect.Interface:
			elem = elem.Elem()
		case reflect.Struct:
			elem = elem.FieldByName(fieldNames[0])
			if !elem.IsValid() || !elem.CanInterface() {
				return elem, fieldFormatError{fieldNames[0]}
			}

			fieldNames = fieldNames[1:]
		case reflect.Slice:
			index, err := strconv.Atoi(fieldNames[0])
			if err != nil || index < 0 || index >= elem.Len() {
				return elem, fieldFormatError{fieldNames[0]}
			}

			elem = elem.Index(index)
			fieldNames = fieldNames[1:]
		default:
			return elem, fieldFormatError{fieldNames[0]}
		}
	}

	if elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
	}

	return elem, nil
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	writeJSON(w, m.progressBars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	dieOnErr(err)

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
