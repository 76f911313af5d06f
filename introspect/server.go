// Package introspect exposes a running simulation's component tree, store
// snapshots, and change feed over a local JSON/HTTP server. It is
// read-only by construction: nothing in this package can schedule an
// event or write to the Store.
package introspect

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/desimio/desim/sim"
)

// changeFeedWait bounds how long the change-feed long-poll endpoint
// blocks waiting for a new ChangeRecord before responding with an empty
// batch.
const changeFeedWait = 25 * time.Second

// Server serves a read-only view of a *sim.Simulation over HTTP, grounded
// on the teacher's monitoring.Monitor but narrowed to JSON-only responses
// (no embedded web UI - daisen's static asset bundle has no equivalent
// here). Pause/continue still round-trip to the Simulation itself, since
// that control surface needs no UI to be useful from a shell or script.
type Server struct {
	sim *sim.Simulation
}

// NewServer creates a Server backed by sim. sim should already have every
// component registered; Server reads the registry and Store on demand, it
// never caches a component list at construction time.
func NewServer(s *sim.Simulation) *Server {
	return &Server{sim: s}
}

// Router builds the gorilla/mux router for this server's endpoints, so
// callers that want to embed it behind their own middleware can do so.
func (srv *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", srv.pauseSim).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/api/continue", srv.continueSim).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/api/components", srv.listComponents).Methods(http.MethodGet)
	r.HandleFunc("/api/component/{name}", srv.componentDetail).Methods(http.MethodGet)
	r.HandleFunc("/api/field/{json}", srv.fieldValue).Methods(http.MethodGet)
	r.HandleFunc("/api/snapshot/{version}", srv.snapshotAt).Methods(http.MethodGet)
	r.HandleFunc("/api/changefeed", srv.changeFeed).Methods(http.MethodGet)
	r.HandleFunc("/api/resource", srv.resourceUsage).Methods(http.MethodGet)
	r.HandleFunc("/api/profile", srv.cpuProfile).Methods(http.MethodGet)

	return r
}

func (srv *Server) pauseSim(w http.ResponseWriter, _ *http.Request) {
	srv.sim.Pause()
	w.WriteHeader(http.StatusOK)
}

func (srv *Server) continueSim(w http.ResponseWriter, _ *http.Request) {
	srv.sim.Continue()
	w.WriteHeader(http.StatusOK)
}

// ListenAndServe binds addr (e.g. ":0" for a random free port), starts
// serving in the background, and returns the address actually bound.
func (srv *Server) ListenAndServe(addr string) (string, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("introspect: listen on %s: %w", addr, err)
	}

	router := srv.Router()

	go func() {
		if err := http.Serve(listener, router); err != nil {
			fmt.Fprintf(os.Stderr, "introspect: server exited: %v\n", err)
		}
	}()

	return listener.Addr().String(), nil
}

func (srv *Server) listComponents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, srv.sim.ListComponents())
}

type componentDetail struct {
	Info  sim.ComponentInfo   `json:"info"`
	State map[string]string   `json:"state"`
	Ver   uint64              `json:"version"`
}

func (srv *Server) componentDetail(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	id, ok := srv.sim.Lookup(name)
	if !ok {
		http.Error(w, "component not found", http.StatusNotFound)
		return
	}

	info, ok := srv.findInfo(id)
	if !ok {
		http.Error(w, "component not found", http.StatusNotFound)
		return
	}

	snap := srv.sim.Store().Snapshot()
	state := snap.ForComponent(id)

	detail := componentDetail{Info: info, State: describeValues(state), Ver: snap.Version()}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&detail)
	serializer.SetMaxDepth(2)

	if err := serializer.Serialize(w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (srv *Server) findInfo(id sim.ComponentID) (sim.ComponentInfo, bool) {
	for _, info := range srv.sim.ListComponents() {
		if info.ID == id {
			return info, true
		}
	}

	return sim.ComponentInfo{}, false
}

func describeValues(state map[string]sim.Value) map[string]string {
	out := make(map[string]string, len(state))
	for k, v := range state {
		out[k] = v.Describe()
	}

	return out
}

func (srv *Server) snapshotAt(w http.ResponseWriter, r *http.Request) {
	store := srv.sim.Store()

	versionParam := mux.Vars(r)["version"]
	if versionParam == "latest" {
		writeJSON(w, map[string]uint64{"version": store.Snapshot().Version()})
		return
	}

	version, err := strconv.ParseUint(versionParam, 10, 64)
	if err != nil {
		http.Error(w, "invalid version", http.StatusBadRequest)
		return
	}

	snap, ok := store.SnapshotAt(version)
	if !ok {
		http.Error(w, "version not retained", http.StatusGone)
		return
	}

	writeJSON(w, map[string]uint64{"version": snap.Version()})
}

// fieldReq mirrors the teacher's field-drill-down request shape: a
// component name plus a dot-separated field path, JSON-encoded into the
// {json} path segment so the whole request fits in a GET URL.
type fieldReq struct {
	CompName  string `json:"comp_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

// fieldValue looks up one key of one component's current state, e.g.
// {"comp_name":"switch0","field_name":"counter"}. Unlike the teacher's
// version, which walks live reflect.Values on the component struct
// itself, this reads the Store's snapshot for that component since state
// here lives in the Store, not on the component struct. Store values are
// flat, so only the first dot-separated segment of field_name is used, as
// the key; any further segments are ignored.
func (srv *Server) fieldValue(w http.ResponseWriter, r *http.Request) {
	jsonString := mux.Vars(r)["json"]

	req := fieldReq{}
	if err := json.Unmarshal([]byte(jsonString), &req); err != nil {
		http.Error(w, "invalid field request", http.StatusBadRequest)
		return
	}

	id, ok := srv.sim.Lookup(req.CompName)
	if !ok {
		http.Error(w, "component not found", http.StatusNotFound)
		return
	}

	state := srv.sim.Store().Snapshot().ForComponent(id)

	path := strings.Split(req.FieldName, ".")
	key := path[0]

	v, ok := state[key]
	if !ok {
		http.Error(w, "field not found", http.StatusNotFound)
		return
	}

	writeJSON(w, map[string]string{"key": key, "value": v.Describe()})
}

func (srv *Server) changeFeed(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		pattern = "*"
	}

	feed := srv.sim.Store().Subscribe(pattern)
	defer feed.Close()

	var records []sim.ChangeRecord

	timeout := time.After(changeFeedWait)

collect:
	for {
		select {
		case rec, ok := <-feed.C():
			if !ok {
				break collect
			}

			records = append(records, rec)

			if len(feed.C()) == 0 {
				break collect
			}
		case <-timeout:
			break collect
		}
	}

	writeJSON(w, records)
}

func (srv *Server) resourceUsage(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()

	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	mem, err := proc.MemoryInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, struct {
		CPUPercent float64 `json:"cpu_percent"`
		MemorySize uint64  `json:"memory_size"`
	}{CPUPercent: cpuPercent, MemorySize: mem.RSS})
}

func (srv *Server) cpuProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	time.Sleep(time.Second)
	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")

	enc := json.NewEncoder(w)
	if err := enc.Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

