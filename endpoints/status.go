package endpoints

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/monsterutils/adrefresh/adprovider"
	"github.com/monsterutils/adrefresh/nativeui"
	"github.com/monsterutils/adrefresh/readiness"
)

// InitStatusSource reports the latest provider initialization status.
type InitStatusSource interface {
	Status() adprovider.InitializationStatus
}

type statusResponse struct {
	Ready    bool                `json:"ready"`
	Adapters []adapterStatus     `json:"adapters"`
	Slots    []nativeui.Snapshot `json:"slots"`
}

type adapterStatus struct {
	Name        string `json:"name"`
	State       string `json:"state"`
	Description string `json:"description,omitempty"`
	LatencyMS   int64  `json:"latency_ms"`
}

// NewStatusEndpoint reports provider readiness, the adapter initialization states and a
// snapshot of every slot, in slot name order.
func NewStatusEndpoint(loop Loop, slots Slots, signal *readiness.Signal, initStatus InitStatusSource) httprouter.Handle {
	names := slots.sortedNames()
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		response := statusResponse{
			Ready:    signal.Ready(),
			Adapters: adapterStatuses(initStatus),
			Slots:    make([]nativeui.Snapshot, 0, len(names)),
		}

		err := loop.Do(r.Context(), func() {
			for _, name := range names {
				response.Slots = append(response.Slots, slots[name].Snapshot())
			}
		})
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "status: "+err.Error())
			return
		}
		writeJSON(w, http.StatusOK, response)
	}
}

func adapterStatuses(initStatus InitStatusSource) []adapterStatus {
	statuses := []adapterStatus{}
	if initStatus == nil {
		return statuses
	}
	status := initStatus.Status()
	for _, name := range status.AdapterNames() {
		adapter := status[name]
		statuses = append(statuses, adapterStatus{
			Name:        name,
			State:       adapter.State.String(),
			Description: adapter.Description,
			LatencyMS:   adapter.Latency.Milliseconds(),
		})
	}
	return statuses
}

// NewReadyEndpoint responds 200 once the provider is ready and 503 before.
func NewReadyEndpoint(signal *readiness.Signal) httprouter.Handle {
	return func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		ready := signal.Ready()
		status := http.StatusServiceUnavailable
		if ready {
			status = http.StatusOK
		}
		writeJSON(w, status, struct {
			Ready bool `json:"ready"`
		}{Ready: ready})
	}
}
