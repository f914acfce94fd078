package endpoints

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/golang/glog"
	"github.com/julienschmidt/httprouter"
	"github.com/monsterutils/adrefresh/nativeui"
)

// Loop runs functions on the goroutine that owns the slots.
type Loop interface {
	Do(ctx context.Context, fn func()) error
}

// Slot is the admin view of an ad slot. Its methods are only called through a Loop.
type Slot interface {
	Name() string
	Snapshot() nativeui.Snapshot
	Enable()
	Disable()
	ClickStore()
}

// Slots indexes the application's ad slots by name.
type Slots map[string]Slot

// NewSlots indexes slots by their names.
func NewSlots(slots ...Slot) Slots {
	indexed := make(Slots, len(slots))
	for _, s := range slots {
		indexed[s.Name()] = s
	}
	return indexed
}

func (s Slots) sortedNames() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SlotAction is applied to a slot by a POST /slots/:slot/... endpoint.
type SlotAction func(Slot)

func EnableSlot(s Slot)  { s.Enable() }
func DisableSlot(s Slot) { s.Disable() }
func ClickStore(s Slot)  { s.ClickStore() }

// NewSlotActionEndpoint applies action to the slot named by the :slot route parameter and
// responds with the slot's snapshot after the action ran.
func NewSlotActionEndpoint(loop Loop, slots Slots, name string, action SlotAction) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		slotName := ps.ByName("slot")
		slot, ok := slots[slotName]
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Sprintf("unknown slot %q", slotName))
			return
		}

		var snapshot nativeui.Snapshot
		err := loop.Do(r.Context(), func() {
			action(slot)
			snapshot = slot.Snapshot()
		})
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, fmt.Sprintf("%s %s: %v", name, slotName, err))
			return
		}

		glog.Infof("Admin %s applied to slot %s", name, slotName)
		writeJSON(w, http.StatusOK, snapshot)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		glog.Errorf("Failed to marshal admin response: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{Error: message})
}
