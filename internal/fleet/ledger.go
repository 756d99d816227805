// Package fleet owns the cluster and vehicle state machines: which
// vehicle serves which cluster, and how a route progresses from
// assignment to completion.
package fleet

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"fleetroute/internal/metrics"
	"fleetroute/internal/model"
)

// Rejection is an invalid operation request. It is a normal outcome,
// surfaced to the UI as a transient notification, never a crash.
type Rejection struct {
	Op     string
	Reason string
}

func (r *Rejection) Error() string { return r.Op + " rejected: " + r.Reason }

func reject(op, format string, args ...any) error {
	metrics.LedgerTransitions.WithLabelValues(op, "rejected").Inc()
	return &Rejection{Op: op, Reason: fmt.Sprintf(format, args...)}
}

// Event records a ledger transition for live feeds and history.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	ClusterID string         `json:"clusterId"`
	VehicleID string         `json:"vehicleId,omitempty"`
	TS        string         `json:"ts"`
	Data      map[string]any `json:"data,omitempty"`
}

const (
	EventAssigned      = "cluster.assigned"
	EventStarted       = "route.started"
	EventStopCompleted = "stop.completed"
	EventCompleted     = "route.completed"
	EventCancelled     = "route.cancelled"
)

// Ledger serializes all fleet transitions. It mutates the cluster and
// vehicle records handed to it and reports each accepted transition
// through notify; persisting the mutated records is the caller's job.
//
// The scorer never runs inside the ledger and the ledger never touches
// derived score fields: vehicle/status ownership lives here, distance
// ownership lives there.
type Ledger struct {
	mu     sync.Mutex
	notify func(Event)
}

// NewLedger builds a Ledger. notify may be nil.
func NewLedger(notify func(Event)) *Ledger {
	return &Ledger{notify: notify}
}

// Assign books vehicle v for cluster c. The vehicle must be stationed
// at the cluster's warehouse and must not be out on a route. A cluster
// that is already assigned may be re-assigned: its previous vehicle is
// released first.
func (l *Ledger) Assign(c *model.Cluster, v *model.Vehicle, prev *model.Vehicle) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch c.Status {
	case model.ClusterPlanned, model.ClusterAssigned:
	default:
		return reject("assign", "cluster %s is %s", c.Name, c.Status)
	}
	if c.WarehouseID != "" && v.WarehouseID != c.WarehouseID {
		return reject("assign", "vehicle %s is stationed at %s, not at the cluster's warehouse", v.Name, v.WarehouseID)
	}
	if v.Status == model.VehicleOnRoute {
		return reject("assign", "vehicle %s is on route", v.Name)
	}
	if v.Status == model.VehicleAssigned && v.AssignedRoute != c.Name {
		return reject("assign", "vehicle %s is already assigned to %s", v.Name, v.AssignedRoute)
	}

	// Release the previously booked vehicle on re-assignment.
	if prev != nil && prev.ID != v.ID && prev.AssignedRoute == c.Name {
		prev.Status = model.VehicleAvailable
		prev.AssignedRoute = ""
	}

	c.Status = model.ClusterAssigned
	c.AssignedVehicle = v.ID
	v.Status = model.VehicleAssigned
	v.AssignedRoute = c.Name

	l.accept(Event{Type: EventAssigned, ClusterID: c.ID, VehicleID: v.ID}, "assign")
	return nil
}

// Start moves an assigned cluster into execution; its vehicle goes on
// route. Starting an unassigned cluster is rejected and leaves all
// state unchanged.
func (l *Ledger) Start(c *model.Cluster, v *model.Vehicle) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if c.Status != model.ClusterAssigned {
		return reject("start", "cluster %s is %s, not assigned", c.Name, c.Status)
	}
	if v == nil || c.AssignedVehicle != v.ID {
		return reject("start", "cluster %s has no assigned vehicle", c.Name)
	}

	c.Status = model.ClusterInProgress
	v.Status = model.VehicleOnRoute

	l.accept(Event{Type: EventStarted, ClusterID: c.ID, VehicleID: v.ID}, "start")
	return nil
}

// MarkStopComplete marks the first pending stop of an in-progress
// cluster as completed. Completing the last stop finishes the route:
// the cluster completes and the vehicle returns to available with its
// route reference cleared.
func (l *Ledger) MarkStopComplete(c *model.Cluster, v *model.Vehicle) (model.StopCompleteResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if c.Status != model.ClusterInProgress {
		return model.StopCompleteResult{}, reject("complete_stop", "cluster %s is %s, not in_progress", c.Name, c.Status)
	}

	idx := -1
	for i := range c.Stops {
		if !c.Stops[i].Completed {
			idx = i
			break
		}
	}
	if idx == -1 {
		return model.StopCompleteResult{}, reject("complete_stop", "all stops of %s are already completed", c.Name)
	}

	c.Stops[idx].Completed = true
	res := model.StopCompleteResult{
		ClusterID: c.ID,
		StopIndex: idx,
		StopName:  c.Stops[idx].Name,
		Remaining: c.PendingStops(),
		TS:        time.Now().UTC().Format(time.RFC3339),
	}
	l.accept(Event{
		Type:      EventStopCompleted,
		ClusterID: c.ID,
		VehicleID: c.AssignedVehicle,
		Data:      map[string]any{"stopIndex": idx, "stopName": res.StopName, "remaining": res.Remaining},
	}, "complete_stop")

	if res.Remaining == 0 {
		l.complete(c, v)
		res.RouteCompleted = true
	}
	return res, nil
}

// Cancel resets an assigned or in-progress cluster back to planned and
// releases its vehicle. Stop completion marks are cleared so a re-run
// starts fresh.
func (l *Ledger) Cancel(c *model.Cluster, v *model.Vehicle) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch c.Status {
	case model.ClusterAssigned, model.ClusterInProgress:
	default:
		return reject("cancel", "cluster %s is %s", c.Name, c.Status)
	}

	if v != nil && c.AssignedVehicle == v.ID {
		v.Status = model.VehicleAvailable
		v.AssignedRoute = ""
	}
	vehicleID := c.AssignedVehicle
	c.Status = model.ClusterPlanned
	c.AssignedVehicle = ""
	for i := range c.Stops {
		c.Stops[i].Completed = false
	}

	l.accept(Event{Type: EventCancelled, ClusterID: c.ID, VehicleID: vehicleID}, "cancel")
	return nil
}

// complete finishes the route. Callers hold the mutex.
func (l *Ledger) complete(c *model.Cluster, v *model.Vehicle) {
	c.Status = model.ClusterCompleted
	if v != nil && c.AssignedVehicle == v.ID {
		v.Status = model.VehicleAvailable
		v.AssignedRoute = ""
	}
	l.accept(Event{Type: EventCompleted, ClusterID: c.ID, VehicleID: c.AssignedVehicle}, "complete")
}

func (l *Ledger) accept(e Event, op string) {
	metrics.LedgerTransitions.WithLabelValues(op, "ok").Inc()
	e.ID = uuid.New().String()
	if e.TS == "" {
		e.TS = time.Now().UTC().Format(time.RFC3339)
	}
	if l.notify != nil {
		l.notify(e)
	}
}
