package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/example/taxi-admin/internal/assignment"
	"github.com/example/taxi-admin/internal/hires"
	"github.com/example/taxi-admin/internal/models"
	"github.com/example/taxi-admin/internal/pending"
	"github.com/example/taxi-admin/internal/recordstore"
)

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.Queue.Latest()
	if !ok {
		var err error
		snap, err = s.Queue.Refresh(r.Context())
		if err != nil {
			s.storeError(w, "load queue", err)
			return
		}
	}
	filter := pending.QueueFilter(r.URL.Query().Get("filter"))
	writeJSON(w, http.StatusOK, map[string]any{
		"hires":            snap.Filtered(filter),
		"requests_by_hire": snap.RequestsByHire,
		"refreshed_at":     snap.RefreshedAt,
	})
}

func (s *Server) handleQueueRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Queue.Refresh(r.Context())
	if err != nil {
		s.storeError(w, "refresh queue", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleListHires(w http.ResponseWriter, r *http.Request) {
	all, err := s.Hires.ListAll(r.Context())
	if err != nil {
		s.storeError(w, "list hires", err)
		return
	}
	filtered, err := applyDateFilter(all, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hires": filtered, "total": len(filtered)})
}

func applyDateFilter(all []models.Hire, r *http.Request) ([]models.Hire, error) {
	q := r.URL.Query()
	switch q.Get("period") {
	case "", "all":
		return all, nil
	case "day":
		day, err := time.Parse("2006-01-02", q.Get("date"))
		if err != nil {
			return nil, errors.New("date must be YYYY-MM-DD")
		}
		return hires.FilterByDay(all, day.Year(), int(day.Month()), day.Day()), nil
	case "month":
		month, err := time.Parse("2006-01", q.Get("month"))
		if err != nil {
			return nil, errors.New("month must be YYYY-MM")
		}
		return hires.FilterByMonth(all, month.Year(), int(month.Month())), nil
	case "range":
		start, err := time.Parse("2006-01-02", q.Get("start"))
		if err != nil {
			return nil, errors.New("start must be YYYY-MM-DD")
		}
		end, err := time.Parse("2006-01-02", q.Get("end"))
		if err != nil {
			return nil, errors.New("end must be YYYY-MM-DD")
		}
		return hires.FilterByRange(all, models.Timestamp{Time: start}, models.Timestamp{Time: end}), nil
	default:
		return nil, errors.New("period must be one of all, day, month, range")
	}
}

func (s *Server) handleCreateHire(w http.ResponseWriter, r *http.Request) {
	var form hires.NewHire
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	hire, err := s.Hires.Create(r.Context(), form)
	if err != nil {
		if errors.Is(err, hires.ErrInvalidForm) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		} else {
			s.storeError(w, "create hire", err)
		}
		return
	}
	writeJSON(w, http.StatusCreated, hire)
}

func (s *Server) handleCompleteHire(w http.ResponseWriter, r *http.Request) {
	if err := s.Hires.Complete(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.storeError(w, "complete hire", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCancelHire(w http.ResponseWriter, r *http.Request) {
	if err := s.Hires.Cancel(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.storeError(w, "cancel hire", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCandidates(w http.ResponseWriter, r *http.Request) {
	drivers, err := s.Coordinator.EligibleDrivers(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.storeError(w, "list candidates", err)
		return
	}
	if drivers == nil {
		drivers = []models.Driver{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"drivers": drivers})
}

type assignRequest struct {
	DriverID string `json:"driver_id"`
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	var body assignRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	hireID := mux.Vars(r)["id"]
	res, err := s.Coordinator.Assign(r.Context(), hireID, body.DriverID)
	switch {
	case errors.Is(err, assignment.ErrNoSelection):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, assignment.ErrAcceptanceNotRecorded):
		// The hire is assigned; only the request record is out of step.
		// Report success with a warning so the operator can retry the
		// acceptance write without repeating the assignment.
		s.refreshQueue(r)
		writeJSON(w, http.StatusOK, map[string]any{"result": res, "warning": err.Error()})
		return
	case err != nil:
		s.storeError(w, "assign driver", err)
		return
	}
	s.refreshQueue(r)
	s.WSReg.Broadcast(map[string]any{"type": "assignment", "result": res})
	writeJSON(w, http.StatusOK, map[string]any{"result": res})
}

func (s *Server) handleRetryAcceptance(w http.ResponseWriter, r *http.Request) {
	var body assignRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	res, err := s.Coordinator.RetryAcceptance(r.Context(), mux.Vars(r)["id"], body.DriverID)
	switch {
	case errors.Is(err, assignment.ErrNoSelection):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		s.storeError(w, "retry acceptance", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": res})
}

// refreshQueue keeps the dashboard view consistent after a write. A
// failed refresh is logged, not surfaced; the write itself succeeded.
func (s *Server) refreshQueue(r *http.Request) {
	if _, err := s.Queue.Refresh(r.Context()); err != nil {
		s.logger.Warn("queue refresh after assignment failed", "error", err)
	}
}

func (s *Server) handleListCommissions(w http.ResponseWriter, r *http.Request) {
	list, err := s.Commissions.List(r.Context())
	if err != nil {
		s.storeError(w, "list commissions", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"commissions": list})
}

func (s *Server) handleGenerateCommissions(w http.ResponseWriter, r *http.Request) {
	created, err := s.Commissions.GenerateMissing(r.Context())
	if err != nil {
		s.storeError(w, "generate commissions", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"created": created})
}

func (s *Server) handlePayCommission(w http.ResponseWriter, r *http.Request) {
	if err := s.Commissions.MarkPaid(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.storeError(w, "pay commission", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type collectCardRequest struct {
	StripeCustomerID string `json:"stripe_customer_id"`
}

// handleCollectCommissionCard charges a commission through the card
// provider. The paid flag is only flipped once the capture succeeds, so a
// declined card leaves the record collectable.
func (s *Server) handleCollectCommissionCard(w http.ResponseWriter, r *http.Request) {
	var body collectCardRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id := mux.Vars(r)["id"]
	commission, err := recordstore.Get[models.Commission](r.Context(), s.Store, recordstore.CollectionCommissions, id, "")
	if err != nil {
		s.storeError(w, "load commission", err)
		return
	}
	if err := s.Commissions.CollectByCard(r.Context(), commission, body.StripeCustomerID); err != nil {
		s.logger.Error("collect commission by card failed", "commission", id, "error", err)
		http.Error(w, "collect commission failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePayAnnualFee(w http.ResponseWriter, r *http.Request) {
	if err := s.Commissions.MarkAnnualFeePaid(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.storeError(w, "pay annual fee", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleVehicleTypes(w http.ResponseWriter, r *http.Request) {
	types, err := recordstore.FetchAll[models.VehicleType](r.Context(), s.Store, recordstore.CollectionVehicleTypes, recordstore.ListOptions{Sort: "name"})
	if err != nil {
		s.storeError(w, "list vehicle types", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"vehicle_types": types})
}

func (s *Server) handleVehicleModels(w http.ResponseWriter, r *http.Request) {
	vehicleModels, err := recordstore.FetchAll[models.VehicleModel](r.Context(), s.Store, recordstore.CollectionVehicleModels, recordstore.ListOptions{Sort: "name", Expand: "type_id"})
	if err != nil {
		s.storeError(w, "list vehicle models", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"vehicle_models": vehicleModels})
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}
	s.WSReg.Add(newID(), conn)
}

// storeError maps a failed record-store interaction to a 502; the store
// is an upstream dependency from this service's point of view.
func (s *Server) storeError(w http.ResponseWriter, op string, err error) {
	s.logger.Error(op+" failed", "error", err)
	http.Error(w, op+" failed: "+err.Error(), http.StatusBadGateway)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
