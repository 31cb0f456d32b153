package display

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"clinicops/internal/models"
	"clinicops/internal/store"
)

type statusServer struct {
	mu     sync.Mutex
	status models.PublicStatus
	events []store.OutboxEvent
}

func (s *statusServer) set(status models.PublicStatus, events []store.OutboxEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.events = events
}

func (s *statusServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/public/status", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(s.status)
	})
	mux.HandleFunc("/api/events", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(s.events)
	})
	return mux
}

func TestSubscriberReconcileFeedsAnnouncer(t *testing.T) {
	calledAt := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	srv := &statusServer{}
	srv.set(models.PublicStatus{
		CalledEntries: []models.PublicEntry{{
			EntryID:     "e1",
			EntryNumber: "TRI-010",
			Status:      models.StatusCalled,
			CalledAt:    &calledAt,
		}},
	}, nil)

	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	var announced []string
	announcer := NewAnnouncer(func(entry models.PublicEntry) {
		announced = append(announced, entry.EntryID)
	})

	sub := NewSubscriber(Options{
		BaseURL:  ts.URL,
		TenantID: "t1",
		BranchID: "b1",
		Client:   ts.Client(),
	}, announcer)

	// first reconcile seeds, second announces nothing new
	if err := sub.reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if err := sub.reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(announced) != 0 {
		t.Fatalf("pre-connect call must not announce, got %v", announced)
	}

	later := calledAt.Add(5 * time.Minute)
	srv.set(models.PublicStatus{
		CalledEntries: []models.PublicEntry{{
			EntryID:     "e2",
			EntryNumber: "TRI-011",
			Status:      models.StatusCalled,
			CalledAt:    &later,
		}},
	}, nil)

	if err := sub.reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(announced) != 1 || announced[0] != "e2" {
		t.Fatalf("expected fresh call announced, got %v", announced)
	}
}

func TestSubscriberCuePollAdvancesAfterAndReconciles(t *testing.T) {
	calledAt := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	srv := &statusServer{}
	srv.set(models.PublicStatus{}, nil)

	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	announcer := NewAnnouncer(func(models.PublicEntry) {})
	sub := NewSubscriber(Options{
		BaseURL:  ts.URL,
		TenantID: "t1",
		BranchID: "b1",
		Client:   ts.Client(),
	}, announcer)
	sub.after = calledAt.Add(-time.Hour)

	srv.set(models.PublicStatus{}, []store.OutboxEvent{{
		EventID:   "ev1",
		TenantID:  "t1",
		Type:      store.EventPatientCalled,
		Payload:   json.RawMessage(`{}`),
		CreatedAt: calledAt,
	}})

	if err := sub.pollCues(context.Background()); err != nil {
		t.Fatalf("poll cues: %v", err)
	}
	if !sub.after.Equal(calledAt) {
		t.Fatalf("expected after advanced to %v, got %v", calledAt, sub.after)
	}
}

func TestSubscriberSurvivesServerErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	announcer := NewAnnouncer(func(models.PublicEntry) {})
	sub := NewSubscriber(Options{
		BaseURL:  ts.URL,
		TenantID: "t1",
		BranchID: "b1",
		Client:   ts.Client(),
	}, announcer)

	if err := sub.reconcile(context.Background()); err == nil {
		t.Fatal("expected error from failing server")
	}
	if err := sub.pollCues(context.Background()); err == nil {
		t.Fatal("expected error from failing server")
	}
}
