package display

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"clinicops/internal/models"
	"clinicops/internal/store"
)

// Subscriber keeps a lobby board in sync with the queue service over plain
// HTTP. Two timers run independently: a fast cue poll over the event feed and
// a slower full reconciliation against public status. Either one alone is
// enough to converge; the cue poll only sharpens latency.
type Subscriber struct {
	client    *http.Client
	baseURL   string
	tenantID  string
	branchID  string
	announcer *Announcer

	cueInterval       time.Duration
	reconcileInterval time.Duration
	after             time.Time
}

type Options struct {
	BaseURL           string
	TenantID          string
	BranchID          string
	CueInterval       time.Duration
	ReconcileInterval time.Duration
	Client            *http.Client
}

func NewSubscriber(opts Options, announcer *Announcer) *Subscriber {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	cue := opts.CueInterval
	if cue <= 0 {
		cue = 2 * time.Second
	}
	reconcile := opts.ReconcileInterval
	if reconcile <= 0 {
		reconcile = 15 * time.Second
	}
	return &Subscriber{
		client:            client,
		baseURL:           opts.BaseURL,
		tenantID:          opts.TenantID,
		branchID:          opts.BranchID,
		announcer:         announcer,
		cueInterval:       cue,
		reconcileInterval: reconcile,
		after:             time.Now().UTC(),
	}
}

// Run blocks until the context is cancelled.
func (s *Subscriber) Run(ctx context.Context) {
	if err := s.reconcile(ctx); err != nil {
		log.Printf("display initial sync error: %v", err)
	}

	cueTicker := time.NewTicker(s.cueInterval)
	defer cueTicker.Stop()
	reconcileTicker := time.NewTicker(s.reconcileInterval)
	defer reconcileTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-cueTicker.C:
			if err := s.pollCues(ctx); err != nil {
				log.Printf("display cue poll error: %v", err)
			}
		case <-reconcileTicker.C:
			if err := s.reconcile(ctx); err != nil {
				log.Printf("display reconcile error: %v", err)
			}
		}
	}
}

// pollCues reads the event feed and treats any PATIENT_CALLED or QUEUE_UPDATE
// as a cue to re-fetch state. Event payloads are never trusted as state.
func (s *Subscriber) pollCues(ctx context.Context) error {
	query := url.Values{}
	query.Set("after", s.after.Format(time.RFC3339Nano))
	query.Set("limit", strconv.Itoa(200))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/events?"+query.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Tenant-ID", s.tenantID)
	req.Header.Set("X-Branch-ID", s.branchID)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("event feed returned %d", resp.StatusCode)
	}

	var events []store.OutboxEvent
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}
	for _, event := range events {
		if event.CreatedAt.After(s.after) {
			s.after = event.CreatedAt
		}
	}
	return s.reconcile(ctx)
}

// reconcile fetches public status and feeds the called set to the announcer.
func (s *Subscriber) reconcile(ctx context.Context) error {
	query := url.Values{}
	query.Set("tenant_id", s.tenantID)
	query.Set("branch_id", s.branchID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/public/status?"+query.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("public status returned %d", resp.StatusCode)
	}

	var status models.PublicStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return err
	}
	s.announcer.Observe(status.CalledEntries)
	return nil
}
