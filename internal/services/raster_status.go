package services

import (
	"context"
	"sync"
	"time"

	"github.com/stwalsh4118/fieldwatch/internal/datasource"
	"github.com/stwalsh4118/fieldwatch/internal/models"
)

// rasterRefreshTimeout bounds one background refresh. The processing
// server downloads and publishes imagery, which can take minutes.
const rasterRefreshTimeout = 10 * time.Minute

// RasterState is the lifecycle of a background raster refresh.
type RasterState string

const (
	RasterIdle       RasterState = "idle"
	RasterRefreshing RasterState = "refreshing"
	RasterDone       RasterState = "done"
	RasterFailed     RasterState = "failed"
)

// LayerError reports one layer that failed to refresh.
type LayerError struct {
	Layer models.RasterLayer `json:"layer"`
	Error string             `json:"error"`
}

// RasterStatus is the transient refresh indicator of a parcel. Layer
// failures are only visible here.
type RasterStatus struct {
	ParcelID   string       `json:"parcel_id"`
	State      RasterState  `json:"state"`
	StartedAt  *time.Time   `json:"started_at,omitempty"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
	Errors     []LayerError `json:"errors"`
}

type rasterTracker struct {
	mu       sync.Mutex
	statuses map[string]RasterStatus
}

func newRasterTracker() *rasterTracker {
	return &rasterTracker{statuses: make(map[string]RasterStatus)}
}

func (t *rasterTracker) get(parcelID string) RasterStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	if st, ok := t.statuses[parcelID]; ok {
		return st
	}
	return RasterStatus{ParcelID: parcelID, State: RasterIdle, Errors: []LayerError{}}
}

// begin marks the parcel as refreshing unless a refresh is already running.
func (t *rasterTracker) begin(parcelID string, now time.Time) (RasterStatus, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if st, ok := t.statuses[parcelID]; ok && st.State == RasterRefreshing {
		return st, false
	}

	st := RasterStatus{
		ParcelID:  parcelID,
		State:     RasterRefreshing,
		StartedAt: &now,
		Errors:    []LayerError{},
	}
	t.statuses[parcelID] = st
	return st, true
}

func (t *rasterTracker) finish(parcelID string, now time.Time, results []datasource.RefreshResult, err error) RasterStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.statuses[parcelID]
	st.ParcelID = parcelID
	st.FinishedAt = &now
	st.Errors = []LayerError{}

	for _, r := range results {
		if r.Err != nil {
			st.Errors = append(st.Errors, LayerError{Layer: r.Layer, Error: r.Err.Error()})
		}
	}

	switch {
	case err != nil:
		st.Errors = append(st.Errors, LayerError{Error: err.Error()})
		st.State = RasterFailed
	case len(results) > 0 && len(st.Errors) == len(results):
		st.State = RasterFailed
	default:
		st.State = RasterDone
	}

	t.statuses[parcelID] = st
	return st
}

func (s *dashboardService) RasterStatus(parcelID string) RasterStatus {
	return s.rasters.get(s.parcelID(parcelID))
}

func (s *dashboardService) RefreshRasters(parcelID string) (RasterStatus, bool, error) {
	parcelID = s.parcelID(parcelID)

	refresher, ok := s.ds.(datasource.RasterRefresher)
	if !ok {
		return s.rasters.get(parcelID), false, ErrUnsupported
	}

	status, started := s.rasters.begin(parcelID, s.now())
	if !started {
		s.log.Debug("Raster refresh already running", map[string]interface{}{"parcel_id": parcelID})
		return status, false, nil
	}

	s.wg.Add(1)
	go s.refresh(refresher, parcelID)

	return status, true, nil
}

// refresh runs detached from any request so that a closed connection does
// not abort the upstream processing.
func (s *dashboardService) refresh(refresher datasource.RasterRefresher, parcelID string) {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), rasterRefreshTimeout)
	defer cancel()

	s.log.Info("Raster refresh started", map[string]interface{}{"parcel_id": parcelID})

	results, err := refresher.RefreshAllRasterLayers(ctx, parcelID)
	st := s.rasters.finish(parcelID, s.now(), results, err)

	fields := map[string]interface{}{
		"parcel_id": parcelID,
		"state":     st.State,
		"failed":    len(st.Errors),
	}
	if st.State == RasterFailed {
		s.log.Warn("Raster refresh failed", fields)
		return
	}
	s.log.Info("Raster refresh finished", fields)
}
