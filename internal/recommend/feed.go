// Package recommend builds and maintains the recommendation feed: risk
// summaries synthesized from the latest scan, plus persisted advisories
// written by background jobs (unused apps, sensor alerts, permission deltas).
package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"privguard/internal/model"
	"privguard/internal/storage"
)

type Feed struct {
	store  storage.Store
	logger *slog.Logger
}

func NewFeed(store storage.Store, logger *slog.Logger) *Feed {
	return &Feed{store: store, logger: logger}
}

// Record appends a single advisory. A zero timestamp is filled with now.
func (f *Feed) Record(ctx context.Context, rec model.Recommendation) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	return f.store.InsertRecommendation(ctx, rec)
}

// RefreshByType replaces every persisted advisory of recType with recs.
// Delete-then-reinsert: rows are never updated in place, so a job run that
// produces nothing clears its type from the feed.
func (f *Feed) RefreshByType(ctx context.Context, recType string, recs []model.Recommendation) error {
	if err := f.store.DeleteRecommendationsByType(ctx, recType); err != nil {
		return err
	}
	for _, rec := range recs {
		rec.Type = recType
		if rec.Timestamp.IsZero() {
			rec.Timestamp = time.Now().UTC()
		}
		if err := f.store.InsertRecommendation(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// Dismiss removes one advisory by id.
func (f *Feed) Dismiss(ctx context.Context, id int64) error {
	return f.store.DeleteRecommendationByID(ctx, id)
}

// Forget removes every advisory attached to pkg, used when the package is
// uninstalled.
func (f *Feed) Forget(ctx context.Context, pkg string) error {
	return f.store.DeleteRecommendationsByPackage(ctx, pkg)
}

// Compose assembles the feed as shown to the device owner: risk summaries
// derived from the latest scan first, then the persisted advisories
// newest-first. Summaries are never written to the store; they exist only in
// the composed view and disappear on their own once a scan comes back clean.
func (f *Feed) Compose(ctx context.Context, latest *model.ScanResult) ([]model.Recommendation, error) {
	var out []model.Recommendation
	if high := latest.Count(model.HighRisk); high > 0 {
		out = append(out, model.Recommendation{
			Title:       "High risk apps detected",
			Description: fmt.Sprintf("Review %d apps holding high-risk permissions", high),
			Type:        model.RecHighRiskSummary,
			Timestamp:   latest.StartedAt,
		})
	}
	if medium := latest.Count(model.MediumRisk); medium > 0 {
		out = append(out, model.Recommendation{
			Title:       "Medium risk apps detected",
			Description: fmt.Sprintf("Check permissions for %d apps with medium-risk access", medium),
			Type:        model.RecMediumRiskSummary,
			Timestamp:   latest.StartedAt,
		})
	}
	stored, err := f.store.ListRecommendations(ctx)
	if err != nil {
		return nil, err
	}
	return append(out, stored...), nil
}

// RefreshSensorAlerts mirrors alert-flagged sensor log entries since the
// cutoff into the feed, one advisory per package and sensor, newest kept.
func (f *Feed) RefreshSensorAlerts(ctx context.Context, since time.Time) error {
	entries, err := f.store.ListSensorLogs(ctx, storage.SensorLogQuery{
		Since:      since,
		AlertsOnly: true,
	})
	if err != nil {
		return err
	}
	seen := make(map[string]bool)
	var recs []model.Recommendation
	for _, e := range entries {
		key := e.Package + "|" + string(e.Sensor)
		if seen[key] {
			continue
		}
		seen[key] = true
		recs = append(recs, model.Recommendation{
			Title:       "Background sensor access",
			Description: fmt.Sprintf("ALERT: %s accessed %s in the background", e.AppName, e.Sensor),
			Package:     e.Package,
			Timestamp:   e.Timestamp,
		})
	}
	return f.RefreshByType(ctx, model.RecSensorAlert, recs)
}
