package dispatch

import (
	"context"
	"time"

	"crimewatch/backend/internal/blob"
	"crimewatch/backend/internal/metrics"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// RecordingIndex lists the recording URLs still referenced by alerts.
type RecordingIndex interface {
	RecordingURLs(ctx context.Context) (map[string]bool, error)
}

// Reconciler deletes recordings that no alert references once they are older than Grace.
// Grace keeps it away from uploads whose alert insert is still running.
type Reconciler struct {
	Blobs   blob.Store
	Index   RecordingIndex
	Grace   time.Duration
	Log     *logrus.Entry
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// Run performs one sweep and returns the deleted keys.
func (r *Reconciler) Run(ctx context.Context) ([]string, error) {
	objects, err := r.Blobs.List(ctx, "")
	if err != nil {
		return nil, errors.Wrap(err, "list recordings")
	}
	referenced, err := r.Index.RecordingURLs(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load referenced recordings")
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	cutoff := now().Add(-r.Grace)

	var deleted []string
	for _, obj := range objects {
		if obj.LastModified.After(cutoff) || referenced[r.Blobs.URL(obj.Key)] {
			continue
		}
		if err := r.Blobs.Delete(ctx, obj.Key); err != nil {
			r.Log.WithError(err).WithField("key", obj.Key).Warn("failed to delete orphaned recording")
			continue
		}
		deleted = append(deleted, obj.Key)
	}

	r.Metrics.OrphansDeleted(len(deleted))
	if len(deleted) > 0 {
		r.Log.WithField("count", len(deleted)).Info("orphaned recordings removed")
	}
	return deleted, nil
}

// Schedule registers the sweep on c using a cron spec such as "@every 30m".
func (r *Reconciler) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := r.Run(ctx); err != nil {
			r.Log.WithError(err).Error("orphan recording sweep failed")
		}
	})
}
