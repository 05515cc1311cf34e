package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/sagip-cad/emergency-dispatch-api/databases"
	"github.com/sagip-cad/emergency-dispatch-api/dispatch"
	"github.com/sagip-cad/emergency-dispatch-api/models"
)

// staleAfter is how long an emergency may sit pending before the sweep
// flags it for the duty officer
const staleAfter = 30 * time.Minute

// Scheduler handles periodic background jobs for the dispatch service
type Scheduler struct {
	cron  *cron.Cron
	EDB   databases.EmergencyDatabase
	Cache *dispatch.IdentityCache
}

// New creates a new scheduler instance
func New(edb databases.EmergencyDatabase, cache *dispatch.IdentityCache) *Scheduler {
	return &Scheduler{
		cron:  cron.New(cron.WithLocation(time.UTC)),
		EDB:   edb,
		Cache: cache,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() {
	_, err := s.cron.AddFunc("@every 15m", s.sweepStalePending)
	if err != nil {
		zap.S().Errorw("failed to register stale-pending sweep", "error", err)
	}
	_, err = s.cron.AddFunc("@every 1h", s.sweepIdentityCache)
	if err != nil {
		zap.S().Errorw("failed to register identity cache sweep", "error", err)
	}
	s.cron.Start()
	zap.S().Info("dispatch scheduler started")
}

// Stop halts the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// sweepStalePending flags emergencies that have sat pending past the
// threshold, per department, so slow pickups are visible in the logs and
// dashboards without any delivery machinery
func (s *Scheduler) sweepStalePending() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := primitive.NewDateTimeFromTime(time.Now().Add(-staleAfter))
	stale, err := s.EDB.Find(ctx, bson.M{
		"status":    models.StatusPending,
		"createdAt": bson.M{"$lt": cutoff},
	})
	if err != nil {
		zap.S().Errorw("stale-pending sweep failed", "error", err)
		return
	}
	if len(stale) == 0 {
		return
	}

	perDepartment := map[string]int{}
	for _, emergency := range stale {
		perDepartment[emergency.Department]++
	}
	for department, count := range perDepartment {
		zap.S().Warnw("emergencies pending past threshold",
			"department", department,
			"count", count,
			"threshold", staleAfter.String(),
		)
	}
}

// sweepIdentityCache drops expired enrichment entries
func (s *Scheduler) sweepIdentityCache() {
	removed := s.Cache.Sweep()
	if removed > 0 {
		zap.S().Debugw("identity cache swept", "removed", removed)
	}
}
