package services

import (
	"log"
	"time"

	"actify-backend/models"

	"github.com/go-co-op/gocron/v2"
)

// StartCloseScheduler flips open missions to closed once their end date has
// passed. Listing queries filter on end date as well, so the sweep only keeps
// the stored status in line with what users can already see.
func (s *MissionService) StartCloseScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			now := time.Now()
			res := s.DB.Model(&models.Mission{}).
				Where("status = ? AND end_date IS NOT NULL AND end_date <= ?", models.MissionStatusOpen, now).
				Update("status", models.MissionStatusClosed)
			if res.Error != nil {
				log.Printf("[Scheduler] DB error closing missions: %v", res.Error)
				return
			}
			if res.RowsAffected > 0 {
				log.Printf("✅ Auto-closed %d ended mission(s)", res.RowsAffected)
			}
		}),
	)
}
