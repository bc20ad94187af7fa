package state

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/xenn00/conference-system/internal/entity"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&entity.Conference{},
		&entity.Participant{},
		&entity.ConferenceSummary{},
		&entity.ConferenceMessage{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	log.Info().Msg("database schema migrated")
	return nil
}
