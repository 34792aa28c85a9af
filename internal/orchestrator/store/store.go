package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/hearthlabs/hearth/internal/messages"
	"github.com/hearthlabs/hearth/pkg/Logger"
)

// Store is the orchestrator's single-file state store. It is accessed only
// from the orchestrator worker, so no cross-process locking is needed.
type Store struct {
	db     *gorm.DB
	logger *Logger.Logger
}

// New opens (or creates) the sqlite database and migrates the schema.
func New(databasePath string, logger *Logger.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(
		&UserProfileEntity{},
		&ConversationTurnEntity{},
		&CarePlanEntity{},
		&DeviceSessionEntity{},
		&LearnedFactEntity{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	logger.Infow("state_store_initialized", "database", databasePath)
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetUserProfile returns the profile for a device, creating a default one on
// first sight.
func (s *Store) GetUserProfile(deviceID string) (*messages.UserProfile, error) {
	var entity UserProfileEntity
	err := s.db.Where("device_id = ?", deviceID).First(&entity).Error
	if err == nil {
		return entity.ToDomain(), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	entity = UserProfileEntity{
		UserID:      "user_" + deviceID,
		DeviceID:    deviceID,
		Name:        "Friend",
		LifeDetails: "{}",
		Preferences: "{}",
	}
	if err := s.db.Create(&entity).Error; err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	s.logger.Infow("profile_created", "user_id", entity.UserID, "device_id", deviceID)
	return entity.ToDomain(), nil
}

// SaveUserProfile upserts a full profile record.
func (s *Store) SaveUserProfile(profile *messages.UserProfile) error {
	var entity UserProfileEntity
	entity.FromDomain(profile)
	if err := s.db.Save(&entity).Error; err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// History returns up to limit most recent turns for a session, oldest first,
// as role/content pairs ready for the LLM. System turns are never stored, so
// none appear.
func (s *Store) History(sessionID string, limit int) ([]messages.ChatMessage, error) {
	var entities []ConversationTurnEntity
	err := s.db.
		Where("session_id = ?", sessionID).
		Order("id DESC").
		Limit(limit).
		Find(&entities).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	history := make([]messages.ChatMessage, 0, len(entities))
	for i := len(entities) - 1; i >= 0; i-- {
		history = append(history, messages.ChatMessage{
			Role:    entities[i].Role,
			Content: entities[i].Content,
		})
	}
	return history, nil
}

// AddTurn appends one conversation turn.
func (s *Store) AddTurn(sessionID, userID, role, content string) error {
	turn := ConversationTurnEntity{
		SessionID: sessionID,
		UserID:    userID,
		Role:      role,
		Content:   content,
	}
	if err := s.db.Create(&turn).Error; err != nil {
		return fmt.Errorf("failed to add turn: %w", err)
	}
	return nil
}

// GetCarePlan returns the user's care plan, or an empty plan when none is
// stored.
func (s *Store) GetCarePlan(userID string) (*messages.CarePlan, error) {
	var entity CarePlanEntity
	err := s.db.Where("user_id = ?", userID).First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &messages.CarePlan{
			UserID:      userID,
			Medications: []map[string]any{},
			Routines:    []map[string]any{},
			Contacts:    []map[string]any{},
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load care plan: %w", err)
	}
	return entity.ToDomain(), nil
}

// UpdateDeviceActivity bumps a device's last-activity timestamp and
// increments its session count on every call, creating the row with a count
// of one on first sight.
func (s *Store) UpdateDeviceActivity(deviceID, userID string) error {
	now := time.Now().UTC()
	var entity DeviceSessionEntity
	err := s.db.Where("device_id = ?", deviceID).First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		entity = DeviceSessionEntity{
			DeviceID:     deviceID,
			UserID:       userID,
			LastActivity: now,
			SessionCount: 1,
		}
		return s.db.Create(&entity).Error
	}
	if err != nil {
		return fmt.Errorf("failed to load device session: %w", err)
	}

	updates := map[string]any{
		"last_activity": now,
		"session_count": entity.SessionCount + 1,
	}
	if userID != "" {
		updates["user_id"] = userID
	}
	return s.db.Model(&entity).Updates(updates).Error
}

// LastDeviceActivity returns the most recent activity time for a device.
func (s *Store) LastDeviceActivity(deviceID string) (time.Time, bool, error) {
	var entity DeviceSessionEntity
	err := s.db.Where("device_id = ?", deviceID).First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to load device session: %w", err)
	}
	return entity.LastActivity, true, nil
}

// ActiveDevices lists devices with activity in the last hour.
func (s *Store) ActiveDevices() ([]string, error) {
	var ids []string
	err := s.db.Model(&DeviceSessionEntity{}).
		Where("last_activity > ?", time.Now().UTC().Add(-time.Hour)).
		Pluck("device_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active devices: %w", err)
	}
	return ids, nil
}

// AddLearnedFact stores a remembered detail about the user.
func (s *Store) AddLearnedFact(userID, factType, key, value, source string) error {
	fact := LearnedFactEntity{
		UserID:     userID,
		FactType:   factType,
		FactKey:    key,
		FactValue:  value,
		Confidence: 1.0,
		Source:     source,
	}
	if err := s.db.Create(&fact).Error; err != nil {
		return fmt.Errorf("failed to add fact: %w", err)
	}
	s.logger.Debugw("fact_learned", "user_id", userID, "fact_type", factType, "fact_key", key)
	return nil
}

// LearnedFacts returns all stored facts for a user, newest first.
func (s *Store) LearnedFacts(userID string) ([]LearnedFact, error) {
	var entities []LearnedFactEntity
	err := s.db.
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&entities).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load facts: %w", err)
	}

	facts := make([]LearnedFact, 0, len(entities))
	for _, e := range entities {
		facts = append(facts, LearnedFact{
			Type:       e.FactType,
			Key:        e.FactKey,
			Value:      e.FactValue,
			Confidence: e.Confidence,
		})
	}
	return facts, nil
}
