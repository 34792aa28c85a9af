package store

import (
	"encoding/json"
	"time"

	"github.com/hearthlabs/hearth/internal/messages"
)

// UserProfileEntity is the persisted profile row. JSON-typed fields are
// stored as TEXT.
type UserProfileEntity struct {
	UserID        string    `gorm:"primaryKey;column:user_id"`
	DeviceID      string    `gorm:"column:device_id;not null;index"`
	Name          string    `gorm:"column:name"`
	PreferredName string    `gorm:"column:preferred_name"`
	Timezone      string    `gorm:"column:timezone;default:America/Los_Angeles"`
	LifeDetails   string    `gorm:"column:life_details;type:text;default:{}"`
	Preferences   string    `gorm:"column:preferences;type:text;default:{}"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (UserProfileEntity) TableName() string { return "user_profiles" }

func (e *UserProfileEntity) ToDomain() *messages.UserProfile {
	profile := &messages.UserProfile{
		UserID:        e.UserID,
		DeviceID:      e.DeviceID,
		Name:          e.Name,
		PreferredName: e.PreferredName,
		Timezone:      e.Timezone,
		LifeDetails:   map[string]any{},
		Preferences:   map[string]string{},
	}
	if e.LifeDetails != "" {
		_ = json.Unmarshal([]byte(e.LifeDetails), &profile.LifeDetails)
	}
	if e.Preferences != "" {
		_ = json.Unmarshal([]byte(e.Preferences), &profile.Preferences)
	}
	return profile
}

func (e *UserProfileEntity) FromDomain(p *messages.UserProfile) {
	e.UserID = p.UserID
	e.DeviceID = p.DeviceID
	e.Name = p.Name
	e.PreferredName = p.PreferredName
	e.Timezone = p.Timezone
	life, _ := json.Marshal(p.LifeDetails)
	prefs, _ := json.Marshal(p.Preferences)
	e.LifeDetails = string(life)
	e.Preferences = string(prefs)
}

// ConversationTurnEntity is one persisted turn of conversation, indexed by
// session for history reads.
type ConversationTurnEntity struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	SessionID string    `gorm:"column:session_id;not null;index:idx_turns_session"`
	UserID    string    `gorm:"column:user_id"`
	Role      string    `gorm:"column:role;not null"`
	Content   string    `gorm:"column:content;not null"`
	Intent    string    `gorm:"column:intent"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (ConversationTurnEntity) TableName() string { return "conversation_turns" }

// CarePlanEntity holds a user's care plan; list fields as JSON TEXT.
type CarePlanEntity struct {
	UserID      string    `gorm:"primaryKey;column:user_id"`
	Medications string    `gorm:"column:medications;type:text;default:[]"`
	Routines    string    `gorm:"column:routines;type:text;default:[]"`
	Contacts    string    `gorm:"column:contacts;type:text;default:[]"`
	Notes       string    `gorm:"column:notes"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

func (CarePlanEntity) TableName() string { return "care_plans" }

func (e *CarePlanEntity) ToDomain() *messages.CarePlan {
	plan := &messages.CarePlan{
		UserID:      e.UserID,
		Medications: []map[string]any{},
		Routines:    []map[string]any{},
		Contacts:    []map[string]any{},
		Notes:       e.Notes,
	}
	if e.Medications != "" {
		_ = json.Unmarshal([]byte(e.Medications), &plan.Medications)
	}
	if e.Routines != "" {
		_ = json.Unmarshal([]byte(e.Routines), &plan.Routines)
	}
	if e.Contacts != "" {
		_ = json.Unmarshal([]byte(e.Contacts), &plan.Contacts)
	}
	return plan
}

// DeviceSessionEntity tracks per-device connection activity.
type DeviceSessionEntity struct {
	DeviceID     string    `gorm:"primaryKey;column:device_id"`
	UserID       string    `gorm:"column:user_id"`
	LastActivity time.Time `gorm:"column:last_activity"`
	SessionCount int       `gorm:"column:session_count;default:0"`
}

func (DeviceSessionEntity) TableName() string { return "device_sessions" }

// LearnedFactEntity stores a remembered detail about the user.
type LearnedFactEntity struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	UserID     string    `gorm:"column:user_id;not null;index:idx_facts_user"`
	FactType   string    `gorm:"column:fact_type"`
	FactKey    string    `gorm:"column:fact_key"`
	FactValue  string    `gorm:"column:fact_value"`
	Confidence float64   `gorm:"column:confidence;default:1.0"`
	Source     string    `gorm:"column:source"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

func (LearnedFactEntity) TableName() string { return "learned_facts" }

// LearnedFact is the domain view of a stored fact.
type LearnedFact struct {
	Type       string  `json:"type"`
	Key        string  `json:"key"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}
