package rules

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hearthlabs/hearth/pkg/Logger"
)

// TimeRange is an inclusive local-time window in "HH:MM" form.
type TimeRange struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// Trigger shape depends on the rule type; unused fields stay zero.
type Trigger struct {
	TimeRange              *TimeRange `yaml:"time_range,omitempty"`
	SilenceDurationMinutes int        `yaml:"silence_duration_minutes,omitempty"`
	Event                  string     `yaml:"event,omitempty"`
}

// Rule is one proactive interaction rule. Lower priority numbers rank
// higher.
type Rule struct {
	Name      string  `yaml:"name"`
	Type      string  `yaml:"type"`
	Trigger   Trigger `yaml:"trigger"`
	Frequency string  `yaml:"frequency,omitempty"`
	Prompt    string  `yaml:"prompt"`
	Priority  int     `yaml:"priority"`
}

const (
	TypeTimeBased  = "time_based"
	TypeBehavioral = "behavioral"
	TypeCarePlan   = "care_plan"
)

// ActivitySource answers how recently a device was heard from. Implemented
// by the orchestrator's state store.
type ActivitySource interface {
	LastDeviceActivity(deviceID string) (time.Time, bool, error)
}

type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// Engine evaluates proactive rules against the current time and device
// activity.
type Engine struct {
	configPath string
	rules      []Rule
	logger     *Logger.Logger
}

func NewEngine(configPath string, logger *Logger.Logger) *Engine {
	return &Engine{configPath: configPath, logger: logger}
}

// Load reads the YAML config, falling back to built-in defaults when the
// file is missing.
func (e *Engine) Load() error {
	data, err := os.ReadFile(e.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			e.logger.Warnw("rules_config_not_found", "path", e.configPath)
			e.rules = defaultRules()
			e.logger.Infow("using_default_rules", "count", len(e.rules))
			return nil
		}
		return fmt.Errorf("failed to read rules config: %w", err)
	}

	var cfg rulesFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse rules config: %w", err)
	}
	e.rules = cfg.Rules
	e.logger.Infow("rules_loaded", "count", len(e.rules))
	return nil
}

// Rules returns the loaded rule set.
func (e *Engine) Rules() []Rule {
	return e.rules
}

// Evaluate returns the rules that should fire for a device right now, sorted
// by ascending priority (lower number first).
func (e *Engine) Evaluate(deviceID string, now time.Time, activity ActivitySource) []Rule {
	var triggered []Rule
	for _, rule := range e.rules {
		fire, err := e.shouldTrigger(rule, deviceID, now, activity)
		if err != nil {
			e.logger.Errorw("rule_evaluation_error", "rule_name", rule.Name, "error", err)
			continue
		}
		if fire {
			e.logger.Debugw("rule_triggered", "device_id", deviceID, "rule_name", rule.Name)
			triggered = append(triggered, rule)
		}
	}

	sort.SliceStable(triggered, func(i, j int) bool {
		return triggered[i].Priority < triggered[j].Priority
	})
	return triggered
}

func (e *Engine) shouldTrigger(rule Rule, deviceID string, now time.Time, activity ActivitySource) (bool, error) {
	switch rule.Type {
	case TypeTimeBased:
		return checkTimeTrigger(rule.Trigger, now)
	case TypeBehavioral:
		return checkBehavioralTrigger(rule.Trigger, deviceID, now, activity)
	case TypeCarePlan:
		// Care plan scheduling hook; evaluation not implemented.
		return false, nil
	}
	return false, nil
}

func checkTimeTrigger(trigger Trigger, now time.Time) (bool, error) {
	if trigger.TimeRange == nil {
		return false, nil
	}
	start, err := parseClock(trigger.TimeRange.Start, "00:00")
	if err != nil {
		return false, err
	}
	end, err := parseClock(trigger.TimeRange.End, "23:59")
	if err != nil {
		return false, err
	}

	current := now.Hour()*60 + now.Minute()
	return start <= current && current <= end, nil
}

func parseClock(s, fallback string) (int, error) {
	if s == "" {
		s = fallback
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func checkBehavioralTrigger(trigger Trigger, deviceID string, now time.Time, activity ActivitySource) (bool, error) {
	if trigger.SilenceDurationMinutes <= 0 || activity == nil {
		return false, nil
	}
	last, known, err := activity.LastDeviceActivity(deviceID)
	if err != nil {
		return false, err
	}
	if !known {
		return false, nil
	}
	return now.Sub(last) > time.Duration(trigger.SilenceDurationMinutes)*time.Minute, nil
}

// defaultRules is the built-in rule set used when no config file exists.
func defaultRules() []Rule {
	return []Rule{
		{
			Name:      "morning_greeting",
			Type:      TypeTimeBased,
			Trigger:   Trigger{TimeRange: &TimeRange{Start: "07:00", End: "09:00"}},
			Frequency: "daily",
			Prompt:    "Good morning! How are you feeling today?",
			Priority:  1,
		},
		{
			Name:      "afternoon_checkin",
			Type:      TypeTimeBased,
			Trigger:   Trigger{TimeRange: &TimeRange{Start: "14:00", End: "15:00"}},
			Frequency: "daily",
			Prompt:    "How is your afternoon going? Have you had lunch?",
			Priority:  2,
		},
		{
			Name:      "evening_winddown",
			Type:      TypeTimeBased,
			Trigger:   Trigger{TimeRange: &TimeRange{Start: "19:00", End: "20:00"}},
			Frequency: "daily",
			Prompt:    "The evening is here. How was your day?",
			Priority:  2,
		},
		{
			Name:     "extended_silence",
			Type:     TypeBehavioral,
			Trigger:  Trigger{SilenceDurationMinutes: 120},
			Prompt:   "I haven't heard from you in a while. Is everything okay?",
			Priority: 3,
		},
		{
			Name:     "medication_reminder",
			Type:     TypeCarePlan,
			Trigger:  Trigger{Event: "medication_due"},
			Prompt:   "It's time for your medication. Would you like me to remind you what to take?",
			Priority: 1,
		},
	}
}
