package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"      validate:"required"`
	Database    DatabaseConfig    `mapstructure:"database"    validate:"required"`
	Proficiency ProficiencyConfig `mapstructure:"proficiency" validate:"required"`
	Review      ReviewConfig      `mapstructure:"review"      validate:"required"`
	Commitment  CommitmentConfig  `mapstructure:"commitment"  validate:"required"`
	Task        TaskConfig        `mapstructure:"task"        validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// ProficiencyConfig tunes the mastery progress model. The zero values are
// replaced with defaults before validation, so only overrides need to be set.
type ProficiencyConfig struct {
	// RequiredStreak is the clean-answer streak that earns proficiency on a
	// regular exercise.
	RequiredStreak int `mapstructure:"required_streak" validate:"required,gt=0,lte=100"`

	// SummativeRequiredStreak is the streak required on summative exercises.
	SummativeRequiredStreak int `mapstructure:"summative_required_streak" validate:"required,gt=0,lte=100"`

	// ResetFactor scales progress down after an unclean completion.
	ResetFactor float64 `mapstructure:"reset_factor" validate:"required,gt=0,lt=1"`

	// StrugglingPolicy selects how struggling learners are detected.
	StrugglingPolicy string `mapstructure:"struggling_policy" validate:"required,oneof=recent_window attempt_count"`
}

// ReviewConfig tunes the spaced review scheduler.
type ReviewConfig struct {
	// MinIntervalHours is the shortest review interval, in hours.
	MinIntervalHours int `mapstructure:"min_interval_hours" validate:"required,gt=0"`

	// MaxIntervalDays caps how far out a review can be scheduled.
	MaxIntervalDays int `mapstructure:"max_interval_days" validate:"required,gt=0"`

	// SessionQuota bounds how many reviews a single session surfaces.
	SessionQuota int `mapstructure:"session_quota" validate:"required,gt=0,lte=100"`
}

// CommitmentConfig contains settings for signed problem commitments.
type CommitmentConfig struct {
	// Secret signs problem commitment tokens. Must be long enough to resist
	// brute force against HS256.
	Secret string `mapstructure:"secret" validate:"required,min=32"`

	// TTLMinutes is how long an issued commitment stays valid.
	TTLMinutes int `mapstructure:"ttl_minutes" validate:"required,gt=0"`
}

// TaskConfig contains settings for the background task runner.
type TaskConfig struct {
	WorkerCount  int `mapstructure:"worker_count"   validate:"required,gt=0,lte=64"`
	QueueSize    int `mapstructure:"queue_size"     validate:"required,gt=0"`
	StuckTaskAge int `mapstructure:"stuck_task_age" validate:"required,gt=0"` // minutes
}
