package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	SRS      SRSConfig      `mapstructure:"srs"      validate:"required"`
	Session  SessionConfig  `mapstructure:"session"  validate:"required"`
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

// AuthConfig contains authentication settings for the JWT middleware.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret"             validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
}

// SRSConfig contains the scheduling and aggregation policy constants.
// These are policy knobs, not derived facts: in particular
// MasteryThreshold (the repetition count at which a unit counts as
// learned) and ComprehensionMaxAgeHours (the staleness window of the
// cached comprehension aggregate).
type SRSConfig struct {
	MasteryThreshold         int `mapstructure:"mastery_threshold"           validate:"required,gte=1"`
	ComprehensionMaxAgeHours int `mapstructure:"comprehension_max_age_hours" validate:"required,gt=0"`
	PracticeLimit            int `mapstructure:"practice_limit"              validate:"required,gt=0"`
}

// SessionConfig bounds the in-process conversation session cache.
type SessionConfig struct {
	TTLMinutes           int `mapstructure:"ttl_minutes"            validate:"required,gt=0"`
	MaxEntries           int `mapstructure:"max_entries"            validate:"required,gt=0"`
	SweepIntervalMinutes int `mapstructure:"sweep_interval_minutes" validate:"required,gt=0"`
}
