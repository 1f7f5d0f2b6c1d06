package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Optional config file; environment variables win over it.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables use the MASTERY_ prefix, with underscores for
	// nesting: MASTERY_SERVER_PORT, MASTERY_DATABASE_URL, etc.
	v.SetEnvPrefix("MASTERY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("proficiency.required_streak", 7)
	v.SetDefault("proficiency.summative_required_streak", 10)
	v.SetDefault("proficiency.reset_factor", 0.75)
	v.SetDefault("proficiency.struggling_policy", "recent_window")

	v.SetDefault("review.min_interval_hours", 24)
	v.SetDefault("review.max_interval_days", 180)
	v.SetDefault("review.session_quota", 10)

	v.SetDefault("commitment.ttl_minutes", 120)

	v.SetDefault("task.worker_count", 4)
	v.SetDefault("task.queue_size", 100)
	v.SetDefault("task.stuck_task_age", 30)
}

// validate checks the loaded configuration against the struct's validation
// tags and translates failures into a readable error.
func validate(cfg *Config) error {
	vd := validator.New()
	if err := vd.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("config validation failed: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
