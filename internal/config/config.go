// Package config provides configuration types and loading for hivemind.
package config

import "time"

// Config is the root configuration struct.
type Config struct {
	Global    GlobalConfig    `json:"global"`
	Platforms PlatformsConfig `json:"platforms"`
	Generator GeneratorConfig `json:"generator"`
}

// GlobalConfig groups process-wide settings.
type GlobalConfig struct {
	StateDir        string `json:"stateDir" envconfig:"STATE_DIR"`
	DatabasePath    string `json:"databasePath" envconfig:"DATABASE_PATH"`
	PersonalityDir  string `json:"personalityDir" envconfig:"PERSONALITY_DIR"`
	DryRun          bool   `json:"dryRun" envconfig:"DRY_RUN"`
	SupervisePeriod int    `json:"supervisePeriodSecs" envconfig:"SUPERVISE_PERIOD_SECS"`
	DrainTimeout    int    `json:"drainTimeoutSecs" envconfig:"DRAIN_TIMEOUT_SECS"`
}

// PlatformsConfig contains all platform configurations.
type PlatformsConfig struct {
	Reddit  RedditConfig  `json:"reddit"`
	Twitter TwitterConfig `json:"twitter"`
	Eliza   ElizaConfig   `json:"eliza"`
}

// RateLimits configures action pacing for one platform.
type RateLimits struct {
	ActionsPerHour         int `json:"actionsPerHour" envconfig:"ACTIONS_PER_HOUR"`
	MinDelayBetweenActions int `json:"minDelayBetweenActions" envconfig:"MIN_DELAY_BETWEEN_ACTIONS"`
}

// MinInterval returns the enforced floor between two actions of the same type.
func (r RateLimits) MinInterval() time.Duration {
	min := r.MinDelayBetweenActions
	if r.ActionsPerHour > 0 && 3600/r.ActionsPerHour > min {
		min = 3600 / r.ActionsPerHour
	}
	return time.Duration(min) * time.Second
}

// MaxInterval is twice the floor.
func (r RateLimits) MaxInterval() time.Duration {
	return 2 * r.MinInterval()
}

// PersonalitySettings configures reply behaviour for one platform.
type PersonalitySettings struct {
	AutoReply        bool    `json:"autoReply" envconfig:"AUTO_REPLY"`
	ReplyProbability float64 `json:"replyProbability" envconfig:"REPLY_PROBABILITY"`
	AddSignature     bool    `json:"addSignature" envconfig:"ADD_SIGNATURE"`
}

// PersonalityConfig selects the active personality and its settings.
type PersonalityConfig struct {
	Active   string              `json:"active" envconfig:"ACTIVE"`
	Settings PersonalitySettings `json:"settings"`
}

// RedditConfig configures the Reddit platform.
type RedditConfig struct {
	Enabled          bool              `json:"enabled" envconfig:"ENABLED"`
	RateLimits       RateLimits        `json:"rateLimits"`
	Personality      PersonalityConfig `json:"personality"`
	TargetSubreddits []string          `json:"targetSubreddits"`
	ScanLimit        int               `json:"scanLimit" envconfig:"SCAN_LIMIT"`
	CycleDelaySecs   int               `json:"cycleDelaySecs" envconfig:"CYCLE_DELAY_SECS"`
}

// TwitterConfig configures the browser-automated Twitter platform.
type TwitterConfig struct {
	Enabled        bool              `json:"enabled" envconfig:"ENABLED"`
	RateLimits     RateLimits        `json:"rateLimits"`
	Personality    PersonalityConfig `json:"personality"`
	Headless       bool              `json:"headless" envconfig:"HEADLESS"`
	CycleDelaySecs int               `json:"cycleDelaySecs" envconfig:"CYCLE_DELAY_SECS"`
	TweetContext   string            `json:"tweetContext" envconfig:"TWEET_CONTEXT"`
}

// ElizaConfig configures the toy chat responder platform.
type ElizaConfig struct {
	Enabled            bool              `json:"enabled" envconfig:"ENABLED"`
	RateLimits         RateLimits        `json:"rateLimits"`
	Personality        PersonalityConfig `json:"personality"`
	SessionTimeoutSecs int               `json:"sessionTimeoutSecs" envconfig:"SESSION_TIMEOUT_SECS"`
	CycleDelaySecs     int               `json:"cycleDelaySecs" envconfig:"CYCLE_DELAY_SECS"`
}

// GeneratorConfig configures the LLM content generator.
type GeneratorConfig struct {
	Model         string  `json:"model" envconfig:"MODEL"`
	MaxTokens     int     `json:"maxTokens" envconfig:"MAX_TOKENS"`
	Temperature   float64 `json:"temperature" envconfig:"TEMPERATURE"`
	RetryAttempts int     `json:"retryAttempts" envconfig:"RETRY_ATTEMPTS"`
	RetryDelaySec int     `json:"retryDelaySecs" envconfig:"RETRY_DELAY_SECS"`
}

// RedditCredentials holds Reddit API credentials, environment-only.
type RedditCredentials struct {
	ClientID     string `envconfig:"REDDIT_CLIENT_ID"`
	ClientSecret string `envconfig:"REDDIT_CLIENT_SECRET"`
	Username     string `envconfig:"REDDIT_USERNAME"`
	Password     string `envconfig:"REDDIT_PASSWORD"`
	UserAgent    string `envconfig:"REDDIT_USER_AGENT"`
}

// Missing returns the names of unset required fields.
func (c RedditCredentials) Missing() []string {
	var out []string
	if c.ClientID == "" {
		out = append(out, "REDDIT_CLIENT_ID")
	}
	if c.ClientSecret == "" {
		out = append(out, "REDDIT_CLIENT_SECRET")
	}
	if c.Username == "" {
		out = append(out, "REDDIT_USERNAME")
	}
	if c.Password == "" {
		out = append(out, "REDDIT_PASSWORD")
	}
	if c.UserAgent == "" {
		out = append(out, "REDDIT_USER_AGENT")
	}
	return out
}

// TwitterCredentials holds Twitter login credentials, environment-only.
type TwitterCredentials struct {
	Username string `envconfig:"TWITTER_USERNAME"`
	Password string `envconfig:"TWITTER_PASSWORD"`
	Email    string `envconfig:"TWITTER_EMAIL"`
}

// Missing returns the names of unset required fields.
func (c TwitterCredentials) Missing() []string {
	var out []string
	if c.Username == "" {
		out = append(out, "TWITTER_USERNAME")
	}
	if c.Password == "" {
		out = append(out, "TWITTER_PASSWORD")
	}
	if c.Email == "" {
		out = append(out, "TWITTER_EMAIL")
	}
	return out
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Global: GlobalConfig{
			SupervisePeriod: 60,
			DrainTimeout:    30,
		},
		Platforms: PlatformsConfig{
			Reddit: RedditConfig{
				RateLimits: RateLimits{
					ActionsPerHour:         6,
					MinDelayBetweenActions: 20,
				},
				Personality: PersonalityConfig{
					Settings: PersonalitySettings{
						AutoReply:        true,
						ReplyProbability: 0.7,
						AddSignature:     true,
					},
				},
				TargetSubreddits: []string{"FlavumHiveAI"},
				ScanLimit:        10,
				CycleDelaySecs:   30,
			},
			Twitter: TwitterConfig{
				RateLimits: RateLimits{
					ActionsPerHour:         2,
					MinDelayBetweenActions: 60,
				},
				Personality: PersonalityConfig{
					Settings: PersonalitySettings{
						AutoReply:        true,
						ReplyProbability: 0.7,
					},
				},
				Headless:       true,
				CycleDelaySecs: 300,
				TweetContext:   "Latest developments in AI, DeFi, and blockchain technology",
			},
			Eliza: ElizaConfig{
				RateLimits: RateLimits{
					ActionsPerHour:         60,
					MinDelayBetweenActions: 5,
				},
				Personality: PersonalityConfig{
					Settings: PersonalitySettings{
						AutoReply:        true,
						ReplyProbability: 0.7,
					},
				},
				SessionTimeoutSecs: 1800,
				CycleDelaySecs:     60,
			},
		},
		Generator: GeneratorConfig{
			Model:         "gemini-2.5-flash",
			MaxTokens:     500,
			Temperature:   0.7,
			RetryAttempts: 3,
			RetryDelaySec: 5,
		},
	}
}

// EnabledPlatforms returns the names of all enabled platforms.
func (c *Config) EnabledPlatforms() []string {
	var out []string
	if c.Platforms.Reddit.Enabled {
		out = append(out, "reddit")
	}
	if c.Platforms.Twitter.Enabled {
		out = append(out, "twitter")
	}
	if c.Platforms.Eliza.Enabled {
		out = append(out, "eliza")
	}
	return out
}
