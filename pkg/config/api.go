package config

import "time"

// APIConfig holds runtime configuration for the API service.
type APIConfig struct {
	Environment        string
	Addr               string
	LocalDBPath        string
	AtlasBaseURL       string
	AtlasAPIKey        string
	AtlasDataSource    string
	AtlasDatabase      string
	JWTSecret          string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	AllowedEmailDomain string
	OTPTTL             time.Duration
	OTPDigits          int
	MailWebhookURL     string
	PollInterval       time.Duration
	RateLimitRedisAddr string
	RateLimitRedisPass string
	RateLimitRedisDB   int
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() APIConfig {
	return APIConfig{
		Environment:        GetString("APP_ENV", "development"),
		Addr:               GetString("API_ADDR", ":4000"),
		LocalDBPath:        GetString("LOCAL_DB_PATH", "campuslink.db"),
		AtlasBaseURL:       GetString("ATLAS_DATA_API_URL", ""),
		AtlasAPIKey:        GetString("ATLAS_DATA_API_KEY", ""),
		AtlasDataSource:    GetString("ATLAS_DATA_SOURCE", "Cluster0"),
		AtlasDatabase:      GetString("ATLAS_DATABASE", "student_community"),
		JWTSecret:          GetString("JWT_SECRET", "supersecuresecret"),
		AccessTokenTTL:     time.Duration(GetInt("ACCESS_TOKEN_TTL_MIN", 15)) * time.Minute,
		RefreshTokenTTL:    time.Duration(GetInt("REFRESH_TOKEN_TTL_HOURS", 24)) * time.Hour,
		AllowedEmailDomain: GetString("ALLOWED_EMAIL_DOMAIN", "gmail.com"),
		OTPTTL:             time.Duration(GetInt("OTP_TTL_MIN", 10)) * time.Minute,
		OTPDigits:          GetInt("OTP_DIGITS", 6),
		MailWebhookURL:     GetString("MAIL_WEBHOOK_URL", ""),
		PollInterval:       GetSeconds("COMMUNITY_POLL_SECONDS", 5*time.Second),
		RateLimitRedisAddr: GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass: GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:   GetInt("RATE_LIMIT_REDIS_DB", 0),
	}
}

// AtlasConfigured reports whether the remote document store settings are
// complete. Partial configuration counts as not configured.
func (c APIConfig) AtlasConfigured() bool {
	return c.AtlasBaseURL != "" && c.AtlasAPIKey != ""
}
