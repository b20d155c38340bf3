package httpserver

import "time"

// Config carries the HTTP façade settings.
type Config struct {
	ListenAddr      string
	AllowedOrigins  []string
	JWTSigningKey   string
	JWTIssuer       string
	ShutdownTimeout time.Duration
}

// Normalize fills unset optional fields.
func (cfg *Config) Normalize() {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"http://localhost:3000"}
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
}
