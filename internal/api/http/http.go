package http

type Config struct {
	Port        uint     `mapstructure:"port"`
	CorsOrigins []string `mapstructure:"cors_origins"`
	// MaxMessageBytes caps a telemetry message body.
	MaxMessageBytes int64 `mapstructure:"max_message_bytes"`
}
