package config

// ConfigOverlay carries optional CLI-flag overrides, highest priority in the
// merge order (file < defaults < overlay). Pointer fields distinguish
// "flag not passed" from "flag passed its zero value", the same shape the
// teacher used for environment-variable overrides, applied here to cobra
// flags instead.
type ConfigOverlay struct {
	Role            *string
	ExternalRPCURL  *string
	ClusterRPCURL   *string
	InternalRPCURL  *string
	DataDir         *string
	LogLevel        *string
	SessionDuration *int
	Threshold       *int
}

// ApplyTo merges non-nil overlay fields into cfg in place.
func (o ConfigOverlay) ApplyTo(cfg *Config) {
	if o.Role != nil {
		cfg.Role = Role(*o.Role)
	}
	if o.ExternalRPCURL != nil {
		cfg.ExternalRPCURL = *o.ExternalRPCURL
	}
	if o.ClusterRPCURL != nil {
		cfg.ClusterRPCURL = *o.ClusterRPCURL
	}
	if o.InternalRPCURL != nil {
		cfg.InternalRPCURL = *o.InternalRPCURL
	}
	if o.DataDir != nil {
		cfg.DataDir = *o.DataDir
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
	if o.SessionDuration != nil {
		cfg.SessionDurationMs = *o.SessionDuration
	}
	if o.Threshold != nil {
		cfg.Threshold = *o.Threshold
	}
}
