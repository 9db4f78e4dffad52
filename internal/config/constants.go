package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// Database ping timeout at startup
const DBPingTimeout = 5 * time.Second

// Per-kind room occupancy caps pushed during room configuration. Lobby and
// waiting rooms are effectively unbounded.
const (
	One2OneMaxOccupants = 3
	GroupMaxOccupants   = 30
	OpenMaxOccupants    = 0
)

// Worst-case drift allowed between the cleanup timer firing and the sweep
// running; intervals larger than this are split into shorter re-arms.
const MaxCleanupArm = time.Minute

// How long the rejoin drain waits for the presence roster to go quiet.
const RejoinQuietWindow = time.Second

// Health server timeouts
const (
	HealthReadTimeout     = 5 * time.Second
	HealthShutdownTimeout = 5 * time.Second
)
