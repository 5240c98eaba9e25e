// Package config defines service configuration structures and loading hooks.
package config

// Store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendNeo4j  = "neo4j"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StoreBackend selects the graph store: memory, sqlite or neo4j.
	StoreBackend string `koanf:"store_backend"`

	// SQLitePath is the database file of the sqlite backend.
	SQLitePath string `koanf:"sqlite_path"`

	Neo4jURI      string `koanf:"neo4j_uri"`
	Neo4jUser     string `koanf:"neo4j_user"`
	Neo4jPassword string `koanf:"neo4j_password"`
	Neo4jDatabase string `koanf:"neo4j_database"`

	// BestRaces is the number of best results counted for the season.
	BestRaces int `koanf:"best_races"`

	// ExtraRaceBonus is added per race beyond BestRaces.
	ExtraRaceBonus int `koanf:"extra_race_bonus"`

	// ParticipationPoints is the flat score of a participation race.
	ParticipationPoints int `koanf:"participation_points"`

	// MaxStandingsLimit caps GET /standings?limit.
	MaxStandingsLimit int `koanf:"max_standings_limit"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		StoreBackend:        BackendSQLite,
		SQLitePath:          "raceseries.db",
		Neo4jURI:            "neo4j://localhost:7687",
		Neo4jUser:           "neo4j",
		Neo4jDatabase:       "neo4j",
		BestRaces:           7,
		ExtraRaceBonus:      10,
		ParticipationPoints: 20,
		MaxStandingsLimit:   500,
	}
}
