package config

const (
	// DefaultDatabasePath is the default path for the sqlite application database
	DefaultDatabasePath = "./schooldesk.db"
)
