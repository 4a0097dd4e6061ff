// Global database config.
package config

// Name of the database.
const DBName = "gatordb"

// The default number of frames a single buffer pool instance holds.
const DefaultPoolSize = 32

// The default number of buffer pool instances in a parallel pool.
const DefaultNumInstances = 4

// Name of log file.
const LogFileName = "db.log"
