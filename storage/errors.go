package storage

import "errors"

// Storage error constants
var (
	// ErrProjectNotFound is returned when a project is not found
	ErrProjectNotFound = errors.New("project not found")

	// ErrProjectExists is returned when creating a project whose name is taken
	ErrProjectExists = errors.New("project already exists")

	// ErrDatabaseClosed is returned when using a closed database connection
	ErrDatabaseClosed = errors.New("database is closed")
)
