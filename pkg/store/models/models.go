// Package models defines the persistent entities of the service:
// groups, files, and file versions.
package models

// AllModels lists every model AutoMigrate must know about.
func AllModels() []any {
	return []any{
		&Group{},
		&File{},
		&FileVersion{},
	}
}
