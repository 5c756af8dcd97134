// Package database opens the application database and migrates the schema.
//
// Repositories live in subpackages:
//
//	users/   credential store (accounts, email lookup, hosted upserts)
//	school/  students, staff, vendors, fee renewals, notifications, payments, expenses
//
// # Usage
//
//	db, err := database.NewDatabase(cfg.Database)
//	userRepo := users.NewRepository(db.DB)
//	schoolRepo := school.NewRepository(db.DB)
package database
