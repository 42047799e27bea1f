// Package store is the read-only accessor for the packages and
// package_versions tables. Schema ownership sits with the database; Migrate
// only exists to bootstrap a development or test instance.
package store
