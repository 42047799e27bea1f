// Package server implements the WACCANDA HTTP server: the HTML pages, the
// package upload form handler, the install API used by the vibranium client,
// and the health and metrics endpoints. Dependencies (package lookup,
// database ping, storage backend) are injected through Config.
package server
