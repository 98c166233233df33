// Package migrations holds the goose SQL migrations for trips, members,
// proposals and votes. internal/migrate applies them at startup when
// AUTO_MIGRATE is set, and the integration tests apply them in TestMain.
package migrations

import "embed"

// FS is the set of *.sql files, numbered in apply order.
//
//go:embed *.sql
var FS embed.FS
