// Package migrations embeds the SQL schema so goose can apply it from
// cmd/migrate and from integration tests.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
