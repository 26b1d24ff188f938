// Package migrations embeds the customer store schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
