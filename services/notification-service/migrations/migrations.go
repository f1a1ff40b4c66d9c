// Package migrations embeds the notification-service schema for tools/migrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
