// Package appfs embeds the files the binaries need at runtime: database migrations, email templates and the common-password list.
package appfs

import "embed"

//go:embed migrations all:templates passwords
var FS embed.FS
