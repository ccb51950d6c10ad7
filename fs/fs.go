// Package appfs embeds the files the binaries need at run time:
// SQL migrations and email templates.
package appfs

import "embed"

//go:embed migrations templates/email/*
var FS embed.FS
