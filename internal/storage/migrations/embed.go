// Package migrations embeds the SQL schema of every backend and applies it.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed postgres/*.sql
var postgresFS embed.FS

//go:embed clickhouse/*.sql
var clickhouseFS embed.FS

// Postgres returns the PostgreSQL migrations.
func Postgres() fs.FS { return sub(postgresFS, "postgres") }

// Clickhouse returns the ClickHouse migrations.
func Clickhouse() fs.FS { return sub(clickhouseFS, "clickhouse") }

func sub(fsys embed.FS, dir string) fs.FS {
	s, err := fs.Sub(fsys, dir)
	if err != nil {
		// dir is a literal matched by the embed pattern
		panic(err)
	}
	return s
}
