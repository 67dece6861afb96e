// Package assets embeds the static files shipped inside the binary,
// currently the SQL schema migrations for the server registry.
package assets

import (
	"embed"
	"io/fs"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var embedFS embed.FS

// Migration is one embedded schema migration. Version is the file name and
// doubles as the ordering and bookkeeping key.
type Migration struct {
	Version string
	SQL     string
}

// Migrations returns every embedded schema migration sorted by version.
func Migrations() ([]Migration, error) {
	entries, err := fs.ReadDir(embedFS, "migrations")
	if err != nil {
		return nil, err
	}

	var list []Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		content, err := embedFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return nil, err
		}

		list = append(list, Migration{Version: entry.Name(), SQL: string(content)})
	}

	sort.Slice(list, func(i, j int) bool { return list[i].Version < list[j].Version })

	return list, nil
}
