package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractSSLMode(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"explicit require", "postgres://u:p@host:5432/db?sslmode=require", "require"},
		{"explicit disable", "postgres://u:p@host:5432/db?sslmode=disable", "disable"},
		{"uppercase normalized", "postgres://u:p@host:5432/db?sslmode=REQUIRE", "require"},
		{"absent", "postgres://u:p@host:5432/db", "prefer (default)"},
		{"unparseable", "://not-a-url", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractSSLMode(tt.url))
		})
	}
}

func TestExtractQueryName(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{"select", "SELECT match_id FROM matches", "select"},
		{"insert with leading whitespace", "\n\tINSERT INTO matches VALUES ($1)", "insert"},
		{"empty", "", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractQueryName(tt.sql))
		})
	}
}
