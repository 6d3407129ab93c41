package database

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-enrollment-api/pkg/config"
)

func TestMigrationURLEscapesCredentials(t *testing.T) {
	url := MigrationURL(config.DatabaseConfig{
		Host:     "db",
		Port:     5432,
		User:     "app",
		Password: "p@ss/word",
		Name:     "courses",
		SSLMode:  "disable",
	})
	require.Equal(t, "postgres://app:p%40ss%2Fword@db:5432/courses?sslmode=disable", url)
}
