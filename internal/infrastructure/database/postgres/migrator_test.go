package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourceURL(t *testing.T) {
	assert.Equal(t, "file://migrations", SourceURL("migrations"))
	assert.Equal(t, "file:///opt/ipfiling/migrations", SourceURL("/opt/ipfiling/migrations"))
	assert.Equal(t, "file://./migrations", SourceURL("file://./migrations"))
	assert.Equal(t, "github://org/repo/migrations", SourceURL("github://org/repo/migrations"))
}

func TestValidateSteps(t *testing.T) {
	assert.NoError(t, ValidateSteps(1))
	err := ValidateSteps(0)
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "steps must be greater than 0")
	}
	assert.Error(t, ValidateSteps(-3))
}

func TestNewMigrator_MissingSource(t *testing.T) {
	_, err := NewMigrator("postgres://u:p@localhost:1/db?sslmode=disable", "/nonexistent/ipfiling-migrations", nil)
	assert.Error(t, err)
}

//Personal.AI order the ending
