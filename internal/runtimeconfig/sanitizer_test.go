package runtimeconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExport_MasksSensitiveEntries(t *testing.T) {
	snap := &Snapshot{Entries: map[string]Entry{
		"admin.auth_token":      {Key: "admin.auth_token", Value: "super-secret", IsSensitive: true},
		"click.enable_tracking": {Key: "click.enable_tracking", Value: "true"},
	}}

	out := Export(snap)
	assert.Equal(t, RedactedValue, out["admin.auth_token"])
	assert.Equal(t, "true", out["click.enable_tracking"])
}

func TestExportEntry_MasksOnlyWhenSensitive(t *testing.T) {
	sensitive := Entry{Key: "admin.auth_token", Value: "secret", IsSensitive: true}
	masked := ExportEntry(sensitive)
	assert.Equal(t, RedactedValue, masked.Value)
	assert.Equal(t, "secret", sensitive.Value, "ExportEntry must not mutate the source entry")

	plain := Entry{Key: "click.enable_tracking", Value: "true"}
	assert.Equal(t, "true", ExportEntry(plain).Value)
}
