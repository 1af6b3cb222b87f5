package notify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventSuccess(t *testing.T) {
	e := Event{
		RunID:       "run-1",
		Outcome:     "uploaded",
		Tier:        "http",
		ArtifactURL: "https://example.gov/files/report.pdf",
		Filename:    "National Hemp Report 08-27-2025.pdf",
	}

	require.Equal(t, "USDA hemp report harvester run finished", e.Subject())

	body := e.Body()
	require.Contains(t, body, "run_id: run-1")
	require.Contains(t, body, "status: succeeded")
	require.Contains(t, body, "outcome: uploaded")
	require.Contains(t, body, "tier: http")
	require.Contains(t, body, "filename: National Hemp Report 08-27-2025.pdf")
}

func TestEventFailure(t *testing.T) {
	e := Event{
		RunID: "run-2",
		Err:   errors.New("headless harvest: render wait timed out"),
	}

	require.Equal(t, "USDA hemp report harvester run failed", e.Subject())

	body := e.Body()
	require.Contains(t, body, "status: failed")
	require.Contains(t, body, "error: headless harvest: render wait timed out")
	require.NotContains(t, body, "outcome:")
	require.NotContains(t, body, "artifact:")
}
