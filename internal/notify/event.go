package notify

import (
	"fmt"
	"strings"
)

// Event summarizes one harvester run for notification.
type Event struct {
	RunID       string
	Outcome     string
	Tier        string
	ArtifactURL string
	Filename    string
	Err         error
}

// Subject returns the notification subject line.
func (e Event) Subject() string {
	if e.Err != nil {
		return "USDA hemp report harvester run failed"
	}
	return "USDA hemp report harvester run finished"
}

// Body renders the plain-text notification body.
func (e Event) Body() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run_id: %s\n", e.RunID)
	if e.Err != nil {
		fmt.Fprintf(&b, "status: failed\nerror: %v\n", e.Err)
	} else {
		fmt.Fprintf(&b, "status: succeeded\noutcome: %s\n", e.Outcome)
	}
	if e.Tier != "" {
		fmt.Fprintf(&b, "tier: %s\n", e.Tier)
	}
	if e.ArtifactURL != "" {
		fmt.Fprintf(&b, "artifact: %s\n", e.ArtifactURL)
	}
	if e.Filename != "" {
		fmt.Fprintf(&b, "filename: %s\n", e.Filename)
	}
	return b.String()
}
