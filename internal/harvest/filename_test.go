package harvest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTargetFilename(t *testing.T) {
	tests := []struct {
		name        string
		entry       ListingEntry
		artifactURL string
		want        string
	}{
		{
			name:        "dated entry uses the pretty name",
			entry:       ListingEntry{ReportDate: "08-27-2025"},
			artifactURL: "https://example.gov/files/2384.pdf",
			want:        "National Hemp Report 08-27-2025.pdf",
		},
		{
			name:        "undated entry falls back to the url basename",
			entry:       ListingEntry{},
			artifactURL: "https://example.gov/files/hemp_weekly.pdf",
			want:        "hemp_weekly.pdf",
		},
		{
			name:        "url basename is percent-decoded",
			entry:       ListingEntry{},
			artifactURL: "https://example.gov/files/National%20Hemp%20Report.pdf",
			want:        "National Hemp Report.pdf",
		},
		{
			name:        "query string does not leak into the name",
			entry:       ListingEntry{},
			artifactURL: "https://example.gov/files/report.pdf?dl=1",
			want:        "report.pdf",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, TargetFilename(tt.entry, tt.artifactURL))
		})
	}
}
