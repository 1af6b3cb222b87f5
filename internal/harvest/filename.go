package harvest

import (
	"fmt"
	"net/url"
	"path"
)

const reportNamePrefix = "National Hemp Report"

// TargetFilename computes the archive filename for a resolved artifact.
// When the listing row carried a report date the pretty name wins;
// otherwise the server-provided name from the artifact URL's final path
// segment is used, percent-decoded.
func TargetFilename(entry ListingEntry, artifactURL string) string {
	if entry.ReportDate != "" {
		return fmt.Sprintf("%s %s.pdf", reportNamePrefix, entry.ReportDate)
	}
	return filenameFromURL(artifactURL)
}

func filenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return path.Base(rawURL)
	}
	name := path.Base(u.Path)
	if decoded, err := url.PathUnescape(name); err == nil {
		return decoded
	}
	return name
}
