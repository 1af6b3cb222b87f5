package harvest

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustBase(t *testing.T) *url.URL {
	t.Helper()
	base, err := url.Parse("https://example.gov")
	require.NoError(t, err)
	return base
}

const listingPage = `<html><body>
<table>
  <thead><tr><th>Report</th><th>Date</th><th></th></tr></thead>
  <tbody>
    <tr>
      <td>National Hemp Report</td>
      <td>2025-08-27</td>
      <td><a href="/reports/9912">View Report</a></td>
    </tr>
    <tr>
      <td>National Hemp Report</td>
      <td>2025-08-20</td>
      <td><a href="/reports/9875">View Report</a></td>
    </tr>
  </tbody>
</table>
</body></html>`

func TestLocateLatestPicksFirstRow(t *testing.T) {
	entry, err := LocateLatest([]byte(listingPage), mustBase(t))
	require.NoError(t, err)

	require.Equal(t, "https://example.gov/reports/9912", entry.DetailURL)
	require.Equal(t, "08-27-2025", entry.ReportDate)
	require.Equal(t, "2025-08-27", entry.RawDate)
}

func TestLocateLatestDateAlreadyNormalized(t *testing.T) {
	page := `<table><tr>
		<td>08-27-2025</td>
		<td><a href="/reports/1">View Report</a></td>
	</tr></table>`

	entry, err := LocateLatest([]byte(page), mustBase(t))
	require.NoError(t, err)
	require.Equal(t, "08-27-2025", entry.ReportDate)
	require.Equal(t, "08-27-2025", entry.RawDate)
}

func TestLocateLatestWithoutDate(t *testing.T) {
	page := `<table><tr>
		<td>National Hemp Report</td>
		<td><a href="/reports/1">View Report</a></td>
	</tr></table>`

	entry, err := LocateLatest([]byte(page), mustBase(t))
	require.NoError(t, err)
	require.Empty(t, entry.ReportDate)
	require.Equal(t, "https://example.gov/reports/1", entry.DetailURL)
}

func TestLocateLatestPrefersViewReportLink(t *testing.T) {
	page := `<table><tr>
		<td><a href="/about">About</a></td>
		<td><a href="/reports/7">  view report  </a></td>
		<td><a href="/other">Other</a></td>
	</tr></table>`

	entry, err := LocateLatest([]byte(page), mustBase(t))
	require.NoError(t, err)
	require.Equal(t, "https://example.gov/reports/7", entry.DetailURL)
}

func TestLocateLatestFallsBackToLastLink(t *testing.T) {
	page := `<table><tr>
		<td><a href="/first">First</a></td>
		<td><a href="/reports/42">Details</a></td>
	</tr></table>`

	entry, err := LocateLatest([]byte(page), mustBase(t))
	require.NoError(t, err)
	require.Equal(t, "https://example.gov/reports/42", entry.DetailURL)
}

func TestLocateLatestMissingStructure(t *testing.T) {
	var structErr *StructureError

	_, err := LocateLatest([]byte(`<html><body><p>maintenance</p></body></html>`), mustBase(t))
	require.ErrorAs(t, err, &structErr)
	require.Equal(t, "table", structErr.What)

	_, err = LocateLatest([]byte(`<table></table>`), mustBase(t))
	require.ErrorAs(t, err, &structErr)
	require.Equal(t, "row", structErr.What)
}

func TestLocateLatestRowWithoutLinks(t *testing.T) {
	page := `<table><tr><td>2025-08-27</td></tr></table>`

	_, err := LocateLatest([]byte(page), mustBase(t))
	require.ErrorIs(t, err, ErrNoLinkFound)
}

func TestResolveArtifact(t *testing.T) {
	page := `<html><body>
		<a href="/help">Help</a>
		<a href="/files/National%20Hemp%20Report.PDF">Download</a>
		<a href="/files/other.pdf">Other</a>
	</body></html>`

	artifact, err := ResolveArtifact([]byte(page), mustBase(t))
	require.NoError(t, err)
	require.Equal(t, "https://example.gov/files/National%20Hemp%20Report.PDF", artifact)
}

func TestResolveArtifactAbsoluteLink(t *testing.T) {
	page := `<a href="https://cdn.example.gov/files/report.pdf">Download</a>`

	artifact, err := ResolveArtifact([]byte(page), mustBase(t))
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.gov/files/report.pdf", artifact)
}

func TestResolveArtifactMissing(t *testing.T) {
	page := `<html><body><a href="/files/report.docx">Download</a></body></html>`

	_, err := ResolveArtifact([]byte(page), mustBase(t))
	require.ErrorIs(t, err, ErrArtifactNotFound)
}
