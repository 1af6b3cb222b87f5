package indexer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hempwatch/harvester/internal/storage/memory"
)

const (
	testPrefix = "Market News/USDA Weekly Reports/"
	testMarker = "Market News/USDA Weekly Reports/latest_seen.txt"
	testOutput = "Market News/MMN_LIST.html"
)

func seedArchive(t *testing.T, store *memory.Store, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, store.Put(context.Background(), testPrefix+name, "application/pdf", []byte("pdf")))
	}
}

func rebuildAndRead(t *testing.T, store *memory.Store, cfg Config) string {
	t.Helper()
	require.NoError(t, New(store, cfg, nil).Rebuild(context.Background()))
	page, err := store.Get(context.Background(), cfg.OutputPath)
	require.NoError(t, err)
	return string(page)
}

func testConfig() Config {
	return Config{
		ArchivePrefix: testPrefix,
		MarkerPath:    testMarker,
		OutputPath:    testOutput,
		PublicBaseURL: "https://archive.example.gov",
		Title:         "USDA Weekly Reports",
		PageSize:      20,
	}
}

func TestRebuildListsNewestFirst(t *testing.T) {
	store := memory.New()
	seedArchive(t, store,
		"National Hemp Report 08-13-2025.pdf",
		"National Hemp Report 08-27-2025.pdf",
		"National Hemp Report 08-20-2025.pdf",
	)

	page := rebuildAndRead(t, store, testConfig())

	newest := strings.Index(page, "National Hemp Report 08-27-2025.pdf")
	middle := strings.Index(page, "National Hemp Report 08-20-2025.pdf")
	oldest := strings.Index(page, "National Hemp Report 08-13-2025.pdf")
	require.True(t, newest >= 0 && middle >= 0 && oldest >= 0)
	require.Less(t, newest, middle)
	require.Less(t, middle, oldest)
}

func TestRebuildExcludesMarkerAndSelf(t *testing.T) {
	store := memory.New()
	seedArchive(t, store, "National Hemp Report 08-27-2025.pdf")
	require.NoError(t, store.Put(context.Background(), testMarker, "text/plain", []byte("url")))

	cfg := testConfig()
	cfg.OutputPath = testPrefix + "index.html"
	page := rebuildAndRead(t, store, cfg)
	require.NotContains(t, page, "latest_seen.txt")

	// A second rebuild must not list the index page itself.
	page = rebuildAndRead(t, store, cfg)
	require.Equal(t, 1, strings.Count(page, "<tr><td>"))
}

func TestRebuildDownloadURLs(t *testing.T) {
	store := memory.New()
	seedArchive(t, store, "National Hemp Report 08-27-2025.pdf")

	page := rebuildAndRead(t, store, testConfig())
	require.Contains(t, page, `href="https://archive.example.gov/Market%20News/USDA%20Weekly%20Reports/National%20Hemp%20Report%2008-27-2025.pdf"`)
}

func TestRebuildUndatedFilesSinkToBottom(t *testing.T) {
	store := memory.New()
	seedArchive(t, store, "notes.pdf", "National Hemp Report 08-27-2025.pdf")

	page := rebuildAndRead(t, store, testConfig())
	dated := strings.Index(page, "National Hemp Report 08-27-2025.pdf")
	undated := strings.Index(page, "notes.pdf")
	require.Less(t, dated, undated)
}

func TestRebuildEmptyArchive(t *testing.T) {
	store := memory.New()

	page := rebuildAndRead(t, store, testConfig())
	require.Contains(t, page, "USDA Weekly Reports")
	require.NotContains(t, page, "<tr><td>")
}

func TestDateFromFilename(t *testing.T) {
	parsed := dateFromFilename("National Hemp Report 08-27-2025.pdf")
	require.Equal(t, time.Date(2025, 8, 27, 0, 0, 0, 0, time.UTC), parsed)

	require.True(t, dateFromFilename("notes.pdf").IsZero())
	require.True(t, dateFromFilename("report 99-99-2025.pdf").IsZero())
}
