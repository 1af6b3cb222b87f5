// Package indexer regenerates the static HTML archive listing from the
// objects currently in durable storage.
package indexer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hempwatch/harvester/internal/storage"
)

// Filenames carry MM-DD-YYYY dates.
var filenameDate = regexp.MustCompile(`(\d{2})-(\d{2})-(\d{4})`)

// Config controls what gets listed and where the page is written.
type Config struct {
	// ArchivePrefix is the storage prefix holding the report objects.
	ArchivePrefix string
	// MarkerPath is excluded from the listing.
	MarkerPath string
	// OutputPath is where the rendered page is stored.
	OutputPath string
	// PublicBaseURL prefixes each object name to form its download URL.
	PublicBaseURL string
	// Title is the page heading.
	Title string
	// PageSize is the number of rows per page in the rendered table.
	PageSize int
}

func (c *Config) applyDefaults() {
	if c.Title == "" {
		c.Title = "USDA Weekly Reports"
	}
	if c.PageSize <= 0 {
		c.PageSize = 20
	}
}

// Indexer lists the archive and renders the paginated index page.
type Indexer struct {
	store  storage.Store
	cfg    Config
	logger *zap.Logger
}

// New constructs an Indexer.
func New(store storage.Store, cfg Config, logger *zap.Logger) *Indexer {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

type row struct {
	Filename string
	URL      string
	date     time.Time
}

type pageData struct {
	Title    string
	PageSize int
	Rows     []row
}

// Rebuild lists the archive, sorts newest first, and overwrites the index
// page in storage.
func (ix *Indexer) Rebuild(ctx context.Context) error {
	objects, err := ix.store.List(ctx, ix.cfg.ArchivePrefix)
	if err != nil {
		return fmt.Errorf("list archive objects: %w", err)
	}

	rows := make([]row, 0, len(objects))
	for _, obj := range objects {
		if obj.Name == ix.cfg.MarkerPath || obj.Name == ix.cfg.OutputPath {
			continue
		}
		name := path.Base(obj.Name)
		rows = append(rows, row{
			Filename: name,
			URL:      ix.downloadURL(obj.Name),
			date:     dateFromFilename(name),
		})
	}

	// Newest first; files without a date sink to the bottom.
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].date.After(rows[j].date)
	})

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, pageData{
		Title:    ix.cfg.Title,
		PageSize: ix.cfg.PageSize,
		Rows:     rows,
	}); err != nil {
		return fmt.Errorf("render index page: %w", err)
	}

	if err := ix.store.Put(ctx, ix.cfg.OutputPath, "text/html; charset=utf-8", buf.Bytes()); err != nil {
		return fmt.Errorf("write index page: %w", err)
	}

	ix.logger.Info("archive index rebuilt",
		zap.String("output_path", ix.cfg.OutputPath),
		zap.Int("entries", len(rows)),
	)
	return nil
}

func (ix *Indexer) downloadURL(objectName string) string {
	base, err := url.Parse(ix.cfg.PublicBaseURL)
	if err != nil || base.Scheme == "" {
		return objectName
	}
	joined := *base
	joined.Path = path.Join("/", base.Path, objectName)
	return joined.String()
}

func dateFromFilename(name string) time.Time {
	m := filenameDate.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}
	}
	t, err := time.Parse("01-02-2006", strings.Join(m[1:4], "-"))
	if err != nil {
		return time.Time{}
	}
	return t
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="UTF-8">
	<title>{{.Title}}</title>
	<style>
		body { font-family: Arial, sans-serif; background: #f8f9fa; }
		h1 { text-align: center; }
		#pagination { text-align: center; margin: 20px auto 10px auto; }
		table { border-collapse: collapse; width: 80%; margin: 0 auto; background: #fff; }
		th, td { border: 1px solid #ccc; padding: 12px 16px; text-align: left; }
		th { background-color: #294d36; color: #fff; }
		tr:nth-child(even) { background: #f2f2f2; }
		.page-btn { margin: 0 2px; padding: 4px 10px; background: #294d36; color: #fff; border: none; border-radius: 5px; cursor: pointer; }
		.page-btn.active, .page-btn:focus { background: #31775c; outline: none; }
	</style>
</head>
<body>
	<h1>{{.Title}}</h1>
	<div id="pagination"></div>
	<table>
		<thead>
			<tr><th>File Name</th><th>Download Link</th></tr>
		</thead>
		<tbody id="table-body">
{{- range .Rows}}
			<tr><td>{{.Filename}}</td><td><a href="{{.URL}}" target="_blank">Download</a></td></tr>
{{- end}}
		</tbody>
	</table>
	<script>
		const rowsPerPage = {{.PageSize}};
		const allRows = Array.from(document.querySelectorAll('#table-body tr'));
		const totalPages = Math.max(1, Math.ceil(allRows.length / rowsPerPage));
		let currentPage = 1;

		function showPage(page) {
			currentPage = page;
			const start = (page - 1) * rowsPerPage;
			const end = start + rowsPerPage;
			allRows.forEach((row, i) => {
				row.style.display = (i >= start && i < end) ? '' : 'none';
			});
			renderPagination();
		}

		function renderPagination() {
			let html = '';
			for (let i = 1; i <= totalPages; i++) {
				html += '<button class="page-btn' + (i === currentPage ? ' active' : '') + '" onclick="showPage(' + i + ')">' + i + '</button>';
			}
			document.getElementById('pagination').innerHTML = html;
		}

		showPage(1);
	</script>
</body>
</html>
`))
