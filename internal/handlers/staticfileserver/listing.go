package staticfileserver

import (
	"fmt"
	"html"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"example.com/devserve/v2/internal/assets"
)

// DirectoryEntry is one row of a directory listing.
type DirectoryEntry struct {
	Name    string
	IsDir   bool
	Size    int64 // unused for directories
	ModTime time.Time
}

// ListingContext carries everything the renderer needs for one listing.
// CurrentPath is the URL path of the directory without a trailing slash
// ("" for the root, "/docs/api" otherwise).
type ListingContext struct {
	CurrentPath string
	AbsDir      string
	Entries     []DirectoryEntry
	Breadcrumbs []string
}

// IsHidden reports whether a directory entry is excluded from listings.
func IsHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// ReadEntries lists absDir. Order is whatever os.ReadDir returns (sorted by
// file name); no further sorting happens. Hidden entries are dropped.
// Entries are stat'ed through symlinks; an entry that cannot be stat'ed (a
// dangling link, or one removed mid-listing) is skipped.
func ReadEntries(absDir string) ([]DirectoryEntry, error) {
	dirEntries, err := os.ReadDir(absDir)
	if err != nil {
		return nil, fmt.Errorf("could not read directory %s: %w", absDir, err)
	}

	entries := make([]DirectoryEntry, 0, len(dirEntries))
	for _, de := range dirEntries {
		name := de.Name()
		if IsHidden(name) {
			continue
		}
		fi, err := os.Stat(filepath.Join(absDir, name))
		if err != nil {
			continue
		}
		entries = append(entries, DirectoryEntry{
			Name:    name,
			IsDir:   fi.IsDir(),
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
		})
	}
	return entries, nil
}

// BreadcrumbParts splits a URL path into its non-empty segments.
func BreadcrumbParts(currentPath string) []string {
	var parts []string
	for _, p := range strings.Split(currentPath, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// NewListingContext normalizes currentPath and filters hidden entries.
func NewListingContext(currentPath, absDir string, entries []DirectoryEntry) ListingContext {
	parts := BreadcrumbParts(currentPath)

	visible := make([]DirectoryEntry, 0, len(entries))
	for _, e := range entries {
		if !IsHidden(e.Name) {
			visible = append(visible, e)
		}
	}

	normalized := ""
	if len(parts) > 0 {
		normalized = "/" + strings.Join(parts, "/")
	}

	return ListingContext{
		CurrentPath: normalized,
		AbsDir:      absDir,
		Entries:     visible,
		Breadcrumbs: parts,
	}
}

// ParentHref returns the link target of the ".." row, and false at the root.
func ParentHref(currentPath string) (string, bool) {
	parts := BreadcrumbParts(currentPath)
	if len(parts) == 0 {
		return "", false
	}
	parent := parts[:len(parts)-1]
	if len(parent) == 0 {
		return "/", true
	}
	return "/" + strings.Join(parent, "/") + "/", true
}

// escapeHref percent-encodes a URL path (keeping "/") and then escapes it
// for use inside a double-quoted HTML attribute.
func escapeHref(p string) string {
	return html.EscapeString((&url.URL{Path: p}).EscapedPath())
}

// renderBreadcrumb returns the navigation bar; empty at the root.
func renderBreadcrumb(parts []string) string {
	if len(parts) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(`<div class="breadcrumb">`)
	sb.WriteString(`<a href="/">🏠 root</a>`)

	cumulative := ""
	for _, part := range parts {
		cumulative += "/" + part
		sb.WriteString(`<span class="separator">/</span>`)
		fmt.Fprintf(&sb, `<a href="%s/">%s</a>`, escapeHref(cumulative), html.EscapeString(part))
	}

	sb.WriteString(`</div>`)
	return sb.String()
}

func renderEntryRow(sb *strings.Builder, currentPath string, e DirectoryEntry) {
	href := path.Join("/", currentPath, e.Name)
	name := html.EscapeString(e.Name)

	class, icon, size := "file", "📄", FormatSize(e.Size)
	if e.IsDir {
		class, icon, size = "directory", "📁", "-"
		href += "/"
		name += "/"
	}

	fmt.Fprintf(sb, `
        <tr class="entry">
          <td><a href="%s" class="%s">%s %s</a></td>
          <td>%s</td>
          <td title="%s">%s</td>
        </tr>`,
		escapeHref(href), class, icon, name,
		size,
		html.EscapeString(FormatDateTitle(e.ModTime)), FormatDate(e.ModTime))
}

// RenderListing produces the complete HTML document for a directory listing.
func RenderListing(ctx ListingContext) string {
	title := "Directory listing for " + ctx.CurrentPath
	if ctx.CurrentPath == "" {
		title = "Directory listing for root"
	}
	escapedTitle := html.EscapeString(title)

	var rows strings.Builder
	if parent, ok := ParentHref(ctx.CurrentPath); ok {
		fmt.Fprintf(&rows, `
        <tr class="parent">
          <td><a href="%s" class="directory">📁 ..</a></td>
          <td>-</td>
          <td>-</td>
        </tr>`, escapeHref(parent))
	}
	for _, e := range ctx.Entries {
		if IsHidden(e.Name) {
			continue
		}
		renderEntryRow(&rows, ctx.CurrentPath, e)
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString(`<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
`)
	fmt.Fprintf(&sb, "  <title>%s</title>\n", escapedTitle)
	fmt.Fprintf(&sb, "  <link rel=\"stylesheet\" href=\"%scommon.css\">\n", assets.Prefix)
	fmt.Fprintf(&sb, "  <link rel=\"stylesheet\" href=\"%sdirectory-listing.css\">\n", assets.Prefix)
	sb.WriteString(`</head>
<body>
  <div class="bg-animation">
    <div class="floating-shape shape-1"></div>
    <div class="floating-shape shape-2"></div>
    <div class="floating-shape shape-3"></div>
  </div>
  <div class="container">
`)
	fmt.Fprintf(&sb, "    <h1>%s</h1>\n", escapedTitle)
	fmt.Fprintf(&sb, "    %s\n", renderBreadcrumb(ctx.Breadcrumbs))
	fmt.Fprintf(&sb, "    <div class=\"path-info\">📍 Serving: %s</div>\n", html.EscapeString(ctx.AbsDir))
	sb.WriteString(`    <table>
      <thead>
        <tr>
          <th>Name</th>
          <th>Size</th>
          <th>Modified</th>
        </tr>
      </thead>
      <tbody>`)
	sb.WriteString(rows.String())
	sb.WriteString(`
      </tbody>
    </table>
  </div>
`)
	fmt.Fprintf(&sb, "  <script src=\"%scommon.js\"></script>\n", assets.Prefix)
	fmt.Fprintf(&sb, "  <script src=\"%sdirectory-listing.js\"></script>\n", assets.Prefix)
	sb.WriteString("</body>\n</html>\n")
	return sb.String()
}
