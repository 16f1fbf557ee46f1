package main

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// linkIssue describes one problem with a local markdown link.
type linkIssue struct {
	Source string // file the link appears in, relative to the suite dir
	Target string // link destination as written
	Reason string
}

// lintLinks checks the local links in every markdown file under dir.
// External URLs and mail links are left alone; file targets must exist
// and stay inside dir. Returns the issues and the number of local
// links checked.
func lintLinks(dir string) ([]linkIssue, int) {
	var issues []linkIssue
	total := 0

	for _, file := range collectMarkdownFiles(dir) {
		relPath, err := filepath.Rel(dir, file)
		if err != nil {
			continue
		}
		relPath = filepath.ToSlash(relPath)

		source, err := os.ReadFile(file)
		if err != nil {
			continue
		}

		for _, target := range extractLinkTargets(source) {
			if isExternalURL(target) || shouldSkipLink(target) {
				continue
			}
			localTarget := stripFragment(target)
			if localTarget == "" {
				continue // fragment-only link within the same file
			}

			total++
			sourceDir := filepath.Dir(file)
			resolved := filepath.Clean(filepath.Join(sourceDir, filepath.FromSlash(localTarget)))

			if !isWithinDir(resolved, dir) {
				issues = append(issues, linkIssue{
					Source: relPath, Target: target, Reason: "link escapes the suite directory",
				})
				continue
			}

			info, err := os.Stat(resolved)
			if err != nil {
				issues = append(issues, linkIssue{
					Source: relPath, Target: target, Reason: "target does not exist",
				})
				continue
			}
			if info.IsDir() {
				issues = append(issues, linkIssue{
					Source: relPath, Target: target, Reason: "target is a directory, not a file",
				})
			}
		}
	}
	return issues, total
}

// collectMarkdownFiles walks dir and returns paths to .md files.
func collectMarkdownFiles(dir string) []string {
	var files []string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if strings.ToLower(filepath.Ext(path)) == ".md" {
			files = append(files, path)
		}
		return nil
	})
	return files
}

// extractLinkTargets parses markdown bytes and returns every link and
// image destination.
func extractLinkTargets(source []byte) []string {
	md := goldmark.New()
	reader := text.NewReader(source)
	doc := md.Parser().Parse(reader)

	var targets []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.Link:
			targets = append(targets, string(v.Destination))
		case *ast.Image:
			targets = append(targets, string(v.Destination))
		case *ast.AutoLink:
			target := string(v.Label(source))
			if len(v.Protocol) > 0 && !strings.HasPrefix(target, string(v.Protocol)) {
				target = string(v.Protocol) + target
			}
			targets = append(targets, target)
		}
		return ast.WalkContinue, nil
	})
	return targets
}

// isExternalURL returns true for http:// and https:// URLs.
func isExternalURL(target string) bool {
	return strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://")
}

// shouldSkipLink returns true for link schemes that cannot point at a
// local file.
func shouldSkipLink(target string) bool {
	return strings.HasPrefix(target, "mailto:")
}

// stripFragment removes the #fragment portion of a URL or path.
func stripFragment(target string) string {
	if idx := strings.Index(target, "#"); idx >= 0 {
		return target[:idx]
	}
	return target
}

// isWithinDir returns true if path is inside dir (or is dir itself).
func isWithinDir(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}
