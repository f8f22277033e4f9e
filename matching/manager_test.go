package matching

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"policyrag/matching/option"
)

func TestManager_IsExcluded_Table(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		size     int64
		options  []option.Option
		excluded bool
	}{
		{
			name:     "directory pattern matches nested file",
			path:     "/corpus/archive/old.pdf",
			size:     1,
			options:  []option.Option{option.WithExclusionPatterns("archive/")},
			excluded: true,
		},
		{
			name:     "directory pattern ignores similar names",
			path:     "/corpus/archives-list.pdf",
			size:     1,
			options:  []option.Option{option.WithExclusionPatterns("archive/")},
			excluded: false,
		},
		{
			name:     "directory pattern does not match a file of that name",
			path:     "/corpus/archive",
			size:     1,
			options:  []option.Option{option.WithExclusionPatterns("archive/")},
			excluded: false,
		},
		{
			name:     "basename glob matches office lock files",
			path:     "/corpus/~$budget.xlsx",
			size:     1,
			options:  []option.Option{option.WithExclusionPatterns("~$*")},
			excluded: true,
		},
		{
			name:     "basename glob does not match other extensions",
			path:     "/corpus/guide.pdf",
			size:     1,
			options:  []option.Option{option.WithExclusionPatterns("*.png")},
			excluded: false,
		},
		{
			name:     "trailing segments glob matches",
			path:     "/corpus/archive/old.pdf",
			size:     1,
			options:  []option.Option{option.WithExclusionPatterns("archive/*.pdf")},
			excluded: true,
		},
		{
			name:     "trailing segments glob stays shallow",
			path:     "/corpus/archive/notes/old.pdf",
			size:     1,
			options:  []option.Option{option.WithExclusionPatterns("archive/*.pdf")},
			excluded: false,
		},
		{
			name:     "leading doublestar prefix accepted",
			path:     "/policies/drafts/next.docx",
			size:     1,
			options:  []option.Option{option.WithExclusionPatterns("**/drafts/")},
			excluded: true,
		},
		{
			name: "inclusions restrict to listed extensions",
			path: "/corpus/notes.txt",
			size: 1,
			options: []option.Option{
				option.WithInclusionPatterns("*.pdf", "*.docx"),
			},
			excluded: true,
		},
		{
			name: "inclusions admit matching files",
			path: "/corpus/policy.pdf",
			size: 1,
			options: []option.Option{
				option.WithInclusionPatterns("*.pdf", "*.docx"),
			},
			excluded: false,
		},
		{
			name:     "max size excludes larger files",
			path:     "/corpus/huge.pdf",
			size:     101,
			options:  []option.Option{option.WithMaxProcessableSize(100)},
			excluded: true,
		},
		{
			name:     "max size admits files at the bound",
			path:     "/corpus/ok.pdf",
			size:     100,
			options:  []option.Option{option.WithMaxProcessableSize(100)},
			excluded: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.options...)
			if got := m.IsExcluded(tt.path, tt.size); got != tt.excluded {
				t.Fatalf("IsExcluded(%q)=%v want %v", tt.path, got, tt.excluded)
			}
		})
	}
}

func TestManager_DefaultPatterns(t *testing.T) {
	m := New()
	cases := []struct {
		path     string
		excluded bool
	}{
		{path: "/corpus/vacation-policy.pdf", excluded: false},
		{path: "/corpus/benefits.xlsx", excluded: false},
		{path: "/corpus/.DS_Store", excluded: true},
		{path: "/corpus/.git/HEAD", excluded: true},
		{path: "/corpus/~$open-in-word.docx", excluded: true},
		{path: "/corpus/backup.zip", excluded: true},
	}
	for _, tc := range cases {
		if got := m.IsExcluded(tc.path, 1); got != tc.excluded {
			t.Fatalf("IsExcluded(%q)=%v want %v", tc.path, got, tc.excluded)
		}
	}
}

func TestManager_IgnoreReader(t *testing.T) {
	ignore := strings.NewReader(`
# drafts never get indexed
*.draft
legacy/
`)
	m := New(option.WithIgnoreReader(ignore))
	cases := []struct {
		path     string
		excluded bool
	}{
		{path: "/corpus/policy.draft", excluded: true},
		{path: "/corpus/legacy/rules.pdf", excluded: true},
		{path: "/corpus/policy.pdf", excluded: false},
	}
	for _, tc := range cases {
		if got := m.IsExcluded(tc.path, 1); got != tc.excluded {
			t.Fatalf("IsExcluded(%q)=%v want %v", tc.path, got, tc.excluded)
		}
	}
}

func TestManager_LoadIgnore(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, IgnoreFileName), []byte("*.draft\n"), 0o644); err != nil {
		t.Fatalf("write ignore file: %v", err)
	}
	m := New()
	if err := m.LoadIgnore(context.Background(), dir); err != nil {
		t.Fatalf("load ignore: %v", err)
	}
	if !m.IsExcluded(filepath.Join(dir, "pending.draft"), 1) {
		t.Fatalf("expected *.draft exclusion from ignore file")
	}
	if m.IsExcluded(filepath.Join(dir, "approved.pdf"), 1) {
		t.Fatalf("expected pdf to pass")
	}
}
