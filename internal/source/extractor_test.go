package source

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"examnotify/internal/feed"
)

func readTestdata(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return b
}

func TestExtractFirstGroupOnly(t *testing.T) {
	t.Parallel()
	base, _ := url.Parse("https://exams.example.edu/Login/check1/abc")
	items, err := Extract(readTestdata(t, "notifications.html"), feed.KindNotifications, base)
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}

	want := []feed.Item{
		{
			Content:        "Fourth Semester B.Tech Degree Examination - Time Table",
			PublishDate:    "15/03/2024",
			AttachmentLink: "https://exams.example.edu/files/notif/tt-s4.pdf",
			Kind:           feed.KindNotifications,
		},
		{
			Content:     "Revaluation results of M.Sc Physics",
			PublishDate: "15/03/2024",
			Kind:        feed.KindNotifications,
		},
		{
			Content:        "Supplementary exam registration",
			PublishDate:    "15/03/2024",
			AttachmentLink: "https://cdn.example.org/supp.pdf",
			Kind:           feed.KindNotifications,
		},
	}
	if len(items) != len(want) {
		t.Fatalf("len(items) = %d, want %d: %+v", len(items), len(want), items)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Fatalf("items[%d] = %+v, want %+v", i, items[i], want[i])
		}
	}
}

func TestExtractEdgeCases(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		file    string
		raw     string
		want    int
		wantErr error
	}{
		{name: "no rows", file: "empty.html", want: 0},
		{name: "empty body", raw: "", want: 0},
		{name: "rows without heading", file: "no_heading.html", wantErr: feed.ErrNoHeading},
		{
			name: "rows before heading are ignored",
			raw: `<table><tr class="displayList"><td>1</td><td>stray</td></tr>
<tr class="tableHeading"><td>Published on 01/01/2024</td></tr>
<tr class="displayList"><td>1</td><td>kept</td></tr></table>`,
			want: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			raw := []byte(tt.raw)
			if tt.file != "" {
				raw = readTestdata(t, tt.file)
			}
			items, err := Extract(raw, feed.KindResults, nil)
			if tt.wantErr != nil {
				var pe *feed.ParseError
				if !errors.As(err, &pe) || !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want ParseError wrapping %v", err, tt.wantErr)
				}
				if pe.Kind != feed.KindResults {
					t.Fatalf("ParseError.Kind = %s, want results", pe.Kind)
				}
				return
			}
			if err != nil {
				t.Fatalf("Extract error: %v", err)
			}
			if len(items) != tt.want {
				t.Fatalf("len(items) = %d, want %d", len(items), tt.want)
			}
		})
	}
}

func TestExtractIsDeterministic(t *testing.T) {
	t.Parallel()
	raw := readTestdata(t, "notifications.html")
	a, err := Extract(raw, feed.KindNotifications, nil)
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	b, _ := Extract(raw, feed.KindNotifications, nil)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Identity() != b[i].Identity() {
			t.Fatalf("identity %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
	// without a base the relative link is kept as written
	if a[0].AttachmentLink != "/files/notif/tt-s4.pdf" {
		t.Fatalf("AttachmentLink = %q", a[0].AttachmentLink)
	}
}
