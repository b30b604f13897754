package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"reflect"
	"testing"

	"shifttime/pkg/templates"
)

func TestPack_RoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 3, 10} {
		t.Run(fmt.Sprintf("%d files", n), func(t *testing.T) {
			files := make([]templates.File, 0, n)
			for i := 0; i < n; i++ {
				files = append(files, templates.File{
					Path:    fmt.Sprintf("dir%d/file%d.txt", i%2, i),
					Content: fmt.Sprintf("content %d — вміст", i),
				})
			}

			data, err := Pack(files)
			if err != nil {
				t.Fatalf("Pack failed: %v", err)
			}

			got, err := Unpack(data)
			if err != nil {
				t.Fatalf("Unpack failed: %v", err)
			}

			if len(got) != n {
				t.Fatalf("Expected %d entries, got %d", n, len(got))
			}
			if n > 0 && !reflect.DeepEqual(got, files) {
				t.Errorf("Round trip mismatch:\n got: %v\nwant: %v", got, files)
			}
		})
	}
}

func TestPack_TemplateFiles(t *testing.T) {
	files, err := templates.Build(templates.Site{Name: "Test", TemplateID: templates.ShopDemo})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	data, err := Pack(files)
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Invalid zip: %v", err)
	}

	for i, entry := range zr.File {
		if entry.Method != zip.Deflate {
			t.Errorf("Entry %s not deflated", entry.Name)
		}
		if entry.Name != files[i].Path {
			t.Errorf("Entry %d = %s, expected %s", i, entry.Name, files[i].Path)
		}
	}
}

func TestPack_Deterministic(t *testing.T) {
	files := []templates.File{{Path: "index.html", Content: "<h1>x</h1>"}}

	first, err := Pack(files)
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}
	second, err := Pack(files)
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Error("Expected identical archives for identical input")
	}
}

func TestPack_InvalidPaths(t *testing.T) {
	for _, p := range []string{"", "..", "../etc/passwd", "a/../../b"} {
		if _, err := Pack([]templates.File{{Path: p, Content: "x"}}); err == nil {
			t.Errorf("Expected path %q to be rejected", p)
		}
	}
}

func TestPack_NormalizesPaths(t *testing.T) {
	data, err := Pack([]templates.File{{Path: "/assets\\app.js", Content: "x"}})
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}

	got, err := Unpack(data)
	if err != nil {
		t.Fatalf("Unpack failed: %v", err)
	}
	if got[0].Path != "assets/app.js" {
		t.Errorf("Expected normalized path, got %q", got[0].Path)
	}
}
