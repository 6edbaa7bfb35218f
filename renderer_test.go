package pageview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/tsawler/pageview/view"
)

type testPage struct {
	mediaBox string
	rotate   int
	content  string
}

// writePDF writes a document with one page per entry.
func writePDF(t *testing.T, pages ...testPage) string {
	t.Helper()
	kids := ""
	for i := range pages {
		kids += fmt.Sprintf("%d 0 R ", 3+2*i)
	}
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, len(pages)),
	}
	for i, p := range pages {
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox %s /Rotate %d /Contents %d 0 R >>", p.mediaBox, p.rotate, 4+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(p.content), p.content))
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")
	offsets := make([]int, len(objs))
	for i, body := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)

	path := filepath.Join(t.TempDir(), "doc.pdf")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func threePages(t *testing.T) string {
	return writePDF(t,
		testPage{mediaBox: "[0 0 100 100]", content: "1 0 0 rg 0 0 50 50 re f"},
		testPage{mediaBox: "[0 0 200 100]", rotate: 90},
		testPage{mediaBox: "[0 0 100 50]"},
	)
}

func TestPageCount(t *testing.T) {
	if n := Must(Open(threePages(t)).PageCount()); n != 3 {
		t.Errorf("PageCount() = %d, want 3", n)
	}
	_, err := Open(filepath.Join(t.TempDir(), "missing.pdf")).PageCount()
	if !errors.Is(err, view.ErrLoadFailed) {
		t.Errorf("PageCount() of missing file error = %v, want ErrLoadFailed", err)
	}
}

func TestRenderAllPages(t *testing.T) {
	got, err := Open(threePages(t)).DPI(72, 72).Concurrency(2).Render(context.Background())
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	want := []image.Point{{100, 100}, {100, 200}, {100, 50}}
	if len(got) != len(want) {
		t.Fatalf("rendered %d pages, want %d", len(got), len(want))
	}
	for i, p := range got {
		if p.Number != i+1 {
			t.Errorf("result %d is page %d", i, p.Number)
		}
		if size := p.Image.Bounds().Size(); size != want[i] {
			t.Errorf("page %d size = %v, want %v", p.Number, size, want[i])
		}
	}
	if c := got[0].Image.RGBAAt(25, 75); c != (color.RGBA{R: 255, A: 255}) {
		t.Errorf("page 1 pixel (25, 75) = %v, want red", c)
	}
}

func TestRenderOptions(t *testing.T) {
	path := threePages(t)
	ctx := context.Background()

	got, err := Open(path).Pages(3, 1, 3).DPI(144, 144).Render(ctx)
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if len(got) != 2 || got[0].Number != 1 || got[1].Number != 3 {
		t.Fatalf("pages = %+v, want 1 and 3", got)
	}
	if size := got[0].Image.Bounds().Size(); size != image.Pt(200, 200) {
		t.Errorf("page 1 at 144 DPI = %v, want 200x200", size)
	}

	got, err = Open(path).PageRange(1, 1).Zoom(view.FitWidth()).Size(50, 50).Render(ctx)
	if err != nil {
		t.Fatalf("Render(fit width) error: %v", err)
	}
	if size := got[0].Image.Bounds().Size(); size != image.Pt(50, 50) {
		t.Errorf("fit width tile = %v, want 50x50", size)
	}

	got, err = Open(path).Pages(1).DPI(72, 72).Rotate(90).Render(ctx)
	if err != nil {
		t.Fatal(err)
	}
	// Red quarter moves from bottom left to top left.
	if c := got[0].Image.RGBAAt(25, 25); c != (color.RGBA{R: 255, A: 255}) {
		t.Errorf("rotated pixel (25, 25) = %v, want red", c)
	}
}

func TestRenderErrors(t *testing.T) {
	path := threePages(t)
	ctx := context.Background()

	tests := []struct {
		name string
		r    *Renderer
		want error
	}{
		{"fit without size", Open(path).Zoom(view.FitPage()), ErrNeedSize},
		{"bad DPI", Open(path).DPI(0, 72), view.ErrInvalidParameter},
		{"bad size", Open(path).Size(10, -1), view.ErrInvalidParameter},
		{"missing file", Open(filepath.Join(t.TempDir(), "nope.pdf")), view.ErrLoadFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.r.Render(ctx); !errors.Is(err, tt.want) {
				t.Errorf("Render() error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := Open(path).Pages(4).Render(ctx); err == nil {
		t.Error("Render() of page 4 of 3 succeeded")
	}
	if _, err := Open(path).PageRange(3, 1).Render(ctx); err == nil {
		t.Error("Render() with a reversed range succeeded")
	}
}

func TestRendererIsImmutable(t *testing.T) {
	base := Open("doc.pdf").Pages(1, 2)
	derived := base.Pages(3).DPI(300, 300)

	if len(base.options.pages) != 2 || base.options.dpiX != 0 {
		t.Errorf("base options changed: %+v", base.options)
	}
	if len(derived.options.pages) != 1 || derived.options.dpiX != 300 {
		t.Errorf("derived options = %+v", derived.options)
	}
}

func TestMustPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Must did not panic on error")
		}
	}()
	Must(0, errors.New("boom"))
}
