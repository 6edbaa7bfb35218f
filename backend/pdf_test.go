package backend

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tsawler/pageview/model"
	"github.com/tsawler/pageview/reader"
	"github.com/tsawler/pageview/view"
)

// writePDF writes a document whose pages have the given content streams
// and a 100x100 media box.
func writePDF(t *testing.T, contents ...string) string {
	t.Helper()
	var objs []string
	kids := ""
	for i := range contents {
		kids += fmt.Sprintf("%d 0 R ", 3+2*i)
	}
	objs = append(objs,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d /MediaBox [0 0 100 100] >>", kids, len(contents)))
	for i, c := range contents {
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /Contents %d 0 R /Rotate %d >>", 4+2*i, 90*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(c), c))
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.5\n")
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
	return writeFile(t, buf.Bytes())
}

func writeFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.pdf")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// pageToDevice flips a 100 point high page into top-down device space.
var pageToDevice = model.Scale(1, -1).Multiply(model.Translate(0, 100))

var (
	opaqueRed = color.RGBA{R: 255, A: 255}
	white     = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

func TestOpenAndLoadPages(t *testing.T) {
	doc, err := PDF{}.Open(writePDF(t, "", ""), "")
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer doc.Close()

	if n := doc.PageCount(); n != 2 {
		t.Fatalf("PageCount() = %d, want 2", n)
	}
	p, err := doc.LoadPage(2)
	if err != nil {
		t.Fatalf("LoadPage(2) error: %v", err)
	}
	defer p.Close()
	if p.Number() != 2 || p.Rotation() != 90 {
		t.Errorf("page %d rotation %d, want page 2 rotation 90", p.Number(), p.Rotation())
	}
	if want := (model.PageBox{Left: 0, Bottom: 0, Right: 100, Top: 100}); p.Box() != want {
		t.Errorf("Box() = %v, want %v", p.Box(), want)
	}

	for _, n := range []int{0, 3, -1} {
		if _, err := doc.LoadPage(n); !errors.Is(err, view.ErrLoadFailed) {
			t.Errorf("LoadPage(%d) error = %v, want ErrLoadFailed", n, err)
		}
	}
}

func TestOpenErrors(t *testing.T) {
	tests := []struct {
		name string
		path string
		want error
	}{
		{"missing file", filepath.Join(t.TempDir(), "nope.pdf"), view.ErrLoadFailed},
		{"beyond repair", writeFile(t, []byte("this is not a PDF file at all")), view.ErrCannotRepair},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := (PDF{}).Open(tt.path, ""); !errors.Is(err, tt.want) {
				t.Errorf("Open() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		in   error
		want error
	}{
		{reader.ErrPasswordRequired, view.ErrPasswordNeeded},
		{fmt.Errorf("open: %w", reader.ErrWrongPassword), view.ErrWrongPassword},
		{reader.ErrRepairFailed, view.ErrCannotRepair},
		{reader.ErrUnsupportedEncryption, view.ErrCannotDecryptXref},
		{errors.New("disk on fire"), view.ErrLoadFailed},
	}
	for _, tt := range tests {
		if got := translate(tt.in); !errors.Is(got, tt.want) {
			t.Errorf("translate(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func loadFirstPage(t *testing.T, content string) view.Page {
	t.Helper()
	doc, err := PDF{}.Open(writePDF(t, content), "")
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { doc.Close() })
	p, err := doc.LoadPage(1)
	if err != nil {
		t.Fatalf("LoadPage(1) error: %v", err)
	}
	return p
}

func TestRender(t *testing.T) {
	p := loadFirstPage(t, "1 0 0 rg 0 0 50 50 re f")

	img, err := p.Render(nil, image.Rect(0, 0, 100, 100), pageToDevice)
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, 100, 100) {
		t.Fatalf("bounds = %v", img.Bounds())
	}
	// The bottom left quarter of the page is the bottom left of the tile.
	if got := img.RGBAAt(25, 75); got != opaqueRed {
		t.Errorf("pixel (25, 75) = %v, want red", got)
	}
	if got := img.RGBAAt(75, 25); got != white {
		t.Errorf("pixel (75, 25) = %v, want white background", got)
	}
}

func TestRenderClipAndReuse(t *testing.T) {
	p := loadFirstPage(t, "1 0 0 rg 0 0 50 50 re f")

	clip := image.Rect(0, 50, 100, 100)
	first, err := p.Render(nil, clip, pageToDevice)
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if first.Bounds() != image.Rect(0, 0, 100, 50) {
		t.Fatalf("bounds = %v, want the clip size at the origin", first.Bounds())
	}
	if got := first.RGBAAt(25, 25); got != opaqueRed {
		t.Errorf("pixel (25, 25) = %v, want red", got)
	}

	second, err := p.Render(first, clip, pageToDevice)
	if err != nil {
		t.Fatal(err)
	}
	if second != first {
		t.Error("a destination of the right size was not reused")
	}
	if _, err := p.Render(nil, image.Rectangle{}, pageToDevice); !errors.Is(err, view.ErrPageRender) {
		t.Errorf("empty clip error = %v, want ErrPageRender", err)
	}
}

func TestRenderBrokenContentStillPaints(t *testing.T) {
	p := loadFirstPage(t, "1 0 0 rg 0 0 50 50 re f /Missing Do (unterminated")
	img, err := p.Render(nil, image.Rect(0, 0, 100, 100), pageToDevice)
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if got := img.RGBAAt(25, 75); got != opaqueRed {
		t.Errorf("pixel (25, 75) = %v, want red", got)
	}
}

func TestClosedHandles(t *testing.T) {
	doc, err := PDF{}.Open(writePDF(t, "0 0 1 1 re f"), "")
	if err != nil {
		t.Fatal(err)
	}
	p, err := doc.LoadPage(1)
	if err != nil {
		t.Fatal(err)
	}

	if err := p.Close(); err != nil {
		t.Errorf("page Close() error: %v", err)
	}
	if _, err := p.Render(nil, image.Rect(0, 0, 10, 10), pageToDevice); !errors.Is(err, view.ErrPageRender) {
		t.Errorf("Render after Close error = %v, want ErrPageRender", err)
	}
	if err := doc.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
	if err := doc.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
	if _, err := doc.LoadPage(1); !errors.Is(err, view.ErrLoadFailed) {
		t.Errorf("LoadPage after Close error = %v, want ErrLoadFailed", err)
	}
}

func TestViewerWithPDF(t *testing.T) {
	done := make(chan struct{}, 4)
	v := view.New(PDF{},
		view.WithDPI(72, 72),
		view.WithLazyDelay(0),
		view.WithRenderListener(func() {
			select {
			case done <- struct{}{}:
			default:
			}
		}))
	defer v.Close()

	if err := v.Open(writePDF(t, "1 0 0 rg 0 0 50 50 re f"), ""); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	v.StartRendering(100, 100)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("no completion notification")
	}

	cur, ok := v.Current()
	if !ok {
		t.Fatal("no rendered view after the completion notification")
	}
	if got := cur.Image.RGBAAt(25, 75); got != opaqueRed {
		t.Errorf("viewer pixel (25, 75) = %v, want red", got)
	}
}
