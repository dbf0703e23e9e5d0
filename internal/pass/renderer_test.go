package pass

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sangam-association/backend/internal/models"
	"github.com/sangam-association/backend/internal/qrtoken"
)

func TestDetectScript(t *testing.T) {
	cases := []struct {
		name string
		text string
		want string
	}{
		{"latin", "Ramesh Patel", "latin"},
		{"devanagari", "रमेश पटेल", "devanagari"},
		{"gujarati", "રમેશ પટેલ", "gujarati"},
		{"gurmukhi", "ਹਰਪ੍ਰੀਤ ਸਿੰਘ", "gurmukhi"},
		{"tamil", "முருகன்", "tamil"},
		{"mixed latin prefix", "Ramesh रमेश", "devanagari"},
		{"digits and punctuation only", "R. Patel Jr. 2", "latin"},
		{"empty", "", "latin"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetectScript(tc.text); got.Name != tc.want {
				t.Fatalf("DetectScript(%q).Name = %q, want %q", tc.text, got.Name, tc.want)
			}
		})
	}
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestCropSquare(t *testing.T) {
	out, err := cropSquare(testPNG(t, 640, 480))
	if err != nil {
		t.Fatalf("cropSquare: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != PhotoSize || b.Dy() != PhotoSize {
		t.Fatalf("output %dx%d, want %dx%d", b.Dx(), b.Dy(), PhotoSize, PhotoSize)
	}
}

func TestCropSquareRejectsGarbage(t *testing.T) {
	if _, err := cropSquare([]byte("not an image")); err == nil {
		t.Fatal("expected decode error")
	}
}

func testFixtures(photoKey *string) (*models.Registration, *models.Event, *models.Member) {
	reg := &models.Registration{
		ID:            41,
		EventID:       7,
		MemberID:      12,
		Status:        models.StatusRegistered,
		PaymentStatus: models.PaymentPaid,
		RegisteredAt:  time.Date(2026, 2, 14, 10, 30, 0, 0, time.UTC),
	}
	event := &models.Event{
		ID:          7,
		Title:       "Annual Trade Meet 2026",
		VenueName:   "Town Hall",
		StartsAt:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		FeeCurrency: "INR",
	}
	member := &models.Member{
		ID:       12,
		FullName: "Ramesh Patel",
		Phone:    "+919800000001",
		PhotoKey: photoKey,
	}
	return reg, event, member
}

func newTestRenderer() *Renderer {
	return NewRenderer(qrtoken.NewCodec("render-test-secret"), nil, "", "testdata/no-logo.png", "testdata", nil)
}

func assertPDF(t *testing.T, doc []byte) {
	t.Helper()
	if len(doc) == 0 || !bytes.HasPrefix(doc, []byte("%PDF")) {
		t.Fatalf("output is not a PDF (len=%d)", len(doc))
	}
}

// Rendering must succeed with every optional asset missing: no logo file,
// no photo reference, no bundled script fonts.
func TestRenderWithoutOptionalAssets(t *testing.T) {
	reg, event, member := testFixtures(nil)
	doc, err := newTestRenderer().Render(context.Background(), reg, event, member, "http://localhost")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	assertPDF(t, doc)
}

func TestRenderWithPhotoFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(testPNG(t, 500, 400))
	}))
	defer srv.Close()

	key := srv.URL + "/photos/12/me.png"
	reg, event, member := testFixtures(&key)
	r := newTestRenderer()
	doc, err := r.Render(context.Background(), reg, event, member, "http://localhost")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	assertPDF(t, doc)

	// An embedded photo makes the document substantially larger than the
	// placeholder rectangle it replaces.
	member.PhotoKey = nil
	bare, err := r.Render(context.Background(), reg, event, member, "http://localhost")
	if err != nil {
		t.Fatalf("Render without photo: %v", err)
	}
	if len(doc) <= len(bare)+1024 {
		t.Fatalf("photo not embedded: %d bytes with photo vs %d without", len(doc), len(bare))
	}
}

// A dead photo URL degrades to the placeholder; the pass still renders.
func TestRenderWithUnreachablePhoto(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	key := srv.URL + "/photos/12/gone.png"
	reg, event, member := testFixtures(&key)
	doc, err := newTestRenderer().Render(context.Background(), reg, event, member, "http://localhost")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	assertPDF(t, doc)
}

// A relative photo key with no object store resolves against the base URL.
func TestRenderResolvesRelativePhotoKey(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "image/png")
		w.Write(testPNG(t, 300, 300))
	}))
	defer srv.Close()

	key := "photos/12/me.png"
	reg, event, member := testFixtures(&key)
	doc, err := newTestRenderer().Render(context.Background(), reg, event, member, srv.URL)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	assertPDF(t, doc)
	if gotPath != "/photos/12/me.png" {
		t.Fatalf("fetched path %q, want /photos/12/me.png", gotPath)
	}
}

func TestPaymentLine(t *testing.T) {
	reg, event, _ := testFixtures(nil)

	if got := paymentLine(reg, event); got != "free event" {
		t.Fatalf("free event line = %q", got)
	}

	event.IsPaid = true
	reg.AmountPaidPaise = 150000
	if got := paymentLine(reg, event); !strings.Contains(got, "INR 1500.00") {
		t.Fatalf("paid line = %q, want amount INR 1500.00", got)
	}
}
