// Package pass composes the printable visitor-pass PDF: wordmark, cropped
// profile photo, script-aware member name, registration metadata, the QR
// credential and gate instructions. Everything is buffered in memory so a
// render can run inside a request or a background job without scratch files.
package pass

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"

	"github.com/sangam-association/backend/internal/models"
	"github.com/sangam-association/backend/internal/qrtoken"
)

// Page geometry in millimetres (A5 portrait).
const (
	pageWidth   = 148.0
	marginX     = 14.0
	contentW    = pageWidth - 2*marginX
	photoSideMM = 42.0
	qrSideMM    = 46.0
)

const instructionsText = "Present this pass at the venue gate. The QR code will be scanned once " +
	"at entry; a pass cannot be used twice. Carry a photo ID matching the name on this pass. " +
	"Entry is permitted only for the member named above and is not transferable."

// Renderer builds visitor-pass PDFs.
type Renderer struct {
	codec       *qrtoken.Codec
	store       ObjectStore // nil when media storage is not configured
	mediaBucket string
	logoPath    string
	fontsDir    string
	http        *http.Client
	logger      *zap.Logger
}

// NewRenderer creates a pass renderer. store may be nil; photo references
// that are object keys then render as the reserved blank footprint.
func NewRenderer(codec *qrtoken.Codec, store ObjectStore, mediaBucket, logoPath, fontsDir string, logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{
		codec:       codec,
		store:       store,
		mediaBucket: mediaBucket,
		logoPath:    logoPath,
		fontsDir:    fontsDir,
		http:        &http.Client{Timeout: 15 * time.Second},
		logger:      logger,
	}
}

// Render produces the single-page pass document. Missing images degrade to
// their reserved footprint; only corrupt base assets or engine failures
// return an error.
func (r *Renderer) Render(ctx context.Context, reg *models.Registration, event *models.Event, member *models.Member, baseURL string) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A5", "")
	pdf.SetMargins(marginX, 12, marginX)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	nameFont := r.registerNameFont(pdf, member.FullName)

	r.drawLogo(pdf)

	pdf.SetFont("helvetica", "B", 16)
	pdf.CellFormat(contentW, 9, "VISITOR PASS", "", 1, "C", false, 0, "")
	pdf.Ln(2)

	if err := r.drawPhoto(ctx, pdf, member, baseURL); err != nil {
		return nil, err
	}

	pdf.SetFont(nameFont, "", 15)
	pdf.CellFormat(contentW, 9, member.FullName, "", 1, "C", false, 0, "")
	pdf.Ln(1)

	r.drawMetadata(pdf, reg, event)

	if err := r.drawQR(pdf, reg); err != nil {
		return nil, err
	}

	pdf.SetFont("helvetica", "", 8)
	pdf.SetTextColor(80, 80, 80)
	pdf.MultiCell(contentW, 4, instructionsText, "", "C", false)

	pdf.SetY(-16)
	pdf.SetFont("helvetica", "I", 8)
	pdf.CellFormat(contentW, 5, event.Title, "", 1, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pass: %w", err)
	}
	return buf.Bytes(), nil
}

// registerNameFont picks the font for the member's name via the script
// table and registers the matching TTF when bundled. When the font file is
// absent the name falls back to the core font, degraded but rendered.
func (r *Renderer) registerNameFont(pdf *gofpdf.Fpdf, name string) string {
	style := DetectScript(name)
	if style.FontFile == "" {
		return style.FontName
	}
	path := filepath.Join(r.fontsDir, style.FontFile)
	if _, err := os.Stat(path); err != nil {
		r.logger.Warn("script font not bundled, falling back to core font",
			zap.String("script", style.Name), zap.String("path", path))
		return Latin.FontName
	}
	pdf.AddUTF8Font(style.FontName, "", path)
	if pdf.Err() {
		r.logger.Warn("script font failed to load, falling back to core font",
			zap.String("script", style.Name), zap.String("error", pdf.Error().Error()))
		pdf.ClearError()
		return Latin.FontName
	}
	return style.FontName
}

func (r *Renderer) drawLogo(pdf *gofpdf.Fpdf) {
	const logoW, logoH = 34.0, 17.0
	x := marginX + (contentW-logoW)/2

	raw, err := os.ReadFile(r.logoPath)
	if err != nil {
		r.logger.Warn("logo unavailable, rendering without it", zap.String("path", r.logoPath))
		pdf.Ln(logoH + 2)
		return
	}
	opts := gofpdf.ImageOptions{ImageType: imageTypeFor(r.logoPath), ReadDpi: true}
	pdf.RegisterImageOptionsReader("logo", opts, bytes.NewReader(raw))
	if pdf.Err() {
		r.logger.Warn("logo failed to decode, rendering without it", zap.String("error", pdf.Error().Error()))
		pdf.ClearError()
		pdf.Ln(logoH + 2)
		return
	}
	pdf.ImageOptions("logo", x, pdf.GetY(), logoW, logoH, false, opts, 0, "")
	pdf.Ln(logoH + 2)
}

// drawPhoto draws the square-cropped profile photo or, when unavailable, a
// bordered placeholder of the same footprint so the layout stays stable.
func (r *Renderer) drawPhoto(ctx context.Context, pdf *gofpdf.Fpdf, member *models.Member, baseURL string) error {
	x := marginX + (contentW-photoSideMM)/2
	y := pdf.GetY()

	raw := r.fetchPhoto(ctx, member, baseURL)
	if raw != nil {
		if cropped, err := cropSquare(raw); err == nil {
			opts := gofpdf.ImageOptions{ImageType: "PNG"}
			pdf.RegisterImageOptionsReader("member-photo", opts, bytes.NewReader(cropped))
			if !pdf.Err() {
				pdf.ImageOptions("member-photo", x, y, photoSideMM, photoSideMM, false, opts, 0, "")
				pdf.SetY(y + photoSideMM + 3)
				return nil
			}
			pdf.ClearError()
		} else {
			r.logger.Warn("profile photo undecodable, rendering placeholder", zap.Error(err))
		}
	}
	pdf.SetDrawColor(200, 200, 200)
	pdf.Rect(x, y, photoSideMM, photoSideMM, "D")
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetY(y + photoSideMM + 3)
	return nil
}

func (r *Renderer) drawMetadata(pdf *gofpdf.Fpdf, reg *models.Registration, event *models.Event) {
	rows := [][2]string{
		{"Registration No.", fmt.Sprintf("%d", reg.ID)},
		{"Payment", paymentLine(reg, event)},
		{"Registered on", reg.RegisteredAt.Format("02 Jan 2006, 3:04 PM")},
	}
	pdf.SetFont("helvetica", "", 9)
	const labelW = 38.0
	for _, row := range rows {
		pdf.SetX(marginX + 8)
		pdf.SetTextColor(110, 110, 110)
		pdf.CellFormat(labelW, 5.5, row[0], "", 0, "L", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
		pdf.CellFormat(contentW-labelW-16, 5.5, row[1], "", 1, "L", false, 0, "")
	}
	pdf.Ln(2)
}

func paymentLine(reg *models.Registration, event *models.Event) string {
	if !event.IsPaid {
		return "free event"
	}
	return fmt.Sprintf("%s (%s %.2f)", reg.PaymentStatus, event.FeeCurrency, float64(reg.AmountPaidPaise)/100)
}

// drawQR embeds the QR credential. A failure here means the pass would be
// unusable at the gate, so it is a hard render error, not a degraded path.
func (r *Renderer) drawQR(pdf *gofpdf.Fpdf, reg *models.Registration) error {
	token, err := r.codec.Encode(reg)
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	png, err := qrtoken.Image(token, 0)
	if err != nil {
		return fmt.Errorf("render credential barcode: %w", err)
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(png))
	if pdf.Err() {
		return fmt.Errorf("embed credential barcode: %s", pdf.Error())
	}
	x := marginX + (contentW-qrSideMM)/2
	pdf.ImageOptions("qr", x, pdf.GetY(), qrSideMM, qrSideMM, false, opts, 0, "")
	pdf.SetY(pdf.GetY() + qrSideMM + 3)
	return nil
}

func imageTypeFor(path string) string {
	switch filepath.Ext(path) {
	case ".jpg", ".jpeg":
		return "JPG"
	default:
		return "PNG"
	}
}
