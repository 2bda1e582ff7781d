// Package pdf renders a document as a paginated PDF.
package pdf

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/diewo77/devisflow/i18n"
	"github.com/diewo77/devisflow/internal/billing"
	"github.com/diewo77/devisflow/internal/config"
	ierr "github.com/diewo77/devisflow/internal/errors"
	"github.com/diewo77/devisflow/internal/logger"
	"github.com/diewo77/devisflow/internal/models"
	"github.com/jung-kurt/gofpdf"
)

// Options controls the page geometry.
type Options struct {
	PageFormat string  // A4 or Letter
	Margin     float64 // mm
	Scale      float64 // applied to font sizes and line heights
}

func (o Options) normalized() Options {
	switch strings.ToLower(o.PageFormat) {
	case "letter":
		o.PageFormat = "Letter"
	default:
		o.PageFormat = "A4"
	}
	if o.Margin <= 0 {
		o.Margin = 10
	}
	if o.Scale <= 0 {
		o.Scale = 1
	}
	return o
}

// Exporter renders documents with fixed options.
type Exporter struct {
	opts   Options
	logger *logger.Logger
}

func NewExporter(cfg config.PDFConfig, log *logger.Logger) *Exporter {
	return &Exporter{
		opts:   Options{PageFormat: cfg.PageFormat, Margin: cfg.Margin, Scale: cfg.Scale}.normalized(),
		logger: log,
	}
}

// Render returns the PDF bytes of doc.
func (e *Exporter) Render(doc models.InvoiceData) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Write(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write renders doc into w.
func (e *Exporter) Write(w io.Writer, doc models.InvoiceData) error {
	r := newRenderer(e.opts, doc, e.logger)
	r.draw()
	if err := r.pdf.Output(w); err != nil {
		return ierr.WithError(err).
			WithHint("The PDF could not be generated").
			Mark(ierr.ErrExport)
	}
	return nil
}

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]`)

// Filename is <invoiceNumber>_<client>.pdf with every non alphanumeric
// character of the client name replaced by an underscore.
func Filename(doc models.InvoiceData) string {
	number := strings.NewReplacer("/", "-", `\`, "-").Replace(doc.InvoiceNumber)
	return fmt.Sprintf("%s_%s.pdf", number, nonAlnum.ReplaceAllString(doc.ClientName(), "_"))
}

type rgb struct{ r, g, b int }

// hexColor parses #rrggbb, falling back to black.
func hexColor(s string) rgb {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return rgb{}
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return rgb{}
	}
	return rgb{int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)}
}

var (
	slate900 = rgb{15, 23, 42}
	slate500 = rgb{100, 116, 139}
	slate100 = rgb{241, 245, 249}
	white    = rgb{255, 255, 255}
)

type renderer struct {
	pdf    *gofpdf.Fpdf
	opts   Options
	doc    models.InvoiceData
	theme  models.InvoiceTheme
	lang   string
	tr     func(string) string
	logger *logger.Logger

	pageW, pageH float64
	width        float64 // printable width
}

func newRenderer(opts Options, doc models.InvoiceData, log *logger.Logger) *renderer {
	p := gofpdf.New("P", "mm", opts.PageFormat, "")
	p.SetMargins(opts.Margin, opts.Margin+4, opts.Margin)
	p.SetAutoPageBreak(true, opts.Margin+8)
	p.AliasNbPages("{nb}")
	p.SetTitle(doc.InvoiceNumber, true)
	p.SetCreator("DevisFlow", true)

	pw, ph := p.GetPageSize()
	cp := p.UnicodeTranslatorFromDescriptor("")
	spaces := strings.NewReplacer("\u202f", " ", "\u00a0", " ")
	r := &renderer{
		pdf:    p,
		opts:   opts,
		doc:    doc,
		theme:  models.ThemeOrDefault(doc.ThemeID),
		lang:   string(doc.Language),
		tr:     func(s string) string { return cp(spaces.Replace(s)) },
		logger: log,
		pageW:  pw,
		pageH:  ph,
		width:  pw - 2*opts.Margin,
	}
	p.SetHeaderFunc(r.header)
	p.SetFooterFunc(r.footer)
	return r
}

func (r *renderer) t(code string) string { return i18n.T(r.lang, code) }

func (r *renderer) money(v float64) string {
	return billing.FormatMoney(v, r.doc.Currency, r.lang)
}

func (r *renderer) font(style string, size float64) {
	r.pdf.SetFont("Helvetica", style, size*r.opts.Scale)
}

func (r *renderer) lh(h float64) float64 { return h * r.opts.Scale }

func (r *renderer) color(c rgb)     { r.pdf.SetTextColor(c.r, c.g, c.b) }
func (r *renderer) fill(c rgb)      { r.pdf.SetFillColor(c.r, c.g, c.b) }
func (r *renderer) drawColor(c rgb) { r.pdf.SetDrawColor(c.r, c.g, c.b) }

func (r *renderer) header() {
	r.fill(hexColor(r.theme.Primary))
	r.pdf.Rect(0, 0, r.pageW, 3, "F")
}

func (r *renderer) footer() {
	r.pdf.SetY(-(r.opts.Margin + 4))
	r.font("", 7)
	r.color(slate500)
	r.pdf.CellFormat(r.width/2, r.lh(4), r.tr(r.t("generatedWith")), "", 0, "L", false, 0, "")
	page := fmt.Sprintf("%s %d/{nb}", r.t("page"), r.pdf.PageNo())
	r.pdf.CellFormat(r.width/2, r.lh(4), r.tr(page), "", 0, "R", false, 0, "")
}

func (r *renderer) draw() {
	r.pdf.AddPage()
	top := r.pdf.GetY()
	r.senderBlock(top)
	senderEnd := r.pdf.GetY()
	r.metaBlock(top)
	// continue below the taller of the two header columns
	r.pdf.SetY(max(senderEnd, r.pdf.GetY()))
	r.receiverBlock()
	r.itemsTable()
	r.totalsBlock()
	r.notesBlock()
}

func (r *renderer) senderBlock(top float64) {
	m := r.opts.Margin
	size := 22.0
	if !r.logo(m, top, size) {
		r.fill(hexColor(r.theme.Primary))
		r.pdf.Rect(m, top, size, size, "F")
		r.font("B", 28)
		r.color(white)
		initial := ""
		if name := []rune(strings.TrimSpace(r.doc.Sender.Name)); len(name) > 0 {
			initial = strings.ToUpper(string(name[0]))
		}
		r.pdf.SetXY(m, top)
		r.pdf.CellFormat(size, size, r.tr(initial), "", 0, "CM", false, 0, "")
	}

	colW := r.width * 0.55
	r.pdf.SetXY(m, top+size+4)
	r.font("B", 15)
	r.color(slate900)
	r.pdf.MultiCell(colW, r.lh(7), r.tr(r.doc.Sender.Name), "", "L", false)

	r.font("", 9)
	r.color(slate500)
	s := r.doc.Sender
	r.pdf.MultiCell(colW, r.lh(4.5), r.tr(s.Address), "", "L", false)
	for _, line := range []string{s.Email, s.Phone, s.Website} {
		if strings.TrimSpace(line) != "" {
			r.pdf.CellFormat(colW, r.lh(4.5), r.tr(line), "", 1, "L", false, 0, "")
		}
	}
	if s.Ninea != "" || s.RCCM != "" {
		r.pdf.Ln(2)
		r.font("B", 7)
		r.pdf.CellFormat(colW, r.lh(4), r.tr(strings.ToUpper(r.t("legalInfo"))), "", 1, "L", false, 0, "")
		r.font("", 9)
		r.color(slate900)
		if s.Ninea != "" {
			r.pdf.CellFormat(colW, r.lh(4.5), r.tr("NINEA: "+s.Ninea), "", 1, "L", false, 0, "")
		}
		if s.RCCM != "" {
			r.pdf.CellFormat(colW, r.lh(4.5), r.tr("RCCM: "+s.RCCM), "", 1, "L", false, 0, "")
		}
	}
}

// logo draws the sender logo from its data URI. It reports false when there
// is no usable image.
func (r *renderer) logo(x, y, size float64) bool {
	uri := r.doc.Sender.Logo
	if uri == "" {
		return false
	}
	data, kind, err := decodeDataURI(uri)
	if err != nil {
		r.logger.Warnw("ignoring sender logo", "error", err)
		return false
	}
	opts := gofpdf.ImageOptions{ImageType: kind, ReadDpi: true}
	name := "logo-" + r.doc.Sender.ID
	r.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	if !r.pdf.Ok() {
		// gofpdf errors are sticky, Output reports it
		return false
	}
	r.pdf.ImageOptions(name, x, y, size, 0, false, opts, 0, "")
	return true
}

// decodeDataURI returns the image bytes and their gofpdf type.
func decodeDataURI(uri string) ([]byte, string, error) {
	header, payload, ok := strings.Cut(uri, ",")
	if !ok || !strings.HasPrefix(header, "data:") || !strings.HasSuffix(header, ";base64") {
		return nil, "", fmt.Errorf("logo is not a base64 data URI")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decode logo: %w", err)
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("read logo: %w", err)
	}
	switch format {
	case "png":
		return data, "PNG", nil
	case "jpeg":
		return data, "JPG", nil
	case "gif":
		return data, "GIF", nil
	}
	return nil, "", fmt.Errorf("unsupported logo format %q", format)
}

func (r *renderer) metaBlock(top float64) {
	colW := r.width * 0.4
	x := r.pageW - r.opts.Margin - colW

	title := r.t("invoiceTitle")
	if r.doc.DocumentType == models.DocumentTypeProforma {
		title = r.t("proformaInvoiceTitle")
	}
	r.pdf.SetXY(x, top)
	r.font("B", 22)
	r.color(hexColor(r.theme.Primary))
	r.pdf.MultiCell(colW, r.lh(9), r.tr(strings.ToUpper(title)), "", "R", false)

	r.pdf.SetX(x)
	r.font("B", 12)
	r.color(slate900)
	r.pdf.CellFormat(colW, r.lh(7), r.tr("# "+r.doc.InvoiceNumber), "", 1, "R", false, 0, "")

	rows := [][2]string{
		{r.t("date"), i18n.FormatDate(r.doc.Date, r.lang)},
		{r.t("dueDate"), i18n.FormatDate(r.doc.DueDate, r.lang)},
	}
	for _, row := range rows {
		r.pdf.SetX(x)
		r.font("", 8)
		r.color(slate500)
		r.pdf.CellFormat(colW*0.5, r.lh(5), r.tr(strings.ToUpper(row[0])), "", 0, "R", false, 0, "")
		r.font("B", 9)
		r.color(slate900)
		r.pdf.CellFormat(colW*0.5, r.lh(5), r.tr(row[1]), "", 1, "R", false, 0, "")
	}
}

func (r *renderer) receiverBlock() {
	m := r.opts.Margin
	y := r.pdf.GetY() + 8
	r.pdf.SetXY(m, y)
	r.font("B", 8)
	r.color(hexColor(r.theme.Accent))
	r.pdf.CellFormat(r.width, r.lh(5), r.tr(strings.ToUpper(r.t("billedTo"))), "", 1, "L", false, 0, "")

	rc := r.doc.Receiver
	r.font("B", 13)
	r.color(slate900)
	r.pdf.MultiCell(r.width*0.6, r.lh(6), r.tr(rc.Name), "", "L", false)
	r.font("", 9)
	r.color(slate500)
	r.pdf.MultiCell(r.width*0.6, r.lh(4.5), r.tr(rc.Address), "", "L", false)
	for _, line := range []string{rc.Phone, rc.Email} {
		if strings.TrimSpace(line) != "" {
			r.pdf.CellFormat(r.width*0.6, r.lh(4.5), r.tr(line), "", 1, "L", false, 0, "")
		}
	}
	r.pdf.Ln(6)
}

var columns = []struct {
	code  string
	ratio float64
	align string
}{
	{"description", 0.5, "L"},
	{"quantity", 0.1, "C"},
	{"rate", 0.2, "R"},
	{"amount", 0.2, "R"},
}

func (r *renderer) tableHeader() {
	r.fill(hexColor(r.theme.Primary))
	r.color(white)
	r.font("B", 8)
	for _, c := range columns {
		r.pdf.CellFormat(r.width*c.ratio, r.lh(8), r.tr(strings.ToUpper(r.t(c.code))), "", 0, c.align, true, 0, "")
	}
	r.pdf.Ln(-1)
}

func (r *renderer) itemsTable() {
	r.tableHeader()
	if len(r.doc.Items) == 0 {
		r.font("", 9)
		r.color(slate500)
		r.pdf.CellFormat(r.width, r.lh(14), r.tr(r.t("noItems")), "B", 1, "C", false, 0, "")
		return
	}

	_, bottom := r.pdf.GetAutoPageBreak()
	lineH := r.lh(5)
	r.drawColor(slate100)
	for _, it := range r.doc.Items {
		r.font("B", 9)
		descW := r.width * columns[0].ratio
		lines := r.pdf.SplitLines([]byte(r.tr(it.Description)), descW-2)
		if len(lines) == 0 {
			lines = [][]byte{nil}
		}
		rowH := float64(len(lines))*lineH + r.lh(4)

		// rows are never split across pages; the header is repeated
		if r.pdf.GetY()+rowH > r.pageH-bottom {
			r.pdf.AddPage()
			r.tableHeader()
		}

		x, y := r.pdf.GetXY()
		r.color(slate900)
		r.pdf.SetXY(x, y+r.lh(2))
		for _, l := range lines {
			r.pdf.SetX(x)
			r.pdf.CellFormat(descW, lineH, string(l), "", 2, "L", false, 0, "")
		}

		r.font("", 9)
		r.color(slate500)
		cells := []string{
			strconv.FormatFloat(it.Quantity, 'f', -1, 64),
			r.money(it.Rate),
			r.money(billing.LineAmount(it)),
		}
		cx := x + descW
		for i, text := range cells {
			c := columns[i+1]
			r.pdf.SetXY(cx, y)
			if i == len(cells)-1 {
				r.font("B", 9)
				r.color(slate900)
			}
			r.pdf.CellFormat(r.width*c.ratio, rowH, r.tr(text), "", 0, c.align, false, 0, "")
			cx += r.width * c.ratio
		}
		r.pdf.Line(x, y+rowH, x+r.width, y+rowH)
		r.pdf.SetXY(x, y+rowH)
	}
}

func (r *renderer) totalsBlock() {
	totals := billing.Compute(r.doc.Items, r.doc.TaxRate)
	boxW := r.width * 0.45
	x := r.pageW - r.opts.Margin - boxW
	rowH := r.lh(7)
	_, bottom := r.pdf.GetAutoPageBreak()
	if r.pdf.GetY()+4*rowH+6 > r.pageH-bottom {
		r.pdf.AddPage()
	}
	r.pdf.Ln(6)

	taxLabel := fmt.Sprintf("%s (%s%%)", r.t("tax"), strconv.FormatFloat(r.doc.TaxRate, 'f', -1, 64))
	rows := [][2]string{
		{r.t("subtotal"), r.money(totals.Subtotal)},
		{taxLabel, r.money(totals.Tax)},
	}
	for _, row := range rows {
		r.pdf.SetX(x)
		r.font("", 9)
		r.color(slate500)
		r.pdf.CellFormat(boxW*0.5, rowH, r.tr(row[0]), "", 0, "L", false, 0, "")
		r.color(slate900)
		r.pdf.CellFormat(boxW*0.5, rowH, r.tr(row[1]), "", 1, "R", false, 0, "")
	}

	r.pdf.SetX(x)
	r.fill(hexColor(r.theme.Primary))
	r.color(white)
	r.font("B", 11)
	r.pdf.CellFormat(boxW*0.5, r.lh(10), r.tr(" "+r.t("totalDue")), "", 0, "L", true, 0, "")
	r.pdf.CellFormat(boxW*0.5, r.lh(10), r.tr(r.money(totals.Total)+" "), "", 1, "R", true, 0, "")
}

func (r *renderer) notesBlock() {
	notes := strings.TrimSpace(r.doc.Notes)
	if notes == "" {
		notes = r.t("defaultNote")
	}
	r.pdf.Ln(10)
	r.pdf.SetX(r.opts.Margin)
	r.font("B", 8)
	r.color(hexColor(r.theme.Accent))
	r.pdf.CellFormat(r.width, r.lh(5), r.tr(strings.ToUpper(r.t("notes"))), "", 1, "L", false, 0, "")
	r.font("", 9)
	r.color(slate500)
	r.pdf.MultiCell(r.width, r.lh(4.5), r.tr(notes), "", "L", false)

	if terms := strings.TrimSpace(r.doc.Terms); terms != "" {
		r.pdf.Ln(3)
		r.font("B", 8)
		r.color(hexColor(r.theme.Accent))
		r.pdf.CellFormat(r.width, r.lh(5), r.tr(strings.ToUpper(r.t("terms"))), "", 1, "L", false, 0, "")
		r.font("", 9)
		r.color(slate500)
		r.pdf.MultiCell(r.width, r.lh(4.5), r.tr(terms), "", "L", false)
	}
}
