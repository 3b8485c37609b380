package service

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-pdf/fpdf"

	apperrors "github.com/recoverydesk/esign/internal/errors"
	"github.com/recoverydesk/esign/internal/signature/domain"
)

const (
	pageMargin      = 18.0
	lineHeight      = 6.0
	labelWidth      = 62.0
	signatureWidth  = 70.0
	signatureHeight = 30.0
	emptyValue      = "-"

	// SignaturePlaceholder replaces a signature image that cannot be embedded.
	SignaturePlaceholder = "[Signature image could not be rendered. The captured signature is retained in the signature record.]"
)

// DocumentInput is everything the generator needs: the form data, the case context
// and the signature.
type DocumentInput struct {
	CaseNumber     string
	DocumentType   domain.DocumentType
	Fields         []domain.Field
	Answers        map[string]string
	SignerName     string
	SignedAt       time.Time
	IPAddress      string
	SignatureImage []byte
}

// NewDocumentInput assembles the generator input from a token and its signature record.
func NewDocumentInput(token *domain.Token, record *domain.SignatureRecord) *DocumentInput {
	return &DocumentInput{
		CaseNumber:     token.CaseNumber,
		DocumentType:   token.DocumentType,
		Fields:         token.Prefill.Fields(),
		Answers:        record.Answers,
		SignerName:     record.SignerName,
		SignedAt:       record.SignedAt,
		IPAddress:      record.IPAddress,
		SignatureImage: record.SignatureImage,
	}
}

// PDFGenerator renders signed documents as A4 PDFs with a fixed section order.
type PDFGenerator struct {
	timeout time.Duration
}

// NewPDFGenerator creates a generator. A zero timeout disables the bound.
func NewPDFGenerator(timeout time.Duration) *PDFGenerator {
	return &PDFGenerator{timeout: timeout}
}

type renderResult struct {
	data []byte
	err  error
}

// Generate renders input. Exceeding the timeout is a generation failure like any
// other; the abandoned render finishes in the background and is discarded.
func (g *PDFGenerator) Generate(ctx context.Context, input *DocumentInput) ([]byte, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	done := make(chan renderResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- renderResult{err: fmt.Errorf("render panic: %v", r)}
			}
		}()
		data, err := render(input)
		done <- renderResult{data: data, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, apperrors.Wrap(domain.ErrGenerationFailed, ctx.Err().Error())
	case result := <-done:
		if result.err != nil {
			return nil, apperrors.Wrap(domain.ErrGenerationFailed, result.err.Error())
		}
		return result.data, nil
	}
}

func render(input *DocumentInput) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	title := input.DocumentType.Title()
	pdf.SetTitle(title, true)
	pdf.SetSubject("Case "+input.CaseNumber, true)
	pdf.SetCreator("esign", true)
	pdf.SetCreationDate(input.SignedAt)
	pdf.SetModificationDate(input.SignedAt)
	pdf.SetCatalogSort(true)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 5, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, lineHeight, tr("Case "+input.CaseNumber), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	for _, section := range domain.SectionOrder {
		rows := sectionRows(input, section)
		if len(rows) == 0 {
			continue
		}
		heading(pdf, tr(section.Title()))
		for _, row := range rows {
			pdf.SetFont("Helvetica", "B", 10)
			pdf.CellFormat(labelWidth, lineHeight, tr(row[0]), "", 0, "L", false, 0, "")
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(0, lineHeight, tr(row[1]), "", "L", false)
		}
		pdf.Ln(3)
	}

	heading(pdf, "Signature")
	signatureBlock(pdf, tr, input)

	if err := pdf.Error(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// sectionRows returns label/value pairs of a section. Submitted answers that are not
// prefill fields are listed under the last section, sorted by key.
func sectionRows(input *DocumentInput, section domain.Section) [][2]string {
	var rows [][2]string
	known := make(map[string]struct{}, len(input.Fields))
	for _, field := range input.Fields {
		known[field.Key] = struct{}{}
		if field.Section != section {
			continue
		}
		value := field.Value
		if answer, ok := input.Answers[field.Key]; ok && answer != "" {
			value = answer
		}
		if value == "" {
			value = emptyValue
		}
		rows = append(rows, [2]string{field.Label, value})
	}

	if section != domain.SectionOther {
		return rows
	}

	extra := make([]string, 0, len(input.Answers))
	for key, value := range input.Answers {
		if _, ok := known[key]; !ok && value != "" {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	for _, key := range extra {
		rows = append(rows, [2]string{key, input.Answers[key]})
	}
	return rows
}

func heading(pdf *fpdf.Fpdf, text string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, text, "B", 1, "L", false, 0, "")
	pdf.Ln(2)
}

// signatureBlock embeds the signature image, or a placeholder when the image is
// unusable. A bad image never aborts the document.
func signatureBlock(pdf *fpdf.Fpdf, tr func(string) string, input *DocumentInput) {
	_, pageHeight := pdf.GetPageSize()
	if pdf.GetY()+signatureHeight+3*lineHeight > pageHeight-pageMargin {
		pdf.AddPage()
	}

	if !embedSignature(pdf, input.SignatureImage) {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.MultiCell(0, lineHeight, SignaturePlaceholder, "1", "L", false)
	}

	pdf.Ln(2)
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, lineHeight, tr("Signed by: "+input.SignerName), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, lineHeight, "Signed at: "+input.SignedAt.UTC().Format(time.RFC1123), "", 1, "L", false, 0, "")
	if input.IPAddress != "" {
		pdf.CellFormat(0, lineHeight, "IP address: "+input.IPAddress, "", 1, "L", false, 0, "")
	}
}

func embedSignature(pdf *fpdf.Fpdf, image []byte) (ok bool) {
	imageType := imageTypeOf(image)
	if imageType == "" {
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			pdf.ClearError()
			ok = false
		}
	}()

	options := fpdf.ImageOptions{ImageType: imageType}
	pdf.RegisterImageOptionsReader("signature", options, bytes.NewReader(image))
	if !pdf.Ok() {
		pdf.ClearError()
		return false
	}

	pdf.ImageOptions("signature", pdf.GetX(), pdf.GetY(), signatureWidth, signatureHeight, true, options, 0, "")
	if !pdf.Ok() {
		pdf.ClearError()
		return false
	}
	return true
}

func imageTypeOf(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	switch http.DetectContentType(data) {
	case "image/png":
		return "png"
	case "image/jpeg":
		return "jpg"
	case "image/gif":
		return "gif"
	default:
		return ""
	}
}
