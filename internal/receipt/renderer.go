// Package receipt renders a settled sale as a printable HTML receipt and,
// when a Chrome binary is available, as a PDF.
package receipt

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/fjod/go_pos/internal/domain"
	"github.com/shopspring/decimal"
)

//go:embed templates/receipt.html
var templateFS embed.FS

const (
	defaultStoreName = "Our Store"
	defaultCashier   = "POS System"
)

type Document struct {
	Sale     domain.SaleRecord
	Business domain.BusinessConfig
	Cashier  string
}

type line struct {
	Label    string
	Quantity int
	Price    float64
	Total    float64
}

type view struct {
	Document
	StoreName     string
	Invoice       string
	Date          string
	Time          string
	Year          int
	Lines         []line
	PaymentMethod string
	PriceType     string
	ShowCustomer  bool
}

type Renderer struct {
	tmpl     *template.Template
	location *time.Location
}

type Option func(*Renderer)

// WithLocation sets the zone used for the invoice number, date and time.
func WithLocation(loc *time.Location) Option {
	return func(r *Renderer) {
		r.location = loc
	}
}

func NewRenderer(currency string, opts ...Option) (*Renderer, error) {
	funcs := template.FuncMap{
		"money": func(v float64) string {
			return currency + decimal.NewFromFloat(v).StringFixed(2)
		},
		"rate": func(v float64) string {
			return decimal.NewFromFloat(v).String()
		},
	}

	tmpl, err := template.New("receipt.html").Funcs(funcs).ParseFS(templateFS, "templates/receipt.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse receipt template: %w", err)
	}

	r := &Renderer{tmpl: tmpl, location: time.UTC}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Render expects the sale with its text fields already decrypted. The business
// name stored on the sale wins over the current configuration.
func (r *Renderer) Render(doc Document) (string, error) {
	at := doc.Sale.CreatedAt.In(r.location)

	v := view{
		Document:      doc,
		StoreName:     doc.Business.Name,
		Invoice:       InvoiceNumber(at),
		Date:          at.Format("02/01/2006"),
		Time:          at.Format("15:04:05"),
		Year:          at.Year(),
		Lines:         make([]line, 0, len(doc.Sale.Items)),
		PaymentMethod: strings.ToUpper(string(doc.Sale.PaymentMethod)),
		PriceType:     strings.ToUpper(string(doc.Sale.PriceType)),
		ShowCustomer:  doc.Sale.Customer.Name != "" || doc.Sale.Customer.Phone != "",
	}
	if doc.Sale.BusinessName != "" {
		v.StoreName = doc.Sale.BusinessName
	}
	if v.StoreName == "" {
		v.StoreName = defaultStoreName
	}
	if v.Cashier == "" {
		v.Cashier = defaultCashier
	}
	if v.PaymentMethod == "" {
		v.PaymentMethod = strings.ToUpper(string(domain.PaymentCash))
	}

	for _, it := range doc.Sale.Items {
		v.Lines = append(v.Lines, line{
			Label:    itemLabel(it),
			Quantity: it.Quantity,
			Price:    it.Price,
			Total:    decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity))).InexactFloat64(),
		})
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("failed to execute receipt template: %w", err)
	}
	return buf.String(), nil
}

// InvoiceNumber has minute resolution, so two sales in the same minute share it.
func InvoiceNumber(t time.Time) string {
	return "INV-" + t.Format("20060102-1504")
}

func itemLabel(it domain.SaleItem) string {
	label := it.Name
	if it.Code != "" {
		label += " (" + it.Code + ")"
	}
	if it.Weight != "" {
		label += " [" + it.Weight + "]"
	}
	return label
}
