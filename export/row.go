package export

import (
	"strconv"

	"github.com/s0up4200/fortnox-client/fortnox"
	"github.com/s0up4200/fortnox-client/orders"
)

// StatusNeedsRefundCheck replaces a completed order status when the invoice
// was credited
const StatusNeedsRefundCheck = "needs manual verification of refund"

// Header is the column order of every export format
var Header = []string{
	"orderId",
	"invoiceNr",
	"paymentMethod",
	"orderStatus",
	"booked",
	"totalSek",
	"totalCurrency",
	"currency",
	"currencyRate",
	"invoiceDate",
	"creditInvoiceReference",
}

// Row is one exported invoice joined with its order
type Row struct {
	OrderID                string
	InvoiceNumber          string
	PaymentMethod          string
	OrderStatus            string
	Booked                 bool
	TotalSEK               float64
	TotalCurrency          string
	Currency               string
	CurrencyRate           string
	InvoiceDate            string
	CreditInvoiceReference string
}

// BuildRow joins an invoice with its order
func BuildRow(inv fortnox.InvoiceSummary, order *orders.Order) Row {
	status := order.OrderStatus
	if status == orders.StatusCompleted && (inv.Credit || inv.CreditInvoiceReference.Int() > 0) {
		status = StatusNeedsRefundCheck
	}

	return Row{
		OrderID:                order.OrderID(),
		InvoiceNumber:          inv.DocumentNumber.String(),
		PaymentMethod:          order.PaymentMethod,
		OrderStatus:            status,
		Booked:                 inv.Booked,
		TotalSEK:               inv.Total.Float64() * inv.CurrencyRate.Float64(),
		TotalCurrency:          inv.Total.String(),
		Currency:               inv.Currency,
		CurrencyRate:           inv.CurrencyRate.String(),
		InvoiceDate:            inv.InvoiceDate,
		CreditInvoiceReference: inv.CreditInvoiceReference.String(),
	}
}

// Strings returns the row in Header order
func (r Row) Strings() []string {
	return []string{
		r.OrderID,
		r.InvoiceNumber,
		r.PaymentMethod,
		r.OrderStatus,
		strconv.FormatBool(r.Booked),
		strconv.FormatFloat(r.TotalSEK, 'f', -1, 64),
		r.TotalCurrency,
		r.Currency,
		r.CurrencyRate,
		r.InvoiceDate,
		r.CreditInvoiceReference,
	}
}
