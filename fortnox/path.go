package fortnox

import (
	"net/url"
	"strconv"
	"unicode"
	"unicode/utf8"
)

// Resource names as they appear in request paths
const (
	ResourceInvoices           = "invoices"
	ResourceInvoicePayments    = "invoicepayments"
	ResourceVouchers           = "vouchers"
	ResourceAccounts           = "accounts"
	ResourceFinancialYears     = "financialyears"
	ResourceCustomers          = "customers"
	ResourceArticles           = "articles"
	ResourceCompanyInformation = "companyinformation"
)

// Mode selects between read addressing and the create envelope variant
type Mode int

const (
	ModeRead Mode = iota
	ModeCreate
)

// Ref identifies a resource collection or a single document, optionally
// within a voucher series
type Ref struct {
	Resource string
	Series   string
	Number   int

	document bool
}

// Collection refers to all documents of a resource
func Collection(resource string) Ref {
	return Ref{Resource: resource}
}

// Document refers to document n of a resource
func Document(resource string, n int) Ref {
	return Ref{Resource: resource, Number: n, document: true}
}

// VoucherSeries refers to all vouchers in a series
func VoucherSeries(series string) Ref {
	return Ref{Resource: ResourceVouchers, Series: series}
}

// VoucherDocument refers to voucher n of a series
func VoucherDocument(series string, n int) Ref {
	return Ref{Resource: ResourceVouchers, Series: series, Number: n, document: true}
}

// IsDocument reports whether the ref names a single document
func (r Ref) IsDocument() bool {
	return r.document
}

type addressing func(r Ref, mode Mode) (string, error)

// addressingByResource holds resources that do not use plain addressing
var addressingByResource = map[string]addressing{
	ResourceVouchers: voucherPath,
}

// BuildPath maps a ref to a path relative to the API base URL
func BuildPath(r Ref, mode Mode) (string, error) {
	if r.Resource == "" {
		return "", invalid("resource", r.Resource, "must not be empty")
	}
	if r.document {
		if err := checkNumber("document number", r.Number); err != nil {
			return "", err
		}
	}

	if build, ok := addressingByResource[r.Resource]; ok {
		return build(r, mode)
	}
	return plainPath(r), nil
}

func plainPath(r Ref) string {
	return r.Resource + "/" + numberSegment(r)
}

func voucherPath(r Ref, mode Mode) (string, error) {
	if err := validateSeries(r.Series); err != nil {
		return "", err
	}

	series := url.PathEscape(r.Series)
	if mode == ModeCreate {
		return series + "/" + numberSegment(r), nil
	}
	if r.document {
		return ResourceVouchers + "/" + series + "/" + strconv.Itoa(r.Number), nil
	}
	return ResourceVouchers + "/sublist/" + series, nil
}

func numberSegment(r Ref) string {
	if !r.document {
		return ""
	}
	return strconv.Itoa(r.Number)
}

// validateSeries requires the series to start with an uppercase letter,
// which includes Å, Ä and Ö
func validateSeries(series string) error {
	if series == "" {
		return invalid("voucher series", series, "is required")
	}
	first, _ := utf8.DecodeRuneInString(series)
	if !unicode.IsLetter(first) || !unicode.IsUpper(first) {
		return invalid("voucher series", series, "must start with an uppercase letter")
	}
	return nil
}
