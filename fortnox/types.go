package fortnox

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Number holds a numeric field that Fortnox sends either as a JSON number or
// as a quoted string. Empty strings and null decode to the zero value.
type Number string

// UnmarshalJSON accepts 12, 12.5, "12", "12.5", "" and null
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}

	s := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
	}
	if s == "" {
		*n = ""
		return nil
	}
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return fmt.Errorf("invalid number %q: %w", s, err)
	}
	*n = Number(s)
	return nil
}

// MarshalJSON writes the value as a JSON number, or null when empty
func (n Number) MarshalJSON() ([]byte, error) {
	if n == "" {
		return []byte("null"), nil
	}
	return []byte(n), nil
}

// Float64 returns the value, zero when empty
func (n Number) Float64() float64 {
	f, _ := strconv.ParseFloat(string(n), 64)
	return f
}

// Int returns the value truncated to an integer, zero when empty
func (n Number) Int() int {
	if i, err := strconv.Atoi(string(n)); err == nil {
		return i
	}
	return int(n.Float64())
}

// String returns the raw text, "0" when empty
func (n Number) String() string {
	if n == "" {
		return "0"
	}
	return string(n)
}

// InvoiceSummary is one entry of an invoice listing
type InvoiceSummary struct {
	DocumentNumber         Number `json:"DocumentNumber"`
	CustomerName           string `json:"CustomerName"`
	CustomerNumber         string `json:"CustomerNumber"`
	InvoiceDate            string `json:"InvoiceDate"`
	DueDate                string `json:"DueDate"`
	Booked                 bool   `json:"Booked"`
	Cancelled              bool   `json:"Cancelled"`
	Credit                 bool   `json:"Credit"`
	CreditInvoiceReference Number `json:"CreditInvoiceReference"`
	Currency               string `json:"Currency"`
	CurrencyRate           Number `json:"CurrencyRate"`
	Total                  Number `json:"Total"`
	Balance                Number `json:"Balance"`
	OCR                    string `json:"OCR"`
	Sent                   bool   `json:"Sent"`
	YourOrderNumber        string `json:"YourOrderNumber"`
}

// MetaInformation carries the paging counters of a listing
type MetaInformation struct {
	TotalResources int `json:"@TotalResources"`
	TotalPages     int `json:"@TotalPages"`
	CurrentPage    int `json:"@CurrentPage"`
}

// InvoiceList is the decoded body of GET invoices/
type InvoiceList struct {
	Invoices []InvoiceSummary `json:"Invoices"`
	Meta     MetaInformation  `json:"MetaInformation"`
}

// CompanyInformation is the decoded body of GET companyinformation
type CompanyInformation struct {
	CompanyName        string `json:"CompanyName"`
	OrganizationNumber string `json:"OrganizationNumber"`
	City               string `json:"City"`
	CountryCode        string `json:"CountryCode"`
}

type companyInformationEnvelope struct {
	CompanyInformation CompanyInformation `json:"CompanyInformation"`
}
