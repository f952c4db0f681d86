package fortnox

import (
	"context"
)

// API defines the interface for Fortnox operations
type API interface {
	Invoices(ctx context.Context, params *ResourceParams) (*Response, error)
	ListInvoicesPage(ctx context.Context, params *ResourceParams) (*InvoiceList, error)
	Invoice(ctx context.Context, n int) (*Response, error)
	UploadInvoice(ctx context.Context, invoice any) (*Response, error)
	UpdateInvoice(ctx context.Context, n int, invoice any) (*Response, error)
	BookkeepInvoice(ctx context.Context, n int, checkStatus bool) (*Response, error)
	CancelInvoice(ctx context.Context, n int) (*Response, error)
	CreateCreditInvoice(ctx context.Context, n int) (*Response, error)

	InvoicePayments(ctx context.Context, params *ResourceParams) (*Response, error)
	InvoicePayment(ctx context.Context, n int) (*Response, error)
	UploadInvoicePayment(ctx context.Context, payment any) (*Response, error)
	UpdateInvoicePayment(ctx context.Context, n int, payment any) (*Response, error)
	RemoveInvoicePayment(ctx context.Context, n int) (*Response, error)

	Vouchers(ctx context.Context, series string, params *ResourceParams) (*Response, error)
	Voucher(ctx context.Context, series string, n int) (*Response, error)
	UploadVoucher(ctx context.Context, voucher any) (*Response, error)

	Accounts(ctx context.Context, params *ResourceParams) (*Response, error)
	Account(ctx context.Context, n int) (*Response, error)
	FinancialYears(ctx context.Context, params *ResourceParams) (*Response, error)
	FinancialYear(ctx context.Context, n int) (*Response, error)

	Customers(ctx context.Context, params *ResourceParams) (*Response, error)
	Customer(ctx context.Context, n int) (*Response, error)
	UploadCustomer(ctx context.Context, customer any) (*Response, error)
	DeleteCustomer(ctx context.Context, n int) (*Response, error)

	Articles(ctx context.Context, params *ResourceParams) (*Response, error)
	UploadArticle(ctx context.Context, article any) (*Response, error)
	CreateArticle(ctx context.Context, number, description string) (*Response, error)

	CompanyInformation(ctx context.Context) (*Response, error)
	Company(ctx context.Context) (*CompanyInformation, error)
}

// InvoicePager fetches one page of invoices
type InvoicePager interface {
	ListInvoicesPage(ctx context.Context, params *ResourceParams) (*InvoiceList, error)
}

var (
	_ API          = (*Client)(nil)
	_ InvoicePager = (*Client)(nil)
)
