package fortnox

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/rs/zerolog"

	"github.com/s0up4200/fortnox-client/credentials"
	"github.com/s0up4200/fortnox-client/ratelimit"
)

const (
	DefaultAPIURL   = "https://api.fortnox.se/3/"
	DefaultTokenURL = "https://apps.fortnox.se/oauth-v1/token"
	DefaultTimeout  = 30 * time.Second
)

// Option configures a Client
type Option func(*clientOptions)

type clientOptions struct {
	apiURL     string
	tokenURL   string
	provider   string
	timeout    time.Duration
	limit      int
	window     time.Duration
	limiter    Waiter
	httpClient *http.Client
	degrade    bool
	now        func() time.Time
}

// WithAPIURL sets the REST base URL
func WithAPIURL(u string) Option {
	return func(o *clientOptions) { o.apiURL = u }
}

// WithTokenURL sets the OAuth token endpoint
func WithTokenURL(u string) Option {
	return func(o *clientOptions) { o.tokenURL = u }
}

// WithProvider sets the credential record key
func WithProvider(p string) Option {
	return func(o *clientOptions) { o.provider = p }
}

// WithTimeout sets the per-request timeout. Non-positive values keep the
// default.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithRateLimit sets the number of requests allowed per window
func WithRateLimit(limit int, window time.Duration) Option {
	return func(o *clientOptions) {
		o.limit = limit
		o.window = window
	}
}

// WithLimiter replaces the rate limiter, e.g. to share one across clients
func WithLimiter(l Waiter) Option {
	return func(o *clientOptions) { o.limiter = l }
}

// WithHTTPClient sets the HTTP client. Its timeout is left untouched.
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = c }
}

// WithDegradedRefresh makes a refused token refresh fall through with an
// empty token, so the request itself fails with a StatusError
func WithDegradedRefresh(enabled bool) Option {
	return func(o *clientOptions) { o.degrade = enabled }
}

// WithClock replaces the time source used for token expiry checks
func WithClock(now func() time.Time) Option {
	return func(o *clientOptions) { o.now = now }
}

// Client is the Fortnox API facade. It is safe for concurrent use.
type Client struct {
	exec   *Executor
	tokens *TokenManager
	store  credentials.Store
	logger zerolog.Logger
}

// NewClient creates a client reading and refreshing tokens through store
func NewClient(store credentials.Store, logger zerolog.Logger, opts ...Option) (*Client, error) {
	if store == nil {
		return nil, fmt.Errorf("credential store is required")
	}

	o := &clientOptions{
		apiURL:   DefaultAPIURL,
		tokenURL: DefaultTokenURL,
		provider: credentials.ProviderFortnox,
		timeout:  DefaultTimeout,
		limit:    ratelimit.DefaultLimit,
		window:   ratelimit.DefaultWindow,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.apiURL == "" {
		return nil, fmt.Errorf("fortnox API URL is required")
	}
	if o.tokenURL == "" {
		return nil, fmt.Errorf("fortnox token URL is required")
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = cleanhttp.DefaultPooledClient()
		httpClient.Timeout = o.timeout
	}

	limiter := o.limiter
	if limiter == nil {
		limiter = ratelimit.New(o.limit, o.window)
	}

	c := &Client{store: store, logger: logger}
	c.exec = NewExecutor(o.apiURL, httpClient, limiter, nil, logger)

	tmOpts := []TokenManagerOption{WithDegradedTokenRefresh(o.degrade)}
	if o.now != nil {
		tmOpts = append(tmOpts, WithTokenClock(o.now))
	}
	c.tokens = NewTokenManager(store, o.provider, o.tokenURL, httpClient, c.probe, logger, tmOpts...)
	c.exec.tokens = c.tokens

	return c, nil
}

// probe checks a token with an unvalidated companyinformation request
func (c *Client) probe(ctx context.Context, token string) (int, error) {
	resp, err := c.exec.Do(ctx, Request{
		Method:    http.MethodGet,
		Path:      ResourceCompanyInformation,
		Token:     token,
		Unchecked: true,
	})
	if err != nil {
		return 0, err
	}
	return resp.StatusCode, nil
}

// Tokens exposes the token manager
func (c *Client) Tokens() *TokenManager {
	return c.tokens
}

// Do sends an arbitrary request through the limiter and token manager
func (c *Client) Do(ctx context.Context, r Request) (*Response, error) {
	return c.exec.Do(ctx, r)
}

// Close releases resources held by the credential store
func (c *Client) Close(ctx context.Context) error {
	if closer, ok := c.store.(credentials.Closer); ok {
		return closer.Close(ctx)
	}
	return nil
}

func (c *Client) list(ctx context.Context, ref Ref, params *ResourceParams) (*Response, error) {
	params, err := resolveParams(params)
	if err != nil {
		return nil, err
	}
	path, err := BuildPath(ref, ModeRead)
	if err != nil {
		return nil, err
	}
	return c.exec.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: params.Values()})
}

func (c *Client) send(ctx context.Context, method string, ref Ref, suffix string, body any) (*Response, error) {
	path, err := BuildPath(ref, ModeRead)
	if err != nil {
		return nil, err
	}
	return c.exec.Do(ctx, Request{Method: method, Path: path + suffix, Body: body})
}

// Invoices lists invoices; nil params means DefaultResourceParams
func (c *Client) Invoices(ctx context.Context, params *ResourceParams) (*Response, error) {
	return c.list(ctx, Collection(ResourceInvoices), params)
}

// ListInvoicesPage lists one page of invoices and decodes it
func (c *Client) ListInvoicesPage(ctx context.Context, params *ResourceParams) (*InvoiceList, error) {
	resp, err := c.Invoices(ctx, params)
	if err != nil {
		return nil, err
	}
	var list InvoiceList
	if err := resp.Decode(&list); err != nil {
		return nil, err
	}
	return &list, nil
}

// Invoice fetches invoice n
func (c *Client) Invoice(ctx context.Context, n int) (*Response, error) {
	return c.send(ctx, http.MethodGet, Document(ResourceInvoices, n), "", nil)
}

// UploadInvoice creates an invoice
func (c *Client) UploadInvoice(ctx context.Context, invoice any) (*Response, error) {
	return c.send(ctx, http.MethodPost, Collection(ResourceInvoices), "", invoice)
}

// UpdateInvoice replaces fields of invoice n
func (c *Client) UpdateInvoice(ctx context.Context, n int, invoice any) (*Response, error) {
	return c.send(ctx, http.MethodPut, Document(ResourceInvoices, n), "", invoice)
}

// BookkeepInvoice books invoice n. With checkStatus false any non-429
// response is returned without validation.
func (c *Client) BookkeepInvoice(ctx context.Context, n int, checkStatus bool) (*Response, error) {
	path, err := BuildPath(Document(ResourceInvoices, n), ModeRead)
	if err != nil {
		return nil, err
	}
	return c.exec.Do(ctx, Request{
		Method:    http.MethodPut,
		Path:      path + "/bookkeep",
		Unchecked: !checkStatus,
	})
}

// CancelInvoice cancels invoice n
func (c *Client) CancelInvoice(ctx context.Context, n int) (*Response, error) {
	return c.send(ctx, http.MethodPut, Document(ResourceInvoices, n), "/cancel", nil)
}

// CreateCreditInvoice credits invoice n
func (c *Client) CreateCreditInvoice(ctx context.Context, n int) (*Response, error) {
	return c.send(ctx, http.MethodPut, Document(ResourceInvoices, n), "/credit", nil)
}

// InvoicePayments lists invoice payments
func (c *Client) InvoicePayments(ctx context.Context, params *ResourceParams) (*Response, error) {
	return c.list(ctx, Collection(ResourceInvoicePayments), params)
}

// InvoicePayment fetches invoice payment n
func (c *Client) InvoicePayment(ctx context.Context, n int) (*Response, error) {
	return c.send(ctx, http.MethodGet, Document(ResourceInvoicePayments, n), "", nil)
}

// UploadInvoicePayment creates a payment wrapped in its envelope
func (c *Client) UploadInvoicePayment(ctx context.Context, payment any) (*Response, error) {
	return c.exec.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   ResourceInvoicePayments,
		Body:   map[string]any{"InvoicePayment": payment},
	})
}

// UpdateInvoicePayment replaces payment n wrapped in its envelope
func (c *Client) UpdateInvoicePayment(ctx context.Context, n int, payment any) (*Response, error) {
	return c.send(ctx, http.MethodPut, Document(ResourceInvoicePayments, n), "", map[string]any{"InvoicePayment": payment})
}

// RemoveInvoicePayment deletes payment n
func (c *Client) RemoveInvoicePayment(ctx context.Context, n int) (*Response, error) {
	return c.send(ctx, http.MethodDelete, Document(ResourceInvoicePayments, n), "", nil)
}

// Vouchers lists the vouchers of a series
func (c *Client) Vouchers(ctx context.Context, series string, params *ResourceParams) (*Response, error) {
	return c.list(ctx, VoucherSeries(series), params)
}

// Voucher fetches voucher n of a series
func (c *Client) Voucher(ctx context.Context, series string, n int) (*Response, error) {
	return c.send(ctx, http.MethodGet, VoucherDocument(series, n), "", nil)
}

// UploadVoucher creates a voucher wrapped in its envelope
func (c *Client) UploadVoucher(ctx context.Context, voucher any) (*Response, error) {
	return c.exec.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   ResourceVouchers,
		Body:   map[string]any{"Voucher": voucher},
	})
}

// Accounts lists accounts
func (c *Client) Accounts(ctx context.Context, params *ResourceParams) (*Response, error) {
	return c.list(ctx, Collection(ResourceAccounts), params)
}

// Account fetches account n
func (c *Client) Account(ctx context.Context, n int) (*Response, error) {
	return c.send(ctx, http.MethodGet, Document(ResourceAccounts, n), "", nil)
}

// FinancialYears lists financial years
func (c *Client) FinancialYears(ctx context.Context, params *ResourceParams) (*Response, error) {
	return c.list(ctx, Collection(ResourceFinancialYears), params)
}

// FinancialYear fetches financial year n
func (c *Client) FinancialYear(ctx context.Context, n int) (*Response, error) {
	return c.send(ctx, http.MethodGet, Document(ResourceFinancialYears, n), "", nil)
}

// Customers lists customers
func (c *Client) Customers(ctx context.Context, params *ResourceParams) (*Response, error) {
	return c.list(ctx, Collection(ResourceCustomers), params)
}

// Customer fetches customer n
func (c *Client) Customer(ctx context.Context, n int) (*Response, error) {
	return c.send(ctx, http.MethodGet, Document(ResourceCustomers, n), "", nil)
}

// UploadCustomer creates a customer
func (c *Client) UploadCustomer(ctx context.Context, customer any) (*Response, error) {
	return c.send(ctx, http.MethodPost, Collection(ResourceCustomers), "", customer)
}

// DeleteCustomer deletes customer n
func (c *Client) DeleteCustomer(ctx context.Context, n int) (*Response, error) {
	return c.send(ctx, http.MethodDelete, Document(ResourceCustomers, n), "", nil)
}

// Articles lists articles
func (c *Client) Articles(ctx context.Context, params *ResourceParams) (*Response, error) {
	return c.list(ctx, Collection(ResourceArticles), params)
}

// UploadArticle creates an article from a caller-built body
func (c *Client) UploadArticle(ctx context.Context, article any) (*Response, error) {
	return c.send(ctx, http.MethodPost, Collection(ResourceArticles), "", article)
}

// CreateArticle creates an article with a number and description
func (c *Client) CreateArticle(ctx context.Context, number, description string) (*Response, error) {
	if number == "" {
		return nil, invalid("article number", number, "must not be empty")
	}
	return c.UploadArticle(ctx, map[string]any{
		"Article": map[string]string{
			"ArticleNumber": number,
			"Description":   description,
		},
	})
}

// CompanyInformation fetches the company record of the token's tenant
func (c *Client) CompanyInformation(ctx context.Context) (*Response, error) {
	return c.exec.Do(ctx, Request{Method: http.MethodGet, Path: ResourceCompanyInformation})
}

// Company fetches and decodes the company record
func (c *Client) Company(ctx context.Context) (*CompanyInformation, error) {
	resp, err := c.CompanyInformation(ctx)
	if err != nil {
		return nil, err
	}
	var env companyInformationEnvelope
	if err := resp.Decode(&env); err != nil {
		return nil, err
	}
	return &env.CompanyInformation, nil
}
