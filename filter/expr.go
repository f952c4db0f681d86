package filter

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/s0up4200/fortnox-client/fortnox"
)

const dateLayout = "2006-01-02"

// DefaultCacheSize is the number of compiled filters kept by CompileFilter
const DefaultCacheSize = 64

var defaultCompiler = NewExprCompiler(WithCache(DefaultCacheSize))

// CompileFilter compiles an expression with the shared caching compiler
func CompileFilter(expression string) (CompiledFilter, error) {
	return defaultCompiler.Compile(expression)
}

// PeriodExpression builds the expression matching invoices dated in year, or
// in one month of year when month is between 1 and 12
func PeriodExpression(year, month int) string {
	if month >= 1 && month <= 12 {
		return fmt.Sprintf("Year == %d && Month == %d", year, month)
	}
	return fmt.Sprintf("Year == %d", year)
}

// exprFilter implements CompiledFilter using the expr language
type exprFilter struct {
	expression string
	program    *vm.Program
	funcs      map[string]any
}

// ExprCompilerOption configures an expr compiler
type ExprCompilerOption func(*exprCompiler)

// WithCache enables filter caching with the specified size
func WithCache(size int) ExprCompilerOption {
	return func(c *exprCompiler) {
		if size > 0 {
			c.cache = newLRUCache(size)
		}
	}
}

// WithCustomFunctions adds custom helper functions, available at compile
// and run time
func WithCustomFunctions(funcs map[string]any) ExprCompilerOption {
	return func(c *exprCompiler) {
		maps.Copy(c.helperFuncs, funcs)
		maps.Copy(c.customFuncs, funcs)
	}
}

// NewExprCompiler creates a new expr-based filter compiler
func NewExprCompiler(opts ...ExprCompilerOption) CachingCompiler {
	c := &exprCompiler{
		helperFuncs: createHelperFunctions(),
		customFuncs: make(map[string]any),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type exprCompiler struct {
	helperFuncs map[string]any
	customFuncs map[string]any
	cache       *lruCache
}

// Compile compiles an expression into an executable filter
func (c *exprCompiler) Compile(expression string) (CompiledFilter, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, &CompilationError{
			Expression: expression,
			Reason:     "empty expression",
		}
	}

	if c.cache != nil {
		if cached, ok := c.cache.Get(expression); ok {
			return cached, nil
		}
	}

	program, err := expr.Compile(expression,
		expr.Env(c.helperFuncs),
		expr.AllowUndefinedVariables(), // invoice fields are bound at run time
		expr.AsBool(),
	)
	if err != nil {
		return nil, &CompilationError{
			Expression: expression,
			Reason:     "failed to compile expression",
			Err:        err,
		}
	}

	f := &exprFilter{
		expression: expression,
		program:    program,
		funcs:      c.customFuncs,
	}
	if c.cache != nil {
		c.cache.Put(expression, f)
	}
	return f, nil
}

// Clear removes all cached filters
func (c *exprCompiler) Clear() {
	if c.cache != nil {
		c.cache.Clear()
	}
}

// Size returns the number of cached filters
func (c *exprCompiler) Size() int {
	if c.cache != nil {
		return c.cache.Size()
	}
	return 0
}

// Evaluate evaluates the filter against an invoice
func (f *exprFilter) Evaluate(invoice fortnox.InvoiceSummary) (bool, error) {
	env := createRuntimeEnvironment(invoice)
	maps.Copy(env, f.funcs)

	result, err := expr.Run(f.program, env)
	if err != nil {
		return false, &EvaluationError{
			Expression:     f.expression,
			DocumentNumber: invoice.DocumentNumber.String(),
			Reason:         "failed to run expression",
			Err:            err,
		}
	}
	return result.(bool), nil
}

// Expression returns the original expression
func (f *exprFilter) Expression() string {
	return f.expression
}

func createHelperFunctions() map[string]any {
	funcs := make(map[string]any, 16)
	addHelperFunctions(funcs)
	return funcs
}

// addHelperFunctions adds the invoice-independent helpers
func addHelperFunctions(env map[string]any) {
	env["daysSince"] = func(t time.Time) int {
		return int(time.Since(t).Hours() / 24)
	}
	env["daysAgo"] = func(days int) time.Time {
		return time.Now().AddDate(0, 0, -days)
	}
	env["monthsAgo"] = func(months int) time.Time {
		return time.Now().AddDate(0, -months, 0)
	}
	env["parseDate"] = func(dateStr string) time.Time {
		t, _ := time.Parse(dateLayout, dateStr)
		return t
	}
	env["contains"] = func(str, substr string) bool {
		return strings.Contains(strings.ToLower(str), strings.ToLower(substr))
	}
	env["startsWith"] = func(str, prefix string) bool {
		return strings.HasPrefix(strings.ToLower(str), strings.ToLower(prefix))
	}
	env["lower"] = strings.ToLower
	env["upper"] = strings.ToUpper
	env["now"] = time.Now
}

// createRuntimeEnvironment binds the invoice fields and invoice helpers
func createRuntimeEnvironment(inv fortnox.InvoiceSummary) map[string]any {
	env := make(map[string]any, 48)
	addHelperFunctions(env)

	invoiceDate, _ := time.Parse(dateLayout, inv.InvoiceDate)
	dueDate, _ := time.Parse(dateLayout, inv.DueDate)
	total := inv.Total.Float64()
	rate := inv.CurrencyRate.Float64()
	creditRef := inv.CreditInvoiceReference.Int()

	env["Invoice"] = inv
	env["DocumentNumber"] = inv.DocumentNumber.Int()
	env["InvoiceDate"] = invoiceDate
	env["DueDate"] = dueDate
	env["Year"] = invoiceDate.Year()
	env["Month"] = int(invoiceDate.Month())
	env["Day"] = invoiceDate.Day()
	env["Booked"] = inv.Booked
	env["Cancelled"] = inv.Cancelled
	env["Credit"] = inv.Credit
	env["Sent"] = inv.Sent
	env["Currency"] = inv.Currency
	env["CurrencyRate"] = rate
	env["Total"] = total
	env["TotalSEK"] = total * rate
	env["Balance"] = inv.Balance.Float64()
	env["CreditInvoiceReference"] = creditRef
	env["CustomerName"] = inv.CustomerName
	env["CustomerNumber"] = inv.CustomerNumber
	env["YourOrderNumber"] = inv.YourOrderNumber
	env["OCR"] = inv.OCR

	if invoiceDate.IsZero() {
		env["Year"], env["Month"], env["Day"] = 0, 0, 0
	}

	env["inPeriod"] = func(year, month int) bool {
		if invoiceDate.IsZero() || invoiceDate.Year() != year {
			return false
		}
		return month == 0 || int(invoiceDate.Month()) == month
	}
	env["invoicedBetween"] = func(from, to string) bool {
		start, err1 := time.Parse(dateLayout, from)
		end, err2 := time.Parse(dateLayout, to)
		if err1 != nil || err2 != nil || invoiceDate.IsZero() {
			return false
		}
		return !invoiceDate.Before(start) && !invoiceDate.After(end)
	}
	env["isCredited"] = func() bool {
		return inv.Credit || creditRef > 0
	}
	env["currencyIs"] = func(code string) bool {
		return strings.EqualFold(inv.Currency, code)
	}

	return env
}
