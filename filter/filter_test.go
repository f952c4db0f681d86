package filter

import (
	"errors"
	"testing"

	"github.com/expr-lang/expr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/fortnox-client/fortnox"
)

func testInvoice() fortnox.InvoiceSummary {
	return fortnox.InvoiceSummary{
		DocumentNumber:         "1001",
		CustomerName:           "Findus Kafé AB",
		InvoiceDate:            "2023-01-15",
		DueDate:                "2023-02-14",
		Booked:                 true,
		Currency:               "EUR",
		CurrencyRate:           "11.5",
		Total:                  "100",
		CreditInvoiceReference: "0",
	}
}

func TestCompileFilter(t *testing.T) {
	tests := []struct {
		name        string
		expression  string
		wantErr     bool
		errContains string
	}{
		{name: "valid expression", expression: `Year == 2023`},
		{name: "empty expression", expression: "  ", wantErr: true, errContains: "empty expression"},
		{name: "invalid syntax", expression: `contains(CustomerName, "unclosed`, wantErr: true},
		{name: "not boolean", expression: `1 + 2`, wantErr: true},
		{name: "complex expression", expression: `inPeriod(2023, 1) and Booked and TotalSEK > 1000 and not isCredited()`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := CompileFilter(tt.expression)
			if tt.wantErr {
				require.Error(t, err)
				var compErr *CompilationError
				require.ErrorAs(t, err, &compErr)
				if tt.errContains != "" {
					assert.Contains(t, err.Error(), tt.errContains)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expression, f.Expression())
		})
	}
}

func TestFilterEvaluation(t *testing.T) {
	inv := testInvoice()

	tests := []struct {
		expression string
		want       bool
	}{
		{`Year == 2023 && Month == 1`, true},
		{`Year == 2023 && Month == 2`, false},
		{`Day == 15`, true},
		{`inPeriod(2023, 1)`, true},
		{`inPeriod(2023, 0)`, true},
		{`inPeriod(2022, 1)`, false},
		{`invoicedBetween("2023-01-01", "2023-01-15")`, true},
		{`invoicedBetween("2023-01-16", "2023-01-31")`, false},
		{`DocumentNumber == 1001`, true},
		{`Booked and not Cancelled`, true},
		{`TotalSEK == 1150`, true},
		{`currencyIs("eur")`, true},
		{`isCredited()`, false},
		{`contains(CustomerName, "findus")`, true},
		{`startsWith(lower(CustomerName), "kafé")`, false},
		{`DueDate > InvoiceDate`, true},
		{`InvoiceDate < parseDate("2023-02-01")`, true},
	}

	for _, tt := range tests {
		t.Run(tt.expression, func(t *testing.T) {
			f, err := CompileFilter(tt.expression)
			require.NoError(t, err)

			got, err := f.Evaluate(inv)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsCredited(t *testing.T) {
	f, err := CompileFilter(`isCredited()`)
	require.NoError(t, err)

	credit := testInvoice()
	credit.Credit = true
	got, err := f.Evaluate(credit)
	require.NoError(t, err)
	assert.True(t, got)

	referenced := testInvoice()
	referenced.CreditInvoiceReference = "1050"
	got, err = f.Evaluate(referenced)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestFilterMissingDate(t *testing.T) {
	inv := testInvoice()
	inv.InvoiceDate = ""

	f, err := CompileFilter(PeriodExpression(2023, 1))
	require.NoError(t, err)

	got, err := f.Evaluate(inv)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestFilterEvaluationError(t *testing.T) {
	compiler := NewExprCompiler(WithCustomFunctions(map[string]any{
		"fail": func() (bool, error) { return false, errors.New("boom") },
	}))

	f, err := compiler.Compile(`fail()`)
	require.NoError(t, err)

	_, err = f.Evaluate(testInvoice())
	require.Error(t, err)
	var evalErr *EvaluationError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, "1001", evalErr.DocumentNumber)
}

func TestCustomFunctions(t *testing.T) {
	compiler := NewExprCompiler(WithCustomFunctions(map[string]any{
		"always":     func() bool { return true },
		"isExport":   func(currency string) bool { return currency != "SEK" },
		"bigInvoice": func(total float64) bool { return total > 1000 },
	}))

	tests := []struct {
		expression string
		want       bool
	}{
		{expression: `always()`, want: true},
		{expression: `always() && Booked`, want: true},
		{expression: `isExport(Currency)`, want: true},
		{expression: `bigInvoice(Total)`, want: false},
		{expression: `!bigInvoice(Total) && always()`, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.expression, func(t *testing.T) {
			f, err := compiler.Compile(tt.expression)
			require.NoError(t, err)

			got, err := f.Evaluate(testInvoice())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPeriodExpression(t *testing.T) {
	assert.Equal(t, "Year == 2023 && Month == 1", PeriodExpression(2023, 1))
	assert.Equal(t, "Year == 2023", PeriodExpression(2023, 0))
	assert.Equal(t, "Year == 2023", PeriodExpression(2023, 13))
}

func TestCompilerCache(t *testing.T) {
	compiler := NewExprCompiler(WithCache(2))

	first, err := compiler.Compile("Booked")
	require.NoError(t, err)
	again, err := compiler.Compile("  Booked ")
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, 1, compiler.Size())

	_, err = compiler.Compile("Credit")
	require.NoError(t, err)
	_, err = compiler.Compile("Sent")
	require.NoError(t, err)
	assert.Equal(t, 2, compiler.Size())

	// "Booked" was least recently used and has been evicted
	evicted, err := compiler.Compile("Booked")
	require.NoError(t, err)
	assert.NotSame(t, first, evicted)

	compiler.Clear()
	assert.Equal(t, 0, compiler.Size())

	uncached := NewExprCompiler()
	_, err = uncached.Compile("Booked")
	require.NoError(t, err)
	assert.Equal(t, 0, uncached.Size())
}

func TestLRUCache(t *testing.T) {
	c := newLRUCache(2)
	a := &exprFilter{expression: "a"}
	b := &exprFilter{expression: "b"}

	c.Put("a", a)
	c.Put("b", b)
	_, ok := c.Get("a") // a becomes most recent
	require.True(t, ok)

	c.Put("c", &exprFilter{expression: "c"})
	_, ok = c.Get("b")
	assert.False(t, ok)
	got, ok := c.Get("a")
	assert.True(t, ok)
	assert.Same(t, a, got)

	replacement := &exprFilter{expression: "a2"}
	c.Put("a", replacement)
	got, _ = c.Get("a")
	assert.Same(t, replacement, got)
	assert.Equal(t, 2, c.Size())
}

// expr must accept the helper map as a compile environment
func TestHelperEnvironmentCompiles(t *testing.T) {
	_, err := expr.Compile(`contains("a", "a")`, expr.Env(createHelperFunctions()), expr.AsBool())
	require.NoError(t, err)
}
