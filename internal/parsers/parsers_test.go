package parsers

import (
	"testing"
	"time"

	"github.com/mikey/mail-ledger/internal/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bacBody = `Hola MIGUEL
A continuacion le detallamos la transaccion realizada:
Comercio:
 SUPER   PALI  HEREDIA
Ciudad y pais:
HEREDIA, Costa Rica
Fecha:
Mar 5, 2024, 14:35
Monto:
CRC 12,500.00
Tipo de Transaccion:
COMPRA`

const promericaBody = `Comprobante de compra
Comercio
 AUTOMERCADO     ESCAZU
Tipo de Comercio
 SUPERMERCADOS
Fecha/hora 05 Mar 2024 / 14:35
Monto
 USD: 45,123.67
Autorizacion 123456`

func TestBACParser(t *testing.T) {
	p := NewBACParser()
	assert.Equal(t, core.BankBAC, p.Bank())

	business, err := p.ParseBusiness(bacBody)
	require.NoError(t, err)
	assert.Equal(t, "SUPER PALI HEREDIA", business)

	assert.Nil(t, p.ParseBusinessType(bacBody))

	value, currency, err := p.ParseValueAndCurrency(bacBody)
	require.NoError(t, err)
	assert.Equal(t, "CRC", currency)
	assert.True(t, decimal.RequireFromString("12500.00").Equal(value))

	date, err := p.ParseDate(bacBody, "Tue, 05 Mar 2024 14:35:00 -0600")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 5, 20, 35, 0, 0, time.UTC), date)
}

func TestBACParser_MissingAnchors(t *testing.T) {
	p := NewBACParser()

	_, _, err := p.ParseValueAndCurrency("Comercio:\nSUPER\n")
	assert.ErrorIs(t, err, ErrNoAmountFound)

	_, err = p.ParseBusiness("Monto:\nCRC 1.00\n")
	assert.ErrorIs(t, err, ErrNoMerchantFound)

	_, err = p.ParseDate(bacBody, "")
	assert.ErrorIs(t, err, ErrNoDateFound)

	_, err = p.ParseDate(bacBody, "yesterday-ish")
	assert.ErrorIs(t, err, ErrNoDateFound)
}

func TestPromericaParser(t *testing.T) {
	p := NewPromericaParser(nil)
	assert.Equal(t, core.BankPromerica, p.Bank())

	business, err := p.ParseBusiness(promericaBody)
	require.NoError(t, err)
	assert.Equal(t, "AUTOMERCADO, ESCAZU", business)

	businessType := p.ParseBusinessType(promericaBody)
	require.NotNil(t, businessType)
	assert.Equal(t, "SUPERMERCADOS", *businessType)

	value, currency, err := p.ParseValueAndCurrency(promericaBody)
	require.NoError(t, err)
	assert.Equal(t, "USD", currency)
	assert.True(t, decimal.RequireFromString("45123.67").Equal(value))

	date, err := p.ParseDate(promericaBody, "")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 5, 20, 35, 0, 0, time.UTC), date)
}

func TestPromericaParser_AmountExample(t *testing.T) {
	p := NewPromericaParser(nil)
	value, currency, err := p.ParseValueAndCurrency("Monto\n USD: 45,123.67")
	require.NoError(t, err)
	assert.Equal(t, "USD", currency)
	assert.Equal(t, "45123.67", value.StringFixed(2))

	_, _, err = p.ParseValueAndCurrency("Comercio\n AUTOMERCADO\n")
	assert.ErrorIs(t, err, ErrNoAmountFound)
}

func TestPromericaParser_Optional(t *testing.T) {
	p := NewPromericaParser(nil)
	body := "Comercio\n AMAZON MKTPLACE\nMonto\n USD: 9.99\n"

	assert.Nil(t, p.ParseBusinessType(body))

	business, err := p.ParseBusiness(body)
	require.NoError(t, err)
	assert.Equal(t, "AMAZON MKTPLACE", business)

	// No Fecha/hora line: the Date header is used
	date, err := p.ParseDate(body, "Wed, 06 Mar 2024 09:00:00 +0000")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC), date)
}

func TestPromericaParser_SpanishMonths(t *testing.T) {
	p := NewPromericaParser(nil)
	tests := []struct {
		line string
		want time.Time
	}{
		{"Fecha/hora 02 Ene 2024 / 08:15", time.Date(2024, 1, 2, 14, 15, 0, 0, time.UTC)},
		{"Fecha/hora 31 Dic 2023 / 23:59", time.Date(2024, 1, 1, 5, 59, 0, 0, time.UTC)},
		{"Fecha/hora 15 Ago 2024 / 12:00", time.Date(2024, 8, 15, 18, 0, 0, 0, time.UTC)},
		{"Fecha/hora 10 Set 2024 / 00:30", time.Date(2024, 9, 10, 6, 30, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := p.ParseDate(tt.line, "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := p.ParseDate("Fecha/hora 10 Xyz 2024 / 00:30", "")
	assert.ErrorIs(t, err, ErrNoDateFound)
}

func TestExtractTransaction(t *testing.T) {
	msg := &core.RawMessage{From: PromericaSender, Date: "Tue, 05 Mar 2024 14:35:00 -0600"}
	tx, err := core.ExtractTransaction(NewPromericaParser(nil), msg, promericaBody)
	require.NoError(t, err)

	assert.Equal(t, core.BankPromerica, tx.Bank)
	assert.Equal(t, "AUTOMERCADO, ESCAZU", tx.Business)
	assert.Equal(t, "USD", tx.Currency)
	assert.Equal(t, promericaBody, tx.Body)
	assert.Equal(t, core.TransactionID(tx.Bank, tx.Value, tx.Date), tx.ID)
	assert.Nil(t, tx.ExpensePriority)
	assert.Nil(t, tx.ExpenseType)

	again, err := core.ExtractTransaction(NewPromericaParser(nil), msg, promericaBody)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, again.ID)
}

func TestExtractTransaction_Failures(t *testing.T) {
	msg := &core.RawMessage{Date: "Tue, 05 Mar 2024 14:35:00 -0600"}

	_, err := core.ExtractTransaction(NewBACParser(), msg, "Comercio:\nSUPER\n")
	var perr *core.FieldError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "amount", perr.Field)
	assert.ErrorIs(t, err, ErrNoAmountFound)

	_, err = core.ExtractTransaction(NewBACParser(), msg, "Monto:\nCRC 1.00\n")
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "merchant", perr.Field)
}

func TestRegistry_Lookup(t *testing.T) {
	r := NewDefaultRegistry()

	tests := []struct {
		from string
		want core.Bank
		ok   bool
	}{
		{"notificacion@notificacionesbaccr.com", core.BankBAC, true},
		{"BAC Credomatic <NOTIFICACION@notificacionesbaccr.com>", core.BankBAC, true},
		{"\"Banco Promerica\" <info@promerica.fi.cr>", core.BankPromerica, true},
		{"Banco Promerica <alerts@mailer.example.com>", core.BankPromerica, true},
		{"someone@example.com", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.from, func(t *testing.T) {
			p, ok := r.Lookup(tt.from)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, p.Bank())
			}
		})
	}
}

func TestRegistry_Sources(t *testing.T) {
	r := NewDefaultRegistry()
	assert.Equal(t, []core.BankSource{
		{Bank: core.BankBAC, Sender: BACSender},
		{Bank: core.BankPromerica, Sender: PromericaSender, Subject: PromericaSubject},
	}, r.Sources())

	p, ok := r.Parser(core.BankPromerica)
	require.True(t, ok)
	assert.Equal(t, core.BankPromerica, p.Bank())
}

func TestNewRegistry_DuplicateSender(t *testing.T) {
	_, err := NewRegistry(
		Entry{Parser: NewBACParser(), Senders: []string{"a@b.com"}},
		Entry{Parser: NewPromericaParser(nil), Senders: []string{"A@B.com"}},
	)
	assert.Error(t, err)

	_, err = NewRegistry(Entry{Parser: NewBACParser()})
	assert.Error(t, err)
}

func TestSenderAddress(t *testing.T) {
	assert.Equal(t, "info@promerica.fi.cr", SenderAddress("Promerica <Info@Promerica.fi.cr>"))
	assert.Equal(t, "x@y.com", SenderAddress("broken <<x@y.com"))
}
