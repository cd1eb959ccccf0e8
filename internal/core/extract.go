package core

import "fmt"

// FieldError reports which field a bank parser could not extract
type FieldError struct {
	Bank  Bank
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Bank, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// ExtractTransaction runs every parser operation over body and assembles a
// candidate transaction with its identity assigned. Expense fields stay unset.
func ExtractTransaction(p BankParser, msg *RawMessage, body string) (*Transaction, error) {
	value, currency, err := p.ParseValueAndCurrency(body)
	if err != nil {
		return nil, &FieldError{Bank: p.Bank(), Field: "amount", Err: err}
	}
	business, err := p.ParseBusiness(body)
	if err != nil {
		return nil, &FieldError{Bank: p.Bank(), Field: "merchant", Err: err}
	}
	date, err := p.ParseDate(body, msg.Date)
	if err != nil {
		return nil, &FieldError{Bank: p.Bank(), Field: "date", Err: err}
	}

	tx := &Transaction{
		Date:         date.UTC(),
		Value:        value,
		Currency:     currency,
		Business:     business,
		BusinessType: p.ParseBusinessType(body),
		Bank:         p.Bank(),
		Body:         body,
	}
	AssignID(tx)
	return tx, nil
}
