package validate_test

import (
	"testing"

	"github.com/ardanlabs/powchain/foundation/validate"
)

type transfer struct {
	To     string  `json:"to" validate:"required,eth_addr"`
	Amount float64 `json:"amount" validate:"gt=0"`
	Fee    float64 `json:"fee" validate:"gte=0"`
}

func Test_Check(t *testing.T) {
	type table struct {
		name   string
		value  transfer
		fields []string
	}

	tt := []table{
		{name: "valid", value: transfer{To: "0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4", Amount: 10, Fee: 1}},
		{name: "zero-fee", value: transfer{To: "0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4", Amount: 10}},
		{name: "bad-address", value: transfer{To: "0xRecipient", Amount: 10}, fields: []string{"to"}},
		{name: "zero-amount", value: transfer{To: "0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4"}, fields: []string{"amount"}},
		{name: "negative-fee", value: transfer{To: "0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4", Amount: 1, Fee: -1}, fields: []string{"fee"}},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			err := validate.Check(tst.value)

			if len(tst.fields) == 0 {
				if err != nil {
					t.Fatalf("Test %s:\tShould be able to validate the value: %s", tst.name, err)
				}
				return
			}

			if !validate.IsFieldErrors(err) {
				t.Fatalf("Test %s:\tShould get back field errors, got %v", tst.name, err)
			}

			fields := err.(validate.FieldErrors).Fields()
			for _, name := range tst.fields {
				if _, exists := fields[name]; !exists {
					t.Logf("Test %s:\tgot: %v", tst.name, fields)
					t.Fatalf("Test %s:\tShould get an error for field %q.", tst.name, name)
				}
			}
		}

		t.Run(tst.name, f)
	}
}
