package processor

import (
	"strconv"
	"strings"

	"github.com/danmuck/titpd/internal/protocol/iso8583"
	"github.com/rs/zerolog/log"
)

const TypeFinancial uint16 = 0x0200

// Transaction sub-codes: the integer value of the leading digits of field 3,
// so "000020" is a refund and "200000" is unknown.
const (
	TxnPurchase   = 0
	TxnReversal   = 10
	TxnRefund     = 20
	TxnWithdrawal = 31
)

// FinancialLimits caps the amount per sub-code. Sub-codes without an entry
// are declined, except reversals.
var FinancialLimits = map[int]int64{
	TxnPurchase:   50000,
	TxnRefund:     10000,
	TxnWithdrawal: 20000,
}

// Financial handles 0200 purchase, refund, withdrawal and reversal.
type Financial struct {
	Base
	codec ResponseBuilder
}

func NewFinancial(codec ResponseBuilder) *Financial {
	return &Financial{
		Base:  Base{Type: TypeFinancial, Label: "financial"},
		codec: codec,
	}
}

func (f *Financial) Validate(req *iso8583.Message) error {
	if err := f.Base.Validate(req); err != nil {
		return err
	}
	if err := requireFields(f.Type, req, 2, 3, 4); err != nil {
		return err
	}
	if err := checkPAN(f.Type, req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Text(4)) == "" {
		log.Warn().Str("mti", req.MTI()).Msg("financial_empty_amount")
	}
	return nil
}

func (f *Financial) Process(req *iso8583.Message) Result {
	txn, known := transactionCode(req.Text(3))
	amount, _ := req.Field(4)
	value, err := amount.Int()
	if !known || err != nil || !f.approve(txn, value) {
		log.Info().
			Str("processing_code", req.Text(3)).
			Int("txn", txn).
			Str("pan", iso8583.MaskPAN(req.Text(2))).
			Str("amount", amount.Text()).
			Msg("financial_declined")
		return Failure("Transaction declined")
	}

	rrn, err := randomDigits(12)
	if err != nil {
		return Failure("Processing error: " + err.Error())
	}
	authID, err := randomDigits(6)
	if err != nil {
		return Failure("Processing error: " + err.Error())
	}
	resp, err := respond(f.codec, req, map[int]string{
		37: rrn,
		38: authID,
		39: CodeSuccess.String(),
	})
	if err != nil {
		return Failure("Processing error: " + err.Error())
	}
	log.Info().
		Int("txn", txn).
		Str("pan", iso8583.MaskPAN(req.Text(2))).
		Int64("amount", value).
		Str("rrn", rrn).
		Msg("financial_approved")
	return Success("Transaction approved").WithResponse(resp)
}

func (f *Financial) approve(txn int, amount int64) bool {
	if txn == TxnReversal {
		return true
	}
	limit, ok := FinancialLimits[txn]
	return ok && amount <= limit
}

// transactionCode parses the leading digit run of a processing code as an
// integer. It reports false when there are no leading digits.
func transactionCode(processingCode string) (int, bool) {
	end := 0
	for end < len(processingCode) && processingCode[end] >= '0' && processingCode[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	code, err := strconv.Atoi(processingCode[:end])
	if err != nil {
		return 0, false
	}
	return code, true
}
