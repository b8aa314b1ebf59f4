package sale

import (
	"strings"
	"unicode"
)

// PaymentMode is the closed set of payment methods.
type PaymentMode string

const (
	PayCash         PaymentMode = "Cash"
	PayCard         PaymentMode = "Card"
	PayUPI          PaymentMode = "UPI"
	PayNetBanking   PaymentMode = "NetBanking"
	PayWallet       PaymentMode = "Wallet"
	PayCOD          PaymentMode = "COD"
	PayBankTransfer PaymentMode = "BankTransfer"
	PayCheque       PaymentMode = "Cheque"
	PayOther        PaymentMode = "Other"
)

// OrderStatus is the closed set of fulfilment states.
type OrderStatus string

const (
	StatusDelivered OrderStatus = "Delivered"
	StatusShipped   OrderStatus = "Shipped"
	StatusPending   OrderStatus = "Pending"
	StatusCancelled OrderStatus = "Cancelled"
	StatusReturned  OrderStatus = "Returned"
	StatusRefunded  OrderStatus = "Refunded"
	StatusUnknown   OrderStatus = "Unknown"
)

// Keyword tables are checked in order; the first contained keyword wins.
var paymentKeywords = []struct {
	kw   string
	mode PaymentMode
}{
	{"cashondelivery", PayCOD},
	{"postpaid", PayCOD},
	{"upi", PayUPI},
	{"gpay", PayUPI},
	{"googlepay", PayUPI},
	{"phonepe", PayUPI},
	{"bhim", PayUPI},
	{"netbanking", PayNetBanking},
	{"internetbanking", PayNetBanking},
	{"neft", PayBankTransfer},
	{"rtgs", PayBankTransfer},
	{"imps", PayBankTransfer},
	{"banktransfer", PayBankTransfer},
	{"wiretransfer", PayBankTransfer},
	{"cheque", PayCheque},
	{"check", PayCheque},
	{"wallet", PayWallet},
	{"paytm", PayWallet},
	{"amazonpay", PayWallet},
	{"card", PayCard},
	{"credit", PayCard},
	{"debit", PayCard},
	{"visa", PayCard},
	{"mastercard", PayCard},
	{"rupay", PayCard},
	{"prepaid", PayCard},
	{"cash", PayCash},
}

var statusKeywords = []struct {
	kw     string
	status OrderStatus
}{
	{"refund", StatusRefunded},
	{"return", StatusReturned},
	{"cancel", StatusCancelled},
	{"undeliver", StatusReturned},
	{"deliver", StatusDelivered},
	{"complete", StatusDelivered},
	{"fulfil", StatusDelivered},
	{"closed", StatusDelivered},
	{"ship", StatusShipped},
	{"dispatch", StatusShipped},
	{"transit", StatusShipped},
	{"pending", StatusPending},
	{"processing", StatusPending},
	{"placed", StatusPending},
	{"confirmed", StatusPending},
}

// Short codes must match the whole value; as substrings they would hit
// unrelated words.
var (
	paymentCodes = map[string]PaymentMode{"cod": PayCOD, "dd": PayCheque, "upi": PayUPI, "pos": PayCard}
	statusCodes  = map[string]OrderStatus{"rto": StatusReturned, "new": StatusPending}
)

// ParsePaymentMode maps free text onto a PaymentMode. Absent input and text
// matching no keyword both yield PayOther.
func ParsePaymentMode(s string) PaymentMode {
	k := squash(s)
	if k == "" {
		return PayOther
	}
	if m, ok := paymentCodes[k]; ok {
		return m
	}
	for _, e := range paymentKeywords {
		if strings.Contains(k, e.kw) {
			return e.mode
		}
	}
	return PayOther
}

// ParseOrderStatus maps free text onto an OrderStatus, defaulting to
// StatusUnknown.
func ParseOrderStatus(s string) OrderStatus {
	k := squash(s)
	if k == "" {
		return StatusUnknown
	}
	if st, ok := statusCodes[k]; ok {
		return st
	}
	for _, e := range statusKeywords {
		if strings.Contains(k, e.kw) {
			return e.status
		}
	}
	return StatusUnknown
}

// IsRefund reports whether the status represents money going back to the
// customer.
func (s OrderStatus) IsRefund() bool {
	return s == StatusRefunded || s == StatusReturned
}

// squash lower-cases s and keeps only letters and digits.
func squash(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
