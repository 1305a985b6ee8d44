package payanyway

import (
	"crypto/hmac"
	"crypto/md5"
	"encoding/hex"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/StarecMudrec/CardswoodWebsite/models"
)

// Signer computes and verifies PayAnyWay MD5 signatures. Two different
// formulas share one integrity code: the payment form one and the Pay URL
// callback one. The field order differs between them and mixing the two
// silently invalidates every callback.
type Signer struct {
	merchantID string
	integrity  string
	testMode   bool
}

func NewSigner(merchantID, integrityCode string, testMode bool) *Signer {
	return &Signer{
		merchantID: merchantID,
		integrity:  SanitizeIntegrityCode(integrityCode),
		testMode:   testMode,
	}
}

// SanitizeIntegrityCode strips a BOM, surrounding whitespace and quoting
// that leak in from .env files. A code that is empty after cleanup never
// verifies anything.
func SanitizeIntegrityCode(code string) string {
	code = strings.TrimPrefix(code, "\ufeff")
	code = strings.TrimSpace(code)
	code = strings.Trim(code, `"'`)
	return strings.TrimSpace(code)
}

// FormatAmount renders the canonical two-decimal form used in both
// signature formulas, dot separator: 1 -> "1.00", 123.4 -> "123.40".
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

func (s *Signer) TestModeString() string {
	if s.testMode {
		return "1"
	}
	return "0"
}

// SignForm computes the outbound payment form signature:
// md5(MNT_ID + MNT_TRANSACTION_ID + MNT_AMOUNT + MNT_CURRENCY_CODE +
// MNT_SUBSCRIBER_ID + MNT_TEST_MODE + MNT_INTEGRITY_CODE).
// An absent subscriber id participates as an empty string.
func (s *Signer) SignForm(transactionID string, amount decimal.Decimal, currency, subscriberID string) string {
	raw := s.merchantID + transactionID + FormatAmount(amount) + currency +
		subscriberID + s.TestModeString() + s.integrity
	return md5hex(raw)
}

// SignCallback computes the inbound Pay URL signature:
// md5(MNT_COMMAND + MNT_ID + MNT_TRANSACTION_ID + MNT_OPERATION_ID +
// MNT_AMOUNT + MNT_CURRENCY_CODE + MNT_SUBSCRIBER_ID + MNT_TEST_MODE +
// MNT_INTEGRITY_CODE), over the fields exactly as the gateway sent them.
func (s *Signer) SignCallback(cb models.CallbackRequest) string {
	raw := cb.Command + cb.MerchantID + cb.TransactionID + cb.OperationID +
		cb.Amount + cb.Currency + cb.SubscriberID + cb.TestMode + s.integrity
	return md5hex(raw)
}

// VerifyCallback reports whether the supplied signature matches the
// expected one. Comparison is constant time and case insensitive.
// Malformed input just fails to match, it never errors.
func (s *Signer) VerifyCallback(cb models.CallbackRequest) bool {
	if s.integrity == "" {
		return false
	}
	expected := s.SignCallback(cb)
	supplied := strings.ToLower(strings.TrimSpace(cb.Signature))
	return hmac.Equal([]byte(expected), []byte(supplied))
}

func md5hex(raw string) string {
	sum := md5.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}
