package payanyway

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/StarecMudrec/CardswoodWebsite/models"
)

// FormParams builds the assistant.htm redirect parameters for a pending
// order, including the form signature.
func (s *Signer) FormParams(order models.Order, successURL, failURL string) url.Values {
	subscriberID := ""
	if order.UserID != nil {
		subscriberID = strconv.FormatInt(*order.UserID, 10)
	}

	params := url.Values{}
	params.Set("MNT_ID", s.merchantID)
	params.Set("MNT_TRANSACTION_ID", order.OrderNumber)
	params.Set("MNT_AMOUNT", FormatAmount(order.Amount))
	params.Set("MNT_CURRENCY_CODE", order.Currency)
	params.Set("MNT_TEST_MODE", s.TestModeString())
	params.Set("MNT_DESCRIPTION", orderDescription(order))
	params.Set("MNT_SIGNATURE", s.SignForm(order.OrderNumber, order.Amount, order.Currency, subscriberID))
	if subscriberID != "" {
		params.Set("MNT_SUBSCRIBER_ID", subscriberID)
	}
	if successURL != "" {
		params.Set("MNT_SUCCESS_URL", successURL)
	}
	if failURL != "" {
		params.Set("MNT_FAIL_URL", failURL)
	}

	return params
}

// PaymentURL is the full assistant redirect for the client.
func (s *Signer) PaymentURL(assistantURL string, order models.Order, successURL, failURL string) string {
	return assistantURL + "?" + s.FormParams(order, successURL, failURL).Encode()
}

func orderDescription(order models.Order) string {
	if len(order.Items) == 0 {
		return "Заказ " + order.OrderNumber
	}
	first := order.Items[0]
	if len(order.Items) == 1 && first.Quantity == 1 {
		return first.Name
	}
	return fmt.Sprintf("%s и другие товары", first.Name)
}
