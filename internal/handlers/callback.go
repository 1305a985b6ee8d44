package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/StarecMudrec/CardswoodWebsite/internal/db"
	"github.com/StarecMudrec/CardswoodWebsite/models"
)

// PaymentCallback is the PayAnyWay Pay URL. The gateway delivers it at
// least once, possibly concurrently, over an unauthenticated transport:
// the MD5 signature is the only authentication and the conditional
// pending -> paid update is the only serialization point.
//
// Response contract: the body is exactly SUCCESS once the order is
// confirmed paid (even if fulfillment partially failed), FAIL when the
// gateway should deliver the callback again. Validation and signature
// problems are plain 400s and change no state.
func (h *Handler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed request", http.StatusBadRequest)
		return
	}

	cb := models.CallbackRequest{
		Command:       r.FormValue("MNT_COMMAND"),
		MerchantID:    r.FormValue("MNT_ID"),
		TransactionID: r.FormValue("MNT_TRANSACTION_ID"),
		OperationID:   r.FormValue("MNT_OPERATION_ID"),
		Amount:        r.FormValue("MNT_AMOUNT"),
		Currency:      r.FormValue("MNT_CURRENCY_CODE"),
		SubscriberID:  r.FormValue("MNT_SUBSCRIBER_ID"),
		TestMode:      r.FormValue("MNT_TEST_MODE"),
		Signature:     r.FormValue("MNT_SIGNATURE"),
	}

	if cb.TransactionID == "" || cb.Signature == "" {
		h.Logger.Debugw("callback missing required fields",
			"transaction", cb.TransactionID, "remote", r.RemoteAddr)
		http.Error(w, "missing required fields", http.StatusBadRequest)
		return
	}

	if !h.Signer.VerifyCallback(cb) {
		// logged apart from plain validation noise: a mismatching
		// signature on a well-formed callback is a security signal
		h.Logger.Warnw("callback signature mismatch",
			"transaction", cb.TransactionID, "operation", cb.OperationID, "remote", r.RemoteAddr)
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	order, transitioned, err := h.Database.MarkOrderPaid(ctx, cb.TransactionID, cb.OperationID)
	if err != nil {
		if errors.Is(err, db.ErrOrderNotFound) {
			// order creation may not have committed yet, let the
			// gateway come back
			h.Logger.Warnw("callback for unknown order", "transaction", cb.TransactionID)
			h.respond(w, models.CallbackResponseFail)
			return
		}
		h.Logger.Errorw("failed to transition order", "transaction", cb.TransactionID, "error", err)
		h.respond(w, models.CallbackResponseFail)
		return
	}

	if !transitioned {
		if order.Status == models.OrderPaid {
			// duplicate or lost race, side effects already ran
			h.Logger.Infow("callback for already paid order", "order", order.OrderNumber)
			h.respond(w, models.CallbackResponseSuccess)
			return
		}
		h.Logger.Errorw("order is not payable", "order", order.OrderNumber, "status", order.Status)
		h.respond(w, models.CallbackResponseFail)
		return
	}

	h.Logger.Infow("order paid", "order", order.OrderNumber, "operation", cb.OperationID)

	// paid is durably committed; fulfillment must not be lost to the
	// gateway hanging up on us
	effectCtx := context.WithoutCancel(ctx)

	h.Granter.Grant(effectCtx, order)

	status, notifyErr := h.Dispatcher.Notify(effectCtx, order)
	errText := ""
	if notifyErr != nil {
		errText = notifyErr.Error()
		h.Logger.Errorw("ORDER PAID BUT NOTIFICATION FAILED, manual follow-up may be required",
			"order", order.OrderNumber, "user", order.UserID, "error", notifyErr)
	}

	if err = h.Database.UpdateNotificationStatus(effectCtx, order.OrderNumber, status, errText); err != nil {
		h.Logger.Errorw("failed to record notification outcome",
			"order", order.OrderNumber, "status", status, "error", err)
	}

	h.respond(w, models.CallbackResponseSuccess)
}

func (h *Handler) respond(w http.ResponseWriter, sentinel string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(sentinel)); err != nil {
		h.Logger.Errorw("failed to write callback response", "error", err)
	}
}
