package handler

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/Tuan980Blue/be-movie-booking-sub000/internal/payment"
)

// PaymentHandler terminates the two gateway callback channels.  Both
// feed the same reconciler; the return endpoint additionally shapes a
// customer-facing answer while the IPN endpoint answers in the
// provider's expected response-code format.
type PaymentHandler struct {
    Rec *payment.Reconciler
}

func NewPaymentHandler(rec *payment.Reconciler) *PaymentHandler {
    if rec == nil {
        panic("nil reconciler passed to NewPaymentHandler")
    }
    return &PaymentHandler{Rec: rec}
}

// Return handles GET /v1/payments/return, the customer's browser
// redirect back from the hosted checkout page.
func (h *PaymentHandler) Return(c echo.Context) error {
    out, err := h.Rec.Process(c.Request().Context(), "return", c.QueryParams())
    if err != nil {
        return callbackError(c, err)
    }
    resp := echo.Map{
        "payment_id": out.Payment.ID,
        "succeeded":  out.Succeeded,
    }
    if out.Booking != nil {
        resp["booking"] = bookingView(out.Booking)
    }
    if out.RequiresRefund {
        resp["refund_pending"] = true
    }
    return c.JSON(http.StatusOK, resp)
}

// IPN handles GET /v1/payments/ipn, the provider's server-to-server
// notification.  The provider retries until it receives RspCode "00",
// so every handled delivery answers "00" even when it was a duplicate;
// only signature, reference and amount problems report error codes.
func (h *PaymentHandler) IPN(c echo.Context) error {
    _, err := h.Rec.Process(c.Request().Context(), "ipn", c.QueryParams())
    switch {
    case errors.Is(err, payment.ErrBadSignature):
        return c.JSON(http.StatusOK, echo.Map{"RspCode": "97", "Message": "Invalid signature"})
    case errors.Is(err, payment.ErrUnknownPayment):
        return c.JSON(http.StatusOK, echo.Map{"RspCode": "01", "Message": "Order not found"})
    case errors.Is(err, payment.ErrAmountMismatch):
        return c.JSON(http.StatusOK, echo.Map{"RspCode": "04", "Message": "Invalid amount"})
    case err != nil:
        return c.JSON(http.StatusOK, echo.Map{"RspCode": "99", "Message": "Unknown error"})
    default:
        return c.JSON(http.StatusOK, echo.Map{"RspCode": "00", "Message": "Confirm success"})
    }
}

func callbackError(c echo.Context, err error) error {
    switch {
    case errors.Is(err, payment.ErrBadSignature):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid signature"})
    case errors.Is(err, payment.ErrUnknownPayment):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "payment not found"})
    case errors.Is(err, payment.ErrAmountMismatch):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount mismatch"})
    default:
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
    }
}
