package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/vejoias/internal/auth"
	"github.com/xenking/vejoias/internal/domain/cart"
	"github.com/xenking/vejoias/internal/domain/catalog"
	"github.com/xenking/vejoias/internal/domain/coupon"
	"github.com/xenking/vejoias/internal/domain/order"
	"github.com/xenking/vejoias/internal/domain/payment"
	"github.com/xenking/vejoias/internal/domain/user"
	"github.com/xenking/vejoias/pkg/httpmiddleware"
)

var (
	errUnauthenticated = errors.New("authentication credentials were not provided")
	errForbidden       = errors.New("staff permission required")
)

// fail maps err to the error envelope. Unexpected errors are logged and
// answered with a generic 500.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg, fields := classify(err)
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	httpmiddleware.WriteError(w, status, msg, fields)
}

func classify(err error) (status int, msg string, fields map[string]string) {
	var (
		reqErr    *requestError
		jewelErr  *catalog.ValidationError
		userErr   *user.ValidationError
		orderErr  *order.ValidationError
		statusErr *order.InvalidStatusError
		stockErr  *catalog.InsufficientStockError
	)
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest, reqErr.msg, reqErr.fields
	case errors.As(err, &jewelErr):
		return http.StatusBadRequest, "validation failed", jewelErr.Fields
	case errors.As(err, &userErr):
		return http.StatusBadRequest, "validation failed", userErr.Fields
	case errors.As(err, &orderErr):
		return http.StatusBadRequest, "validation failed", orderErr.Fields
	case errors.As(err, &statusErr):
		return http.StatusBadRequest, statusErr.Error(), map[string]string{"status": "invalid status"}
	case errors.Is(err, cart.ErrEmptyCart),
		errors.Is(err, cart.ErrInvalidQuantity):
		return http.StatusBadRequest, err.Error(), nil

	case errors.Is(err, errUnauthenticated),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, user.ErrInvalidCredentials):
		return http.StatusUnauthorized, err.Error(), nil
	case errors.Is(err, errForbidden):
		return http.StatusForbidden, err.Error(), nil

	case errors.Is(err, catalog.ErrJewelNotFound),
		errors.Is(err, catalog.ErrCategoryNotFound),
		errors.Is(err, cart.ErrItemNotInCart),
		errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, user.ErrUserNotFound):
		return http.StatusNotFound, err.Error(), nil

	case errors.Is(err, user.ErrEmailTaken),
		errors.Is(err, catalog.ErrCategoryExists):
		return http.StatusConflict, err.Error(), nil
	case errors.As(err, &stockErr):
		return http.StatusConflict, stockErr.Error(), nil

	case errors.Is(err, coupon.ErrInvalidCoupon),
		errors.Is(err, coupon.ErrCouponExpired),
		errors.Is(err, coupon.ErrCouponUsageLimitReached):
		return http.StatusUnprocessableEntity, err.Error(), nil

	case errors.Is(err, payment.ErrPaymentFailed):
		return http.StatusPaymentRequired, err.Error(), nil
	}
	return http.StatusInternalServerError, "internal server error", nil
}
