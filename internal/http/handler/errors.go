package handler

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/PayLink/internal/app/service"
	"go.uber.org/zap"
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// statusFor maps a service error kind to its HTTP status.
func statusFor(err error) (int, bool) {
	switch {
	case errors.Is(err, service.ErrValidation):
		return fiber.StatusBadRequest, true
	case errors.Is(err, service.ErrAuth):
		return fiber.StatusUnauthorized, true
	case errors.Is(err, service.ErrPaymentRequired):
		return fiber.StatusPaymentRequired, true
	case errors.Is(err, service.ErrForbidden):
		return fiber.StatusForbidden, true
	case errors.Is(err, service.ErrNotFound):
		return fiber.StatusNotFound, true
	case errors.Is(err, service.ErrConflict):
		return fiber.StatusConflict, true
	default:
		return fiber.StatusInternalServerError, false
	}
}

// respondError writes {"error": ...}. Unclassified and encoding errors are
// logged and reported as a generic 500.
func respondError(c *fiber.Ctx, logger *zap.Logger, action string, err error) error {
	status, known := statusFor(err)
	if !known || errors.Is(err, service.ErrEncoding) {
		logger.Error(action+" failed", zap.Error(err), zap.String("path", c.Path()))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	message := err.Error()
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		message = svcErr.Message
	}
	return c.Status(status).JSON(fiber.Map{
		"error": message,
	})
}

// bindJSON parses and validates a request body. The returned error text is
// safe to show to clients.
func bindJSON(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return errors.New("invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		return errors.New(describeValidation(err))
	}
	return nil
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func describeValidation(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return "invalid request body"
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		name := fe.Field()
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, name+" is required")
		case "email":
			msgs = append(msgs, name+" must be a valid email address")
		case "url", "http_url":
			msgs = append(msgs, name+" must be a valid URL")
		default:
			msgs = append(msgs, name+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}
