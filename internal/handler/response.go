package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sodcloud/storefront/internal/domain"
	"go.uber.org/zap"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return domain.ValidPhone(fl.Field().String())
	})
	_ = v.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
		return domain.Currency(strings.ToUpper(fl.Field().String())).Valid()
	})
	return v
}

// bind parses the JSON body into dst and runs its validate tags
func bind(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return domain.NewValidationError("Invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fieldMessage(fe))
			}
			return domain.NewValidationError(fields...)
		}
		return err
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "phone":
		return field + " must be a valid phone number"
	case "currency":
		return field + " must be USD or LKR"
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, fe.Param())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	}
	return field + " is invalid"
}

// errorStatus maps domain errors onto HTTP statuses
func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrEmptyCart):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidCredentials):
		return fiber.StatusUnauthorized
	case errors.Is(err, domain.ErrPaymentDeclined):
		return fiber.StatusPaymentRequired
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrInvalidTransition):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrPaymentUnavailable):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

// respondError writes the {success:false, error} envelope. Server errors are
// logged and their detail withheld.
func respondError(c *fiber.Ctx, logger *zap.Logger, err error) error {
	status := errorStatus(err)
	body := fiber.Map{"success": false}

	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		body["error"] = strings.Join(verr.Fields, ". ")
		body["details"] = verr.Fields
	case status == fiber.StatusInternalServerError:
		logger.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		body["error"] = "Internal server error"
	default:
		body["error"] = err.Error()
	}
	return c.Status(status).JSON(body)
}

func notFound(c *fiber.Ctx, what string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"success": false,
		"error":   what + " not found",
	})
}
