package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/EduardoDePatta/coupon-generator/internal/models"
	errs "github.com/EduardoDePatta/coupon-generator/pkg/errors"
)

// respond writes the uniform response envelope
func respond(c *fiber.Ctx, status int, message string, data interface{}) error {
	return c.Status(status).JSON(models.Response{
		StatusCode: status,
		Message:    message,
		Data:       data,
	})
}

// respondError converts any error into the envelope with data null
func respondError(c *fiber.Ctx, err error) error {
	appErr := errs.As(err)
	status := appErr.HTTPStatus()
	return c.Status(status).JSON(models.Response{
		StatusCode: status,
		Message:    appErr.Message,
		Data:       nil,
	})
}
