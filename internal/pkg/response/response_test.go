package response

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"

	"toolhub/internal/core/domain"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("loan %w", domain.ErrNotFound), fiber.StatusNotFound},
		{fmt.Errorf("%w: loan is pending", domain.ErrPreconditionFailed), fiber.StatusPreconditionFailed},
		{fmt.Errorf("%w: sum 2 != 3", domain.ErrValidationFailed), fiber.StatusUnprocessableEntity},
		{fmt.Errorf("%w: already returned", domain.ErrConflict), fiber.StatusConflict},
		{fmt.Errorf("%w: 1 of 3", domain.ErrInsufficientStock), fiber.StatusConflict},
		{domain.ErrTokenExpired, fiber.StatusUnauthorized},
		{domain.ErrForbidden, fiber.StatusForbidden},
		{errors.New("driver: bad connection"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Status(tt.err), tt.err.Error())
	}
}
