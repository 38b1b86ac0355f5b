package httpx

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/chainsplit/chainsplit-backend/internal/apperr"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", apperr.Validation("name is required"), fiber.StatusBadRequest, "validation_error"},
		{"unauthorized", apperr.Unauthorized("not the creator"), fiber.StatusForbidden, "forbidden"},
		{"not found", apperr.NotFound("chain 3 not found"), fiber.StatusNotFound, "not_found"},
		{"invariant", apperr.Invariant("total share percentage 102 exceeds 100"), fiber.StatusConflict, "invariant_violation"},
		{"unknown", errors.New("connection reset"), fiber.StatusInternalServerError, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error { return FromError(c, tt.err, "boom") })

			resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			var body ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.code, body.Code)
			if tt.status == fiber.StatusInternalServerError {
				assert.Equal(t, "Internal server error", body.Error)
			}
		})
	}
}

func TestParamUint(t *testing.T) {
	app := fiber.New()
	app.Get("/chains/:chainId", func(c *fiber.Ctx) error {
		id, err := ParamUint(c, "chainId")
		if err != nil {
			return BadRequest(c, "invalid_id", err.Error())
		}
		return c.JSON(fiber.Map{"id": id})
	})

	for path, status := range map[string]int{
		"/chains/12":  fiber.StatusOK,
		"/chains/0":   fiber.StatusBadRequest,
		"/chains/abc": fiber.StatusBadRequest,
		"/chains/-1":  fiber.StatusBadRequest,
	} {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
		assert.Equal(t, status, resp.StatusCode, path)
	}
}
