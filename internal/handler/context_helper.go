package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vidya-labs/school-console-api/internal/middleware"
	"github.com/vidya-labs/school-console-api/internal/models"
	appErrors "github.com/vidya-labs/school-console-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// parsePeriods decodes a comma separated list of "month-year" billing
// buckets, e.g. "4-2025,5-2025,0-2025". Month 0 is the year bucket.
func parsePeriods(raw string) ([]models.Period, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "periods query parameter is required")
	}

	var periods []models.Period
	for _, token := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(token), "-", 2)
		if len(parts) != 2 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "periods must be month-year pairs like 4-2025")
		}
		month, err := strconv.Atoi(parts[0])
		if err != nil || month < 0 || month > 12 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "period month must be between 0 and 12")
		}
		year, err := strconv.Atoi(parts[1])
		if err != nil || year < 2000 || year > 2100 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "period year is out of range")
		}
		periods = append(periods, models.Period{Month: month, Year: year})
	}
	return periods, nil
}
