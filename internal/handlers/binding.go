package handlers

import (
	"errors"
	"reflect"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/stwalsh4118/fieldwatch/internal/datasource"
	apierrors "github.com/stwalsh4118/fieldwatch/internal/errors"
	"github.com/stwalsh4118/fieldwatch/internal/models"
	"github.com/stwalsh4118/fieldwatch/internal/services"
)

// RegisterValidators installs the custom binding tags and reports fields
// by their query parameter names. It must run before the router serves.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected validator engine")
	}

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	return v.RegisterValidation("parcel_id", validParcelID)
}

// validParcelID accepts cadastral numbers such as "1427" or "1427/2".
func validParcelID(fl validator.FieldLevel) bool {
	return isParcelID(fl.Field().String())
}

func isParcelID(id string) bool {
	num, sub, hasSub := strings.Cut(id, "/")
	if !isDigits(num) {
		return false
	}
	return !hasSub || isDigits(sub)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// bindQuery binds and validates query parameters, writing the error
// response itself. It reports whether the handler may continue.
func bindQuery(c *gin.Context, req interface{}) bool {
	err := c.ShouldBindQuery(req)
	if err == nil {
		return true
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		apierrors.ValidationError(c, validationErrors)
		return false
	}
	apierrors.BadRequest(c, "Invalid query parameters", nil)
	return false
}

// indexType converts a validated index parameter, falling back to def.
func indexType(s string, def models.IndexType) models.IndexType {
	if t, err := models.ParseIndexType(s); err == nil {
		return t
	}
	return def
}

// handleServiceError maps service errors onto HTTP responses.
func handleServiceError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, datasource.ErrNotInitialized):
		apierrors.ServiceUnavailable(c, "Data source is not configured")
	case errors.Is(err, services.ErrInvalidCoordinates):
		apierrors.BadRequest(c, err.Error(), nil)
	case errors.Is(err, services.ErrParcelNotFound):
		apierrors.NotFound(c, "Parcel not found")
	case errors.Is(err, services.ErrNoData):
		apierrors.NotFound(c, "No data available for export")
	case errors.Is(err, services.ErrMetadataNotFound):
		apierrors.NotFound(c, "Metadata key not found")
	case errors.Is(err, services.ErrUnsupported):
		apierrors.NotSupported(c, "Operation not supported by the configured backend")
	default:
		apierrors.InternalServerError(c, message, err)
	}
}
