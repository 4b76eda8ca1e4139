package canvas

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"

	"walkypainty/internal/geometry"
)

// Validation limits
const (
	MaxNameLength   = 100
	MaxImageBytes   = 10 << 20
	MaxStrokePoints = 10000
	MaxStrokeWidth  = 500
	MaxCoordinate   = 1000000
)

type CreateCanvasRequest struct {
	Name      string `json:"name" validate:"required,max=100"`
	ImageData string `json:"imageData" validate:"required,max=10485760,startswith=data:image/"`
	IsPublic  *bool  `json:"isPublic"`
}

// UpdateCanvasRequest: nil fields are left unchanged
type UpdateCanvasRequest struct {
	Name      *string `json:"name" validate:"omitnil,min=1,max=100"`
	ImageData *string `json:"imageData" validate:"omitnil,max=10485760,startswith=data:image/"`
	IsPublic  *bool   `json:"isPublic"`
}

type PointRequest struct {
	X float64 `json:"x" validate:"min=-1000000,max=1000000"`
	Y float64 `json:"y" validate:"min=-1000000,max=1000000"`
}

// SaveStrokeRequest: zero color, width and tool take the stroke defaults
type SaveStrokeRequest struct {
	Canvas string         `json:"canvas" validate:"required"`
	Points []PointRequest `json:"points" validate:"required,min=1,max=10000,dive"`
	Color  string         `json:"color" validate:"omitempty,paintcolor"`
	Width  float64        `json:"width" validate:"omitempty,gt=0,max=500"`
	Tool   geometry.Tool  `json:"tool" validate:"omitempty,oneof=brush pencil eraser spray"`
}

// Validator: validation and sanitization of canvas and stroke payloads
type Validator struct {
	validate  *validator.Validate
	sanitizer *bluemonday.Policy
}

func NewValidator() *Validator {
	validate := validator.New(validator.WithRequiredStructEnabled())
	// paintcolor: only colors the renderer can draw, so #rgba and #rrggbbaa are out
	_ = validate.RegisterValidation("paintcolor", func(fl validator.FieldLevel) bool {
		_, ok := geometry.ParseColor(fl.Field().String())
		return ok
	})

	return &Validator{
		validate:  validate,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// Struct validates req against its tags, wrapping failures in ErrInvalid.
func (v *Validator) Struct(req any) error {
	if err := v.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("%w: %s", ErrInvalid, formatSingleError(verrs[0]))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// SanitizeName: strips markup; an empty result is rejected
func (v *Validator) SanitizeName(name string) (string, error) {
	clean := strings.TrimSpace(v.sanitizer.Sanitize(name))
	if clean == "" {
		return "", fmt.Errorf("%w: 'Name' is required", ErrInvalid)
	}
	return clean, nil
}

// formatSingleError formats a single validation error with common cases
func formatSingleError(err validator.FieldError) string {
	field := err.Field()

	switch err.Tag() {
	case "required":
		return fmt.Sprintf("'%s' is required", field)
	case "min", "max", "gt":
		return fmt.Sprintf("'%s' value out of allowed range", field)
	case "paintcolor":
		return fmt.Sprintf("'%s' must be a hex color", field)
	case "oneof":
		return fmt.Sprintf("'%s' must be one of %s", field, err.Param())
	case "startswith":
		return fmt.Sprintf("'%s' must be an image data URL", field)
	default:
		return fmt.Sprintf("'%s' is invalid", field)
	}
}
