package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"property-listing-api/internal/models"

	"github.com/go-playground/validator/v10"
)

// PropertyInput is the client-writable part of a property. Status and owner
// are not part of it; the service assigns both.
type PropertyInput struct {
	Type        string   `json:"type" validate:"required,oneof=apartment house land commercial other"`
	Title       string   `json:"title" validate:"required,min=5,max=100"`
	Description string   `json:"description" validate:"required,min=10"`
	Price       *float64 `json:"price" validate:"required,gte=0,lte=99999999.99"`
	Area        *float64 `json:"area" validate:"required,gte=0,lte=99999999.99"`
	Rooms       *int     `json:"rooms" validate:"required,gte=0"`
	Bathrooms   *int     `json:"bathrooms" validate:"required,gte=0"`
	Address     string   `json:"address" validate:"required,max=255"`
	City        string   `json:"city" validate:"required,max=100"`
	PostalCode  string   `json:"postalCode" validate:"required,max=20"`
	Latitude    *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude   *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	Features    []string `json:"features" validate:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report json names so clients see the field they sent
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// normalize trims surrounding whitespace from the text fields
func (in *PropertyInput) normalize() {
	in.Type = strings.TrimSpace(in.Type)
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Address = strings.TrimSpace(in.Address)
	in.City = strings.TrimSpace(in.City)
	in.PostalCode = strings.TrimSpace(in.PostalCode)
}

// Validate normalizes the input and returns a *ValidationError listing every failure
func (in *PropertyInput) Validate() error {
	if in == nil {
		return newValidationError("body", "request body is required")
	}
	in.normalize()

	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	result := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		result.Fields = append(result.Fields, FieldError{
			Field:   fe.Field(),
			Message: describe(fe),
		})
	}
	return result
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// applyTo copies validated input onto p. Features keep their submitted order.
func (in *PropertyInput) applyTo(p *models.Property) {
	p.Type = models.PropertyType(in.Type)
	p.Title = in.Title
	p.Description = in.Description
	p.Price = *in.Price
	p.Area = *in.Area
	p.Rooms = *in.Rooms
	p.Bathrooms = *in.Bathrooms
	p.Address = in.Address
	p.City = in.City
	p.PostalCode = in.PostalCode
	p.Latitude = *in.Latitude
	p.Longitude = *in.Longitude

	features := make([]string, len(in.Features))
	copy(features, in.Features)
	p.Features = features
}
