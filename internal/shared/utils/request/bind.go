package request

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"eventix/internal/shared/apperr"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

var registerOnce sync.Once

// PaymentMethods accepted by the booking flow.
var PaymentMethods = map[string]bool{
	"card":       true,
	"wallet":     true,
	"upi":        true,
	"netbanking": true,
}

var seatStatuses = map[string]bool{
	"available": true,
	"selected":  true,
	"locked":    true,
	"booked":    true,
}

// RegisterValidators installs the custom tags on gin's validator engine.
// Safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("payment_method", func(fl validator.FieldLevel) bool {
			return PaymentMethods[fl.Field().String()]
		})
		_ = v.RegisterValidation("seat_status", func(fl validator.FieldLevel) bool {
			return seatStatuses[fl.Field().String()]
		})
	})
}

// BindJSON decodes the body into dst, rejecting unknown fields and trailing
// data, then runs the binding validators.
func BindJSON(c *gin.Context, dst interface{}) error {
	RegisterValidators()

	if c.Request.Body == nil {
		return apperr.Validation("request body is required")
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes+1))
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, err, "could not read request body")
	}
	if len(body) > maxBodyBytes {
		return apperr.Validation("request body too large")
	}
	if err := DecodeStrict(body, dst); err != nil {
		return err
	}
	if err := binding.Validator.ValidateStruct(dst); err != nil {
		return err
	}
	return nil
}

// DecodeStrict unmarshals exactly one JSON value with no unknown fields.
func DecodeStrict(data []byte, dst interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is required")
		}
		return apperr.Wrap(apperr.KindValidation, err, fmt.Sprintf("malformed JSON: %v", err))
	}
	if dec.More() {
		return apperr.Validation("request body must contain a single JSON object")
	}
	return nil
}
