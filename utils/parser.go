package utils

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/vitwit/nftbuy/types"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
}

// ValidateStruct validates v using its struct tags.
func ValidateStruct(v any) error {
	return validate.Struct(v)
}

// ParseJSON decodes data into v and validates it. Failures are reported as
// *types.Error with the given code.
func ParseJSON(data []byte, v any, code string) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return &types.Error{
			Code:    code,
			Message: fmt.Sprintf("failed to parse %T", v),
			Cause:   err,
		}
	}

	if err := validate.Struct(v); err != nil {
		return &types.Error{
			Code:    code,
			Message: "validation failed",
			Cause:   err,
		}
	}

	return nil
}
