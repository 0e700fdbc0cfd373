package validate

import (
	"strings"
)

type ErrField struct {
	Field string `json:"field"`
	Msg   string `json:"msg"`
}

type Errs []ErrField

func (e Errs) Error() string { // error interface
	var b strings.Builder
	for i, ef := range e {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(ef.Field + ": " + ef.Msg)
	}
	return b.String()
}

// Collect drops the nil results of the helpers below.
func Collect(fields ...*ErrField) Errs {
	var out Errs
	for _, f := range fields {
		if f != nil {
			out = append(out, *f)
		}
	}
	return out
}

// Helpers
func Required(field, value string) *ErrField {
	if strings.TrimSpace(value) == "" {
		return &ErrField{Field: field, Msg: "required"}
	}
	return nil
}

func NonEmpty(field string, values []string) *ErrField {
	if len(values) == 0 {
		return &ErrField{Field: field, Msg: "at least one value required"}
	}
	return nil
}

func MaxLen(field, value string, n int) *ErrField {
	if len(value) > n {
		return &ErrField{Field: field, Msg: "too long"}
	}
	return nil
}
