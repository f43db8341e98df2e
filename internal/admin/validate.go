package admin

import "github.com/go-playground/validator/v10"

// structValidate runs go-playground/validator struct-tag checks ahead of
// the domain package's semantic validation (code charset, reserved
// prefixes, target scheme), catching malformed request shapes with a
// field-level error before anything touches the Store.
var structValidate = validator.New()

type createLinkBody struct {
	Code      string `json:"code" validate:"required,max=128"`
	Target    string `json:"target" validate:"required,url"`
	Overwrite bool   `json:"overwrite"`
}
