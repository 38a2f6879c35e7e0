package config

import "errors"

var (
	// ErrMissingSetting indicates a required setting was left empty.
	ErrMissingSetting = errors.New("missing required setting")

	// ErrInvalidSetting indicates a setting has an unsupported value.
	ErrInvalidSetting = errors.New("invalid setting")
)
