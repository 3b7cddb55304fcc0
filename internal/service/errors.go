package service

import "errors"

var (
	ErrInvalidAddress  = errors.New("address is empty or not phone-number-like")
	ErrContactNotFound = errors.New("contact not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrInvalidStatus   = errors.New("unknown contact status")
)
