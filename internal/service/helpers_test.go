package service

import (
	appErrors "github.com/campusregistry/registrar-api/pkg/errors"
)

func errorCode(err error) string {
	e := appErrors.FromError(err)
	if e == nil {
		return ""
	}
	return e.Code
}
