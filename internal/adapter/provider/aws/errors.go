package awsprovider

import (
	"errors"
	"strings"

	"github.com/aws/smithy-go"

	"fleetpilot/internal/app/ports"
)

// wrap converts an SDK error into a *ports.ProviderError.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ports.ProviderError{Kind: kindOf(err), Op: op, Err: err}
}

func kindOf(err error) ports.ProviderErrorKind {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return ports.ProviderUnknown
	}
	code := apiErr.ErrorCode()
	switch {
	// A missing attachment means the volume is not attached, not that it is missing.
	case code == "IncorrectInstanceState", code == "IncorrectState", code == "VolumeInUse",
		code == "InvalidVolume.ZoneMismatch", code == "InvalidAttachment.NotFound":
		return ports.ProviderInvalidState
	case strings.HasSuffix(code, ".NotFound"), strings.HasSuffix(code, ".Malformed"),
		code == "ResourceNotFound", code == "ResourceNotFoundException":
		return ports.ProviderNotFound
	case code == "UnauthorizedOperation", code == "AccessDenied", code == "AccessDeniedException",
		code == "AuthFailure":
		return ports.ProviderPermissionDenied
	case code == "RequestLimitExceeded", code == "Throttling", code == "ThrottlingException":
		return ports.ProviderRateLimited
	}
	return ports.ProviderUnknown
}

func notFound(op, id string) error {
	return &ports.ProviderError{Kind: ports.ProviderNotFound, Op: op, Err: errors.New(id + " not found")}
}
