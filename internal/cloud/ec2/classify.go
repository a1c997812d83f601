package ec2

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/aws/aws-sdk-go/aws/awserr"

	"github.com/lobot-sh/lobot/internal/errors"
)

// classify maps an AWS API failure onto the structured error taxonomy.
// Auth failures are fatal and never retried; unknown ids are NOTFOUND;
// state rejections are precondition violations; rate limits and network
// blips are PROVIDER, which polling loops may absorb.
func classify(err error, message string) error {
	if err == nil {
		return nil
	}

	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var aerr awserr.Error
	if stderrors.As(err, &aerr) {
		switch aerr.Code() {
		case "AuthFailure", "UnauthorizedOperation", "ExpiredToken",
			"RequestExpired", "InvalidClientTokenId", "MissingAuthenticationToken":
			return errors.WrapWithCode(err, errors.ErrAuth, message,
				"Your AWS credentials are invalid or expired. Refresh them with: aws configure")
		case "IncorrectInstanceState", "IncorrectState":
			return errors.WrapWithCode(err, errors.ErrTransition, message,
				"The instance isn't in a state that allows this action. Re-check with: lobot list")
		case "RequestLimitExceeded", "Throttling", "ThrottlingException",
			"ServiceUnavailable", "InternalError", "RequestTimeout":
			return errors.WrapWithCode(err, errors.ErrProvider, message,
				"AWS is throttling or briefly unavailable; this usually clears on its own")
		}
		if strings.HasPrefix(aerr.Code(), "InvalidInstanceID") ||
			strings.HasPrefix(aerr.Code(), "InvalidAMIID") {
			return errors.WrapWithCode(err, errors.ErrNotFound, message,
				"Check the id with: lobot list")
		}
	}

	// Anything else (DNS, TCP resets, TLS hiccups) is treated as transient.
	return errors.WrapWithCode(err, errors.ErrProvider, message,
		"Check your network connection and retry")
}
