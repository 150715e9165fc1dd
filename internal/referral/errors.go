package referral

import "errors"

var (
	// ErrCreationFailed is returned when the platform refuses to create an invite link.
	ErrCreationFailed = errors.New("invite link creation failed")
	// ErrPublishFailed is returned when the summary could be neither edited nor recreated.
	ErrPublishFailed = errors.New("summary publish failed")
)
