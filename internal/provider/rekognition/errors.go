package rekognition

import "errors"

var (
	// ErrInvalidCredentials indicates that AWS credentials are invalid or missing
	ErrInvalidCredentials = errors.New("invalid or missing AWS credentials")

	// ErrImageRejected indicates Rekognition refused the image bytes (format or size)
	ErrImageRejected = errors.New("image rejected by rekognition")
)
