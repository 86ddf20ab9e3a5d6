package rekognition

// Config holds configuration for AWS Rekognition face detection
type Config struct {
	// Region is the AWS region where Rekognition service will be used (e.g., "us-east-1")
	Region string

	// MinConfidence discards detections below this score (0-100)
	MinConfidence float32

	// CropMargin widens the detected box on every side, as a fraction of
	// its width/height, before the crop is handed to the describer
	CropMargin float64
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		Region:        "us-east-1",
		MinConfidence: 90,
		CropMargin:    0.2,
	}
}
