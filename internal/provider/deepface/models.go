package deepface

// RepresentRequest for POST /represent
type RepresentRequest struct {
	Img              string `json:"img"`               // data URI, base64 encoded
	Model            string `json:"model_name"`        // "Facenet", "Facenet512", "VGG-Face", ...
	Detector         string `json:"detector_backend"`  // "opencv", "retinaface", "skip", ...
	EnforceDetection bool   `json:"enforce_detection"` // false makes the whole image a face
}

// RepresentResponse from POST /represent
type RepresentResponse struct {
	Results []RepresentResult `json:"results"`
}

type RepresentResult struct {
	Embedding      []float64  `json:"embedding"`
	FacialArea     FacialArea `json:"facial_area"`
	FaceConfidence float64    `json:"face_confidence"`
}

type FacialArea struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type errorResponse struct {
	Error string `json:"error"`
}
