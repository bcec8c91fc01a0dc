package model

// VirtualTryOnResponse is the body returned by the Virtual Try-On predict
// endpoint.
type VirtualTryOnResponse struct {
	Predictions []Prediction `json:"predictions"`
}

// Prediction is a single generated image. A prediction filtered by the
// Responsible AI checks carries a reason instead of image bytes.
type Prediction struct {
	MimeType           string         `json:"mimeType"`
	BytesBase64Encoded string         `json:"bytesBase64Encoded"`
	RAIFilteredReason  string         `json:"raiFilteredReason,omitempty"`
	SafetyAttributes   map[string]any `json:"safetyAttributes,omitempty"`
}
