package api

// ChatMessage is the request body of the chat endpoints. Context is an
// opaque mapping passed through into the prompt verbatim.
type ChatMessage struct {
	Message string                 `json:"message" binding:"required"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// ChatResponse wraps the raw LLM reply.
type ChatResponse struct {
	Response string `json:"response"`
}

// PredictResponse mirrors the classification result. CancerClass repeats
// the prediction for clients that key on the legacy field name.
type PredictResponse struct {
	Prediction  string  `json:"prediction"`
	Confidence  float32 `json:"confidence"`
	CancerClass string  `json:"cancer_class"`
}

// ErrorResponse carries the failure reason of a non-2xx answer.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// HealthResponse answers the root health probe.
type HealthResponse struct {
	Msg string `json:"msg"`
}
