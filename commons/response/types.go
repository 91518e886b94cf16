package response

// StandardResponse is the envelope every endpoint answers with.
type StandardResponse struct {
	Status    StatusEnum `json:"status"`
	ErrorCode int        `json:"errorCode"`
	Message   string     `json:"message"`
	Data      any        `json:"data"`
	Errors    []Errors   `json:"errors"`
}

type StatusEnum string

const (
	StatusSuccess StatusEnum = "SUCCESS"
	StatusFailed  StatusEnum = "FAILED"
)

type Errors struct {
	ErrorCode int    `json:"errorCode"`
	Message   string `json:"message"`
	Data      any    `json:"data"`
}

// Success wraps data in a successful envelope.
func Success(data any) StandardResponse {
	return StandardResponse{
		Status:  StatusSuccess,
		Message: "Success",
		Data:    data,
		Errors:  []Errors{},
	}
}

// Failure builds a failed envelope. errs is never serialized as null.
func Failure(code int, message string, data any, errs ...Errors) StandardResponse {
	if errs == nil {
		errs = []Errors{}
	}
	return StandardResponse{
		Status:    StatusFailed,
		ErrorCode: code,
		Message:   message,
		Data:      data,
		Errors:    errs,
	}
}
