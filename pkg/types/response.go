package types

type SuccessEnvelope struct {
	Data any `json:"data"`
	Meta any `json:"meta,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	// Logout tells the client its session was torn down and it must sign in again.
	Logout bool `json:"logout,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
