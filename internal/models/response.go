package models

// Response is the uniform envelope every coupon and auth operation returns.
// Data is null on business failures and carries the relevant record on success.
type Response struct {
	StatusCode int         `json:"statusCode"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data"`
}
