package types

// User represents a user record served by the user service.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// ErrorResponse is the JSON body returned for failed requests.
type ErrorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}
