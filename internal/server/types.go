package server

type errorResponse struct {
	Success bool   `json:"success"`
	Cause   string `json:"cause"`
}

type statusResponse struct {
	Loading  bool    `json:"loading"`
	Progress float64 `json:"progress"`
}
