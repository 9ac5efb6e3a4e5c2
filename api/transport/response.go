package transport

import "encoding/json"

// Envelope wraps every API response, successful or not.
type Envelope struct {
	Status string      `json:"status"`
	Code   string      `json:"code,omitempty"`
	Data   interface{} `json:"data,omitempty"`
	Error  interface{} `json:"error,omitempty"`
	Meta   interface{} `json:"meta,omitempty"`
}

// PageMeta accompanies list responses.
type PageMeta struct {
	Count  int `json:"count"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// DenialMeta tells a rejected caller what to do next: sign in when LoginURL
// is set, otherwise which roles the route needs.
type DenialMeta struct {
	LoginURL      string   `json:"login_url,omitempty"`
	Role          string   `json:"role,omitempty"`
	RequiredRoles []string `json:"required_roles,omitempty"`
}

func NewSuccess(data interface{}, meta interface{}) Envelope {
	return Envelope{
		Status: "success",
		Data:   data,
		Meta:   meta,
	}
}

func NewError(code string, err interface{}, meta interface{}) Envelope {
	return Envelope{
		Status: "error",
		Code:   code,
		Error:  err,
		Meta:   meta,
	}
}

// Bytes encodes the envelope, degrading to a bare error envelope if the
// payload cannot be marshalled.
func (e Envelope) Bytes() []byte {
	out, err := json.Marshal(e)
	if err != nil {
		return []byte(`{"status":"error","code":"INTERNAL"}`)
	}
	return out
}
