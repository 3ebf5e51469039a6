package common

import (
	"fmt"
	"github.com/ValentinKolb/wbKV/lib/savesvc"
	"net/http"
)

// HeaderResultCode is the response header carrying the result code name
const HeaderResultCode = "X-Result-Code"

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Response is the JSON body of every key/value api response.
type Response struct {
	// Name of the result code (e.g. SUCCESS, KEY_NOT_FOUND)
	Code string `json:"code"`

	Data string `json:"data,omitempty"` // Used for: Load
	Err  string `json:"err,omitempty"`  // Transport level errors (e.g. unreadable body, failed flush)
}

// NewResponse creates a response for a save service result
func NewResponse(code savesvc.RetCode, data string) *Response {
	return &Response{
		Code: code.String(),
		Data: data,
	}
}

// NewErrorResponse creates a response for a request that failed outside the save service
func NewErrorResponse(code savesvc.RetCode, err error) *Response {
	resp := &Response{
		Code: code.String(),
	}
	if err != nil {
		resp.Err = err.Error()
	}
	return resp
}

// RetCode parses the code of the response
func (r *Response) RetCode() (savesvc.RetCode, error) {
	code, ok := savesvc.ParseRetCode(r.Code)
	if !ok {
		return savesvc.RetCOffline, fmt.Errorf("unknown result code %q", r.Code)
	}
	return code, nil
}

// --------------------------------------------------------------------------
// Status Mapping
// --------------------------------------------------------------------------

// HTTPStatus maps a result code to the http status code of the response
func HTTPStatus(code savesvc.RetCode) int {
	switch code {
	case savesvc.RetCSuccess, savesvc.RetCExists:
		return http.StatusOK
	case savesvc.RetCKeyNotFound, savesvc.RetCNotExists:
		return http.StatusNotFound
	case savesvc.RetCInvalidKey, savesvc.RetCInvalidPayload:
		return http.StatusBadRequest
	case savesvc.RetCOffline:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
