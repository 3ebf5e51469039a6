// Package server exposes a save service over http.
//
// Routes:
//
//	PUT    /kv/{key}          save the request body (text payload)
//	GET    /kv/{key}          load the value, returned in the data field
//	HEAD   /kv/{key}          check existence (status only)
//	GET    /kv/{key}/exists   check existence
//	DELETE /kv/{key}          delete the value
//	POST   /flush             write all pending values to the store
//	GET    /stats             service statistics as JSON
//	GET    /metrics           prometheus metrics
//
// Keys containing a slash must be path escaped (%2F).
//
// Every key/value response carries the result code name in the X-Result-Code header and
// a JSON body {"code": "...", "data": "..."}. The http status is derived from the code:
//
//	SUCCESS, EXISTS              200
//	KEY_NOT_FOUND, NOT_EXISTS    404
//	INVALID_KEY, INVALID_PAYLOAD 400
//	OFFLINE                      503
//	SQL_ERROR                    500
//
// If the log level is debug, every request is logged with its status and duration.
package server
