// Package common provides the data structures shared by the wbKV http server,
// the http client and the command line interface.
//
// Key Components:
//
//   - Response: JSON body of all key/value api responses. The result code of the save
//     service is also sent in the X-Result-Code header and mapped to a http status
//     by HTTPStatus.
//
//   - ServerConfig: configuration of the save service, the sql store and the http
//     server. Converts to savesvc.Config and sqlstore.Options.
//
//   - ClientConfig: configuration of the http client (endpoints, timeout, retries).
//
//   - Logger: custom logging implementation that plugs into Dragonboat's logger
//     facade and gives all packages the same line format.
package common
