// Package rpc exposes the save service over HTTP.
//
// The package is organized into several subpackages:
//
//   - common: Server and client configuration, the JSON response envelope, the
//     mapping of result codes to HTTP status codes and the logger setup.
//
//   - server: HTTP handlers in front of a *savesvc.Service, including the
//     /stats and prometheus /metrics endpoints.
//
//   - client: A round-robin HTTP client with retries, used by the kv commands.
package rpc
