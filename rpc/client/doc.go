// Package client implements the http client of the wbKV server.
//
// The client distributes requests round-robin over all configured endpoints. A request
// that fails on the transport level (connection refused, timeout) is retried on the
// next endpoint up to RetryCount times. Responses of the server are never retried,
// the result code is returned to the caller.
//
// Usage Example:
//
//	c, err := client.NewRPCClient(common.ClientConfig{
//		Endpoints:     []string{"http://localhost:8080"},
//		TimeoutSecond: 5,
//		RetryCount:    3,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer c.Close()
//
//	code, err := c.Save(ctx, "player:1", `{"score":42}`)
//	value, code, err := c.Load(ctx, "player:1")
package client
