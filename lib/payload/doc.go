// Package payload defines the contract every value stored through the save
// service must implement, plus a few ready-made adapters.
//
// A Payload serializes its complete state to text and restores it from that text
// again. Round-trip fidelity is required: Deserialize(Serialize()) must reproduce
// an equal value. Handling malformed input is the responsibility of the payload
// implementation; Deserialize reports it as an error.
//
// Adapters:
//   - Text:    a raw string payload (used by the HTTP surface)
//   - JSON[T]: wraps any encoding/json compatible value
//   - Gob[T]:  wraps any gob-encodable value, the binary form is base64 encoded
//
// Usage Example:
//
//	type Player struct {
//	    Name  string `json:"name"`
//	    Score int    `json:"score"`
//	}
//
//	p := payload.NewJSON(Player{Name: "alice", Score: 42})
//	svc.Save("player:alice", p)
//
//	var loaded payload.JSON[Player]
//	code, _ := svc.Load("player:alice", &loaded).Await(ctx)
package payload
