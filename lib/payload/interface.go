package payload

// Payload is implemented by every value that can be stored by the save service.
type Payload interface {
	// Serialize returns a complete text representation of the state.
	Serialize() string
	// Deserialize repopulates the receiver from a text produced by Serialize.
	Deserialize(data string) error
}
