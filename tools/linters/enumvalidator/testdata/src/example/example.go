package example

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type FrameType string

const (
	FrameHeartbeat FrameType = "heartbeat"
)

// Label has no constants, so it is free-form.
type Label string

type ChatMessage struct {
	Role  Role
	Label Label
}

type Frame struct {
	Type FrameType
}

func bad() {
	m := &ChatMessage{}
	m.Role = "moderator" // want "enum field Role assigned string literal"

	_ = Frame{Type: "ping"} // want "enum field Type assigned string literal"
}

func good() {
	m := &ChatMessage{}
	m.Role = RoleAssistant // OK: using constant
	m.Label = "anything"   // OK: not an enum

	_ = Frame{Type: FrameHeartbeat}
}

func alsoGood() {
	// OK: Variable, not literal
	role := RoleUser
	m := &ChatMessage{Role: role}
	_ = m
}
