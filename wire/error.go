package wire

import "fmt"

// UnknownOpError is returned by Object.Dispatch when given a message
// with an opcode the object does not understand.
type UnknownOpError struct {
	Interface string
	Op        uint16
}

func (err UnknownOpError) Error() string {
	return fmt.Sprintf("unknown event opcode for %v: %v", err.Interface, err.Op)
}

// UnknownSenderIDError is returned when an incoming message is
// addressed to an object ID that is not registered.
type UnknownSenderIDError struct {
	Msg *MessageBuffer
}

func (err UnknownSenderIDError) Error() string {
	return fmt.Sprintf("unknown sender object ID: %v", err.Msg.Sender())
}
