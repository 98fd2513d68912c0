package assistant

// ErrorKind is the caller-visible failure class of an orchestrated call.
type ErrorKind string

const (
	ErrorKindNone             ErrorKind = ""
	ErrorKindEmptyInput       ErrorKind = "empty_input"
	ErrorKindCompletionFailed ErrorKind = "completion_failed"
)

// Error is the user-safe error payload. Provider detail never reaches it.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

var userMessages = map[PreambleVariant]map[ErrorKind]string{
	PreambleChat: {
		ErrorKindEmptyInput:       "Please provide a message",
		ErrorKindCompletionFailed: "Failed to generate a response. Please try again.",
	},
	PreambleRecommendation: {
		ErrorKindEmptyInput:       "Please provide a research question",
		ErrorKindCompletionFailed: "Failed to generate recommendation. Please try again.",
	},
}

// UserMessage returns the text shown to users for a failure kind.
func UserMessage(v PreambleVariant, kind ErrorKind) string {
	if msgs, ok := userMessages[v]; ok {
		if msg, ok := msgs[kind]; ok {
			return msg
		}
	}
	return userMessages[PreambleChat][ErrorKindCompletionFailed]
}

func newError(v PreambleVariant, kind ErrorKind) *Error {
	if kind == ErrorKindNone {
		return nil
	}
	return &Error{Kind: kind, Message: UserMessage(v, kind)}
}
