package ws

// Response is every server-to-client frame.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data"`
}

// Outcome tags clients match on. Success tags go in Message, failure tags in Error.
const (
	TagConnected          = "connected"
	TagContestInitialized = "contest initialized"
	TagJoined             = "joined contest"
	TagRejoined           = "User already joined the contest"
	TagCorrect            = "correct"
	TagIncorrect          = "incorrect"
	TagLeft               = "left contest"

	TagAlreadyInitialized = "contest already initialized"
	TagNoQuestions        = "no questions found for contest"
	TagSubmissionExists   = "submission already exist"
	TagNotInContest       = "join a contest first"
	TagContestMismatch    = "contest mismatch"
	TagQuestionNotFound   = "question not found"
	TagInvalidMessage     = "invalid message"
	TagUnhandled          = "unhandled message type"
	TagUnauthorized       = "UNAUTHORIZED"
	TagInternalPrefix     = "internal error: "
)

func ok(tag string, data any) Response {
	return Response{Success: true, Message: tag, Data: data}
}

func fail(tag string, data any) Response {
	return Response{Success: false, Error: tag, Data: data}
}
