package remote

// Outcome is how a response status is treated before its body is read.
type Outcome int

const (
	Pass Outcome = iota
	ClientError
	ServerError
)

func (o Outcome) String() string {
	switch o {
	case ClientError:
		return "client_error"
	case ServerError:
		return "server_error"
	default:
		return "pass"
	}
}

// Classify maps a status code to an Outcome. Both response strategies call
// it before any item decoding starts, so a failing response never yields
// items.
func Classify(status int) Outcome {
	switch {
	case status >= 500:
		return ServerError
	case status >= 400:
		return ClientError
	default:
		return Pass
	}
}
