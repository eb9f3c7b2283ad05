package chat

// LastUserIndex returns the index of the last user message, or -1.
func LastUserIndex(msgs []Message) int {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			return i
		}
	}

	return -1
}

func LastUserMessage(msgs []Message) (Message, bool) {
	i := LastUserIndex(msgs)
	if i < 0 {
		return Message{}, false
	}

	return msgs[i], true
}

// WithoutErrors drops messages the UI marked as error placeholders; they are
// never sent upstream.
func WithoutErrors(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))

	for _, m := range msgs {
		if m.IsError {
			continue
		}

		out = append(out, m)
	}

	return out
}

// Clone copies the slice and each message's attachments so callers can
// rewrite content without touching the original request.
func Clone(msgs []Message) []Message {
	out := make([]Message, len(msgs))

	for i, m := range msgs {
		out[i] = m
		if m.Attachments != nil {
			out[i].Attachments = append([]Attachment(nil), m.Attachments...)
		}
	}

	return out
}

// Tail keeps the last n messages.
func Tail(msgs []Message, n int) []Message {
	if n <= 0 || len(msgs) <= n {
		return Clone(msgs)
	}

	return Clone(msgs[len(msgs)-n:])
}
