package chat

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkoukk/tiktoken-go"
)

const (
	tokenEncoding = "cl100k_base"

	// a failed load (usually the BPE download) is retried after this long
	encodingRetryInterval = time.Minute
)

var (
	encMu       sync.Mutex
	enc         *tiktoken.Tiktoken
	encErr      error
	encFailedAt time.Time

	getEncoding = tiktoken.GetEncoding
)

func encoding() (*tiktoken.Tiktoken, error) {
	encMu.Lock()
	defer encMu.Unlock()

	if enc != nil {
		return enc, nil
	}

	if encErr != nil && time.Since(encFailedAt) < encodingRetryInterval {
		return nil, encErr
	}

	e, err := getEncoding(tokenEncoding)
	if err != nil {
		encErr = fmt.Errorf("load %s encoding: %w", tokenEncoding, err)
		encFailedAt = time.Now()

		return nil, encErr
	}

	enc, encErr = e, nil

	return enc, nil
}

// CountTokens estimates the prompt size of msgs with the cl100k_base
// encoding. When the encoding cannot be loaded the count is 0 and the error
// is returned; the load is attempted again on a later call.
func CountTokens(msgs []Message) (int, error) {
	e, err := encoding()
	if err != nil {
		return 0, err
	}

	total := 0
	for _, m := range msgs {
		// role and separators
		total += 4
		total += len(e.Encode(m.Content, nil, nil))
	}

	return total, nil
}
