package ai

import "errors"

// ErrEmptyCompletion is returned when a model replies without any choice.
var ErrEmptyCompletion = errors.New("model returned no completion")
