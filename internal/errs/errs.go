package errs

import (
	"errors"
)

var (
	// ErrFetch indicates a network or transport failure while talking to an upstream host.
	ErrFetch = errors.New("upstream fetch failed")
	// ErrParse indicates that an expected HTML or manifest structure was absent.
	ErrParse = errors.New("parse failed")
	// ErrEvaluation indicates a sandboxed script failure or a missing output variable.
	ErrEvaluation = errors.New("script evaluation failed")
	// ErrCache indicates a filesystem failure in the cache store.
	ErrCache = errors.New("cache failure")
	// ErrNotFound indicates that no matching channel, show, episode or provider exists.
	ErrNotFound = errors.New("not found")
)
