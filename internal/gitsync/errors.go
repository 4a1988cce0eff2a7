package gitsync

import (
	"fmt"
	"strings"
)

// Typed errors enabling structured classification without string parsing
// upstream.

// AuthError reports an authentication or authorization failure against the
// remote.
type AuthError struct {
	Op  string
	URL string
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s auth error for %s: %v", e.Op, e.URL, e.Err)
}
func (e *AuthError) Unwrap() error { return e.Err }

// NotFoundError reports a missing remote repository.
type NotFoundError struct {
	Op  string
	URL string
	Err error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found %s: %v", e.Op, e.URL, e.Err)
}
func (e *NotFoundError) Unwrap() error { return e.Err }

// RemoteDivergedError reports that the local branch and its remote have each
// accumulated commits the other lacks. docserve never merges or rebases;
// recovery requires manual intervention, so the working copy is left
// untouched.
type RemoteDivergedError struct {
	Op     string
	URL    string
	Branch string
	Err    error
}

func (e *RemoteDivergedError) Error() string {
	return fmt.Sprintf("%s remote diverged %s@%s: %v", e.Op, e.URL, e.Branch, e.Err)
}
func (e *RemoteDivergedError) Unwrap() error { return e.Err }

// classifyFetchError wraps clone/fetch failures into typed variants when the
// transport error message allows it.
func classifyFetchError(op, url string, err error) error {
	if err == nil {
		return nil
	}
	l := strings.ToLower(err.Error())
	switch {
	case strings.Contains(l, "auth"):
		return &AuthError{Op: op, URL: url, Err: err}
	case strings.Contains(l, "not found") || strings.Contains(l, "repository does not exist"):
		return &NotFoundError{Op: op, URL: url, Err: err}
	default:
		return fmt.Errorf("%s %s: %w", op, url, err)
	}
}
