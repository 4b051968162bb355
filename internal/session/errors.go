package session

import "errors"

// ErrIncompleteSession is returned by Login when token or email is empty.
var ErrIncompleteSession = errors.New("session: token and email are both required")
