package repository

import "errors"

// ErrNoRecord is returned by writes whose target row could not be created, which
// happens when the provider it references does not exist.
var ErrNoRecord = errors.New("record not found")
