package models

import "errors"

// ErrInputUnavailable means there is nothing to compare: fewer than two
// snapshots, or snapshots without usable rows. No report is produced.
var ErrInputUnavailable = errors.New("input unavailable")
