package sync

import "errors"

// Branch validation failures returned by SyncBranch and TriggerBranch.
var (
	ErrUnknownBranch  = errors.New("unknown branch")
	ErrInactiveBranch = errors.New("branch is not active")
	ErrNoHost         = errors.New("branch has no remote host")
	ErrNoBranchStore  = errors.New("no branch store configured")
)
