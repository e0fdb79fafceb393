package errors

import "errors"

var (
	ErrRuleNotFound             = errors.New("distribution rule not found")
	ErrRuleNotFoundOrInactive   = errors.New("distribution rule not found or inactive")
	ErrRuleNameTaken            = errors.New("distribution rule name already exists")
	ErrRuleAlreadyRunning       = errors.New("distribution rule is already running")
	ErrRuleRunning              = errors.New("distribution rule cannot be deleted while running")
	ErrInvalidRuleInput         = errors.New("invalid distribution rule input")
	ErrRecordNotFound           = errors.New("distribution record not found")
	ErrRecordExists             = errors.New("distribution record already exists for this article and target site")
	ErrRecordAlreadyDistributed = errors.New("cannot retry successful distribution")
	ErrInvalidRecordInput       = errors.New("invalid distribution record input")
	ErrTargetSiteNotFound       = errors.New("target site not found")
)
