package model

import (
	"errors"
	"fmt"
)

type Status string

const (
	StatusPending              Status = "pending"
	StatusApproved             Status = "approved"
	StatusSectionChiefApproved Status = "section_chief_approved"
	StatusRejected             Status = "rejected"
)

var ErrInvalidTransition = errors.New("invalid status transition")

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusSectionChiefApproved, StatusRejected:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusSectionChiefApproved || s == StatusRejected
}

// TryAdvance returns the status one approval moves s to.
func TryAdvance(s Status) (Status, error) {
	switch s {
	case StatusPending:
		return StatusApproved, nil
	case StatusApproved:
		return StatusSectionChiefApproved, nil
	}
	return s, fmt.Errorf("%w: cannot approve a %q record", ErrInvalidTransition, s)
}

// Reject moves a record still awaiting approval to rejected.
func Reject(s Status) (Status, error) {
	switch s {
	case StatusPending, StatusApproved:
		return StatusRejected, nil
	}
	return s, fmt.Errorf("%w: cannot reject a %q record", ErrInvalidTransition, s)
}

type ApproverType string

const (
	ApproverSupervisor   ApproverType = "supervisor"
	ApproverSectionChief ApproverType = "section_chief"
	// ApproverAdmin marks rows written by administrators outside the two
	// approval stages, e.g. restores from the recycle bin.
	ApproverAdmin ApproverType = "admin"
)

// ApproverTypeFor names the stage that acts on a record in status s.
func ApproverTypeFor(s Status) (ApproverType, error) {
	switch s {
	case StatusPending:
		return ApproverSupervisor, nil
	case StatusApproved:
		return ApproverSectionChief, nil
	}
	return "", fmt.Errorf("%w: no approver for %q", ErrInvalidTransition, s)
}
