package domain

import "fmt"

// LedgerError ties a store failure to the record it happened on.
type LedgerError struct {
	ErrorObj error
	EntityID string
	Other    []error
}

func (l *LedgerError) Error() string {
	return l.ErrorObj.Error()
}

func (l *LedgerError) ErrorOut() string {
	return fmt.Sprintf("%v: %v", l.ErrorObj.Error(), l.EntityID)
}

func (l *LedgerError) Unwrap() []error {
	return append([]error{l.ErrorObj}, l.Other...)
}

func NewLedgerError(err error, entityID string, e ...error) *LedgerError {
	return &LedgerError{
		ErrorObj: err,
		EntityID: entityID,
		Other:    e,
	}
}
