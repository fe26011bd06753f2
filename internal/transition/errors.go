package transition

import (
	"errors"
	"fmt"
)

// Sentinel errors for transition operations. Use errors.Is to check them.
var (
	// ErrTypeMismatch indicates an operation between two different types.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrInvalidCast indicates a cast to a host type that does not match.
	ErrInvalidCast = errors.New("invalid cast")

	// ErrInvalidOperation indicates an operator that is undefined for the type.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrDivideByZero is returned by Div and Mod with a zero divisor.
	ErrDivideByZero = errors.New("divide by zero")

	// ErrNoneType indicates a value operation on the None type.
	ErrNoneType = errors.New("none type carries no value")

	// ErrIncompatibleType indicates a conversion with no defined mapping.
	ErrIncompatibleType = errors.New("incompatible type")

	// ErrStringConversion indicates a string that could not be parsed.
	ErrStringConversion = errors.New("string conversion failed")
)

// Error records the operation and operand types of a failed transition operation.
type Error struct {
	Op    string
	Left  Type
	Right Type
	Err   error
}

func (e *Error) Error() string {
	if e.Right == None && e.Left == None {
		return fmt.Sprintf("transition %s: %v", e.Op, e.Err)
	}
	if e.Right == None {
		return fmt.Sprintf("transition %s %s: %v", e.Op, e.Left, e.Err)
	}
	return fmt.Sprintf("transition %s (%s, %s): %v", e.Op, e.Left, e.Right, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
