package main

import (
	"errors"
	"fmt"
)

// IllegalMoveError reports an attempt to drop a disc into a column that
// cannot accept one.
type IllegalMoveError struct {
	Column int
	Reason string
}

func (e *IllegalMoveError) Error() string {
	return fmt.Sprintf("illegal move in column %d: %s", e.Column, e.Reason)
}

// NoLegalMoveError reports that a position is terminal: either the board is
// full or one side already connected four.
type NoLegalMoveError struct{}

func (e *NoLegalMoveError) Error() string {
	return "no legal move: position is terminal"
}

var (
	ErrGridShape      = errors.New("grid must be 6 rows of 7 columns")
	ErrGridValue      = errors.New("grid cells must be 0, 1 or 2")
	ErrGridFloating   = errors.New("grid contains a floating disc")
	ErrGridParity     = errors.New("grid disc counts do not match any legal move sequence")
	ErrGridToMove     = errors.New("to_move does not match the grid disc counts")
	ErrGridImpossible = errors.New("grid is not reachable by legal play")
)
