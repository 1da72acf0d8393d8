package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func emptyGrid() [][]int {
	rows := make([][]int, boardHeight)
	for r := range rows {
		rows[r] = make([]int, boardWidth)
	}
	return rows
}

func TestBoardFromGridRoundTrip(t *testing.T) {
	b := playMoves(t, 3, 3, 0, 6, 3)
	grid := gridFromBoard(b)
	parsed, err := boardFromGrid(grid, 0)
	require.NoError(t, err)
	assert.Equal(t, b.Key(), parsed.Key())
	assert.Equal(t, b.Plies(), parsed.Plies())
	assert.Equal(t, b.ToMove(), parsed.ToMove())
}

func TestBoardFromGridDerivesSideToMove(t *testing.T) {
	grid := emptyGrid()
	grid[boardHeight-1][3] = 1
	parsed, err := boardFromGrid(grid, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, parsed.ToMove())

	// An explicit to_move that matches the counts is accepted.
	_, err = boardFromGrid(grid, 2)
	assert.NoError(t, err)
}

func TestBoardFromGridRejectsBadShape(t *testing.T) {
	grid := emptyGrid()[:boardHeight-1]
	_, err := boardFromGrid(grid, 0)
	assert.ErrorIs(t, err, ErrGridShape)

	grid = emptyGrid()
	grid[2] = grid[2][:boardWidth-1]
	_, err = boardFromGrid(grid, 0)
	assert.ErrorIs(t, err, ErrGridShape)
}

func TestBoardFromGridRejectsBadCellValue(t *testing.T) {
	grid := emptyGrid()
	grid[boardHeight-1][0] = 3
	_, err := boardFromGrid(grid, 0)
	assert.ErrorIs(t, err, ErrGridValue)
}

func TestBoardFromGridRejectsBadParity(t *testing.T) {
	grid := emptyGrid()
	grid[boardHeight-1][0] = 2
	_, err := boardFromGrid(grid, 0)
	assert.ErrorIs(t, err, ErrGridParity)

	grid = emptyGrid()
	grid[boardHeight-1][0] = 1
	grid[boardHeight-1][1] = 1
	_, err = boardFromGrid(grid, 0)
	assert.ErrorIs(t, err, ErrGridParity)
}

func TestBoardFromGridRejectsToMoveMismatch(t *testing.T) {
	grid := emptyGrid()
	grid[boardHeight-1][3] = 1
	_, err := boardFromGrid(grid, 1)
	assert.ErrorIs(t, err, ErrGridToMove)
}

func TestBoardFromGridRejectsFloatingDisc(t *testing.T) {
	grid := emptyGrid()
	grid[boardHeight-2][3] = 1 // one row above the floor, nothing below
	_, err := boardFromGrid(grid, 0)
	assert.ErrorIs(t, err, ErrGridFloating)
}

func TestBoardFromGridRejectsImpossibleWin(t *testing.T) {
	// Player 2 already connected four yet it is their turn again.
	grid := emptyGrid()
	for col := 0; col < 4; col++ {
		grid[boardHeight-1][col] = 2
	}
	grid[boardHeight-1][4] = 1
	grid[boardHeight-1][5] = 1
	grid[boardHeight-1][6] = 1
	grid[boardHeight-2][6] = 1
	grid[boardHeight-3][6] = 1
	_, err := boardFromGrid(grid, 0)
	assert.ErrorIs(t, err, ErrGridImpossible)
}

func TestGridFromBoardPlacesRowZeroOnTop(t *testing.T) {
	b := playMoves(t, 0)
	grid := gridFromBoard(b)
	assert.Equal(t, 1, grid[boardHeight-1][0])
	assert.Equal(t, 0, grid[0][0])
}
