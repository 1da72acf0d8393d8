package main

import "fmt"

// boardFromGrid converts an external 6x7 grid (row 0 on top, cells 0/1/2)
// into a bitboard. toMove may be 0 to derive the side to move from the
// disc counts; player 1 always moves first.
func boardFromGrid(rows [][]int, toMove int) (Board, error) {
	if len(rows) != boardHeight {
		return Board{}, fmt.Errorf("%w: got %d rows", ErrGridShape, len(rows))
	}
	for i, row := range rows {
		if len(row) != boardWidth {
			return Board{}, fmt.Errorf("%w: row %d has %d columns", ErrGridShape, i, len(row))
		}
	}

	count1, count2 := 0, 0
	for _, row := range rows {
		for _, cell := range row {
			switch cell {
			case 0:
			case 1:
				count1++
			case 2:
				count2++
			default:
				return Board{}, fmt.Errorf("%w: got %d", ErrGridValue, cell)
			}
		}
	}
	derived := 0
	switch {
	case count1 == count2:
		derived = 1
	case count1 == count2+1:
		derived = 2
	default:
		return Board{}, fmt.Errorf("%w: player 1 has %d discs, player 2 has %d", ErrGridParity, count1, count2)
	}
	if toMove == 0 {
		toMove = derived
	} else if toMove != derived {
		return Board{}, fmt.Errorf("%w: counts imply player %d", ErrGridToMove, derived)
	}

	var b Board
	for col := 0; col < boardWidth; col++ {
		sawEmpty := false
		for row := 0; row < boardHeight; row++ {
			// rows[0] is the top row; scan bottom-up.
			cell := rows[boardHeight-1-row][col]
			if cell == 0 {
				sawEmpty = true
				continue
			}
			if sawEmpty {
				return Board{}, fmt.Errorf("%w: column %d", ErrGridFloating, col)
			}
			bit := uint64(1) << (col*columnStride + row)
			b.mask |= bit
			if cell == toMove {
				b.position |= bit
			}
			b.plies++
		}
	}

	// The side to move can never already own an alignment: the game would
	// have ended on the opponent's previous turn.
	if hasAlignment(b.position) {
		return Board{}, fmt.Errorf("%w: the side to move already connected four", ErrGridImpossible)
	}
	return b, nil
}

// gridFromBoard renders the bitboard back into the external 6x7 layout,
// row 0 on top.
func gridFromBoard(b Board) [][]int {
	rows := make([][]int, boardHeight)
	for r := 0; r < boardHeight; r++ {
		row := make([]int, boardWidth)
		for col := 0; col < boardWidth; col++ {
			row[col] = b.CellAt(col, boardHeight-1-r)
		}
		rows[r] = row
	}
	return rows
}
