package main

import "strings"

const (
	boardWidth  = 7
	boardHeight = 6
	totalCells  = boardWidth * boardHeight

	// Each column occupies columnStride bits: boardHeight playable rows
	// plus one sentinel bit on top. The sentinel keeps shift chains from
	// bleeding across column boundaries, so the four alignment directions
	// are plain shifts: 1 (vertical), columnStride (horizontal),
	// boardHeight and boardHeight+2 (the two diagonals).
	columnStride = boardHeight + 1
)

// Board is a value-type bitboard for a 7x6 four-in-a-row position. mask
// holds every disc on the board, position holds the discs of the side to
// move. Play returns a new Board; boards never alias each other.
type Board struct {
	position uint64
	mask     uint64
	plies    int
}

var (
	bottomRowMask uint64
	fullBoardMask uint64
)

func init() {
	for col := 0; col < boardWidth; col++ {
		bottomRowMask |= bottomMask(col)
	}
	fullBoardMask = bottomRowMask * ((1 << boardHeight) - 1)
}

func bottomMask(col int) uint64 {
	return 1 << (col * columnStride)
}

func topMask(col int) uint64 {
	return 1 << (boardHeight - 1 + col*columnStride)
}

func columnMask(col int) uint64 {
	return ((1 << boardHeight) - 1) << (col * columnStride)
}

func NewBoard() Board {
	return Board{}
}

func (b Board) Plies() int {
	return b.plies
}

func (b Board) IsFull() bool {
	return b.plies == totalCells
}

// ToMove returns the player number (1 or 2) of the side to move. Player 1
// always owns the first disc of the game.
func (b Board) ToMove() int {
	if b.plies%2 == 0 {
		return 1
	}
	return 2
}

// Key identifies the position uniquely, including whose turn it is:
// adding mask to position sets a one bit above the top disc of every
// column, so no two distinct positions collide.
func (b Board) Key() uint64 {
	return b.position + b.mask
}

func (b Board) CanPlay(col int) bool {
	if col < 0 || col >= boardWidth {
		return false
	}
	return b.mask&topMask(col) == 0
}

// Play drops a disc for the side to move and returns the resulting
// position with the turn switched.
func (b Board) Play(col int) (Board, error) {
	if col < 0 || col >= boardWidth {
		return Board{}, &IllegalMoveError{Column: col, Reason: "column out of range"}
	}
	if !b.CanPlay(col) {
		return Board{}, &IllegalMoveError{Column: col, Reason: "column is full"}
	}
	return b.play(col), nil
}

// play is the unchecked hot-path variant of Play.
func (b Board) play(col int) Board {
	next := b
	next.position ^= next.mask
	next.mask |= next.mask + bottomMask(col)
	next.plies++
	return next
}

func (b Board) LegalColumns() []int {
	cols := make([]int, 0, boardWidth)
	for col := 0; col < boardWidth; col++ {
		if b.CanPlay(col) {
			cols = append(cols, col)
		}
	}
	return cols
}

// possibleMask marks the landing square of every playable column.
func (b Board) possibleMask() uint64 {
	return (b.mask + bottomRowMask) & fullBoardMask
}

// IsWinningMove reports whether dropping into col completes four in a row
// for the side to move. Pure bit arithmetic, no cell scanning.
func (b Board) IsWinningMove(col int) bool {
	return b.winningMask()&b.possibleMask()&columnMask(col) != 0
}

// winningMask returns every empty square that would complete an alignment
// for the side to move.
func (b Board) winningMask() uint64 {
	return winningSquares(b.position, b.mask)
}

// opponentWinningMask returns every empty square that would complete an
// alignment for the opponent.
func (b Board) opponentWinningMask() uint64 {
	return winningSquares(b.position^b.mask, b.mask)
}

// NonLosingMoves returns the landing squares of the moves that do not hand
// the opponent an immediate win: a forced block when the opponent threatens
// to win next turn, and never a square directly below an opponent winning
// square. A zero result means every move loses on the spot.
func (b Board) NonLosingMoves() uint64 {
	possible := b.possibleMask()
	opponentWins := b.opponentWinningMask()
	forced := possible & opponentWins
	if forced != 0 {
		if forced&(forced-1) != 0 {
			// Two or more immediate threats cannot all be blocked.
			return 0
		}
		possible = forced
	}
	return possible &^ (opponentWins >> 1)
}

// HasWinner reports whether the player who made the last move connected
// four.
func (b Board) HasWinner() bool {
	return hasAlignment(b.position ^ b.mask)
}

// Mirror reflects the position left-right. Scores are invariant under this
// transform.
func (b Board) Mirror() Board {
	var m Board
	m.plies = b.plies
	colBits := uint64((1 << boardHeight) - 1)
	for col := 0; col < boardWidth; col++ {
		src := boardWidth - 1 - col
		m.position |= ((b.position >> (src * columnStride)) & colBits) << (col * columnStride)
		m.mask |= ((b.mask >> (src * columnStride)) & colBits) << (col * columnStride)
	}
	return m
}

// CellAt returns 0 for empty, otherwise the owning player number. row 0 is
// the bottom row.
func (b Board) CellAt(col, row int) int {
	bit := uint64(1) << (col*columnStride + row)
	if b.mask&bit == 0 {
		return 0
	}
	toMove := b.ToMove()
	if b.position&bit != 0 {
		return toMove
	}
	return 3 - toMove
}

func (b Board) String() string {
	var sb strings.Builder
	for row := boardHeight - 1; row >= 0; row-- {
		for col := 0; col < boardWidth; col++ {
			switch b.CellAt(col, row) {
			case 1:
				sb.WriteByte('x')
			case 2:
				sb.WriteByte('o')
			default:
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func hasAlignment(pos uint64) bool {
	// Vertical.
	m := pos & (pos >> 1)
	if m&(m>>2) != 0 {
		return true
	}
	// Horizontal.
	m = pos & (pos >> columnStride)
	if m&(m>>(2*columnStride)) != 0 {
		return true
	}
	// Diagonal, falling.
	m = pos & (pos >> boardHeight)
	if m&(m>>(2*boardHeight)) != 0 {
		return true
	}
	// Diagonal, rising.
	m = pos & (pos >> (boardHeight + 2))
	return m&(m>>(2*(boardHeight+2))) != 0
}

// winningSquares computes every empty square that completes four in a row
// for the discs in position, given the overall occupancy mask.
func winningSquares(position, mask uint64) uint64 {
	// Vertical.
	r := (position << 1) & (position << 2) & (position << 3)

	// Horizontal.
	p := (position << columnStride) & (position << (2 * columnStride))
	r |= p & (position << (3 * columnStride))
	r |= p & (position >> columnStride)
	p = (position >> columnStride) & (position >> (2 * columnStride))
	r |= p & (position << columnStride)
	r |= p & (position >> (3 * columnStride))

	// Diagonal, falling.
	p = (position << boardHeight) & (position << (2 * boardHeight))
	r |= p & (position << (3 * boardHeight))
	r |= p & (position >> boardHeight)
	p = (position >> boardHeight) & (position >> (2 * boardHeight))
	r |= p & (position << boardHeight)
	r |= p & (position >> (3 * boardHeight))

	// Diagonal, rising.
	p = (position << (boardHeight + 2)) & (position << (2 * (boardHeight + 2)))
	r |= p & (position << (3 * (boardHeight + 2)))
	r |= p & (position >> (boardHeight + 2))
	p = (position >> (boardHeight + 2)) & (position >> (2 * (boardHeight + 2)))
	r |= p & (position << (boardHeight + 2))
	r |= p & (position >> (3 * (boardHeight + 2)))

	return r & (fullBoardMask ^ mask)
}
