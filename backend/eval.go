package main

import "math/bits"

// winningWindows holds the 69 four-cell alignments of the 7x6 board:
// 24 horizontal, 21 vertical and 24 diagonal.
var winningWindows []uint64

func init() {
	winningWindows = buildWinningWindows()
}

func buildWinningWindows() []uint64 {
	windows := make([]uint64, 0, 69)
	cellBit := func(col, row int) uint64 {
		return 1 << (col*columnStride + row)
	}
	appendWindow := func(col, row, dCol, dRow int) {
		var w uint64
		for i := 0; i < 4; i++ {
			w |= cellBit(col+i*dCol, row+i*dRow)
		}
		windows = append(windows, w)
	}
	for col := 0; col < boardWidth; col++ {
		for row := 0; row < boardHeight; row++ {
			if row+3 < boardHeight {
				appendWindow(col, row, 0, 1)
			}
			if col+3 < boardWidth {
				appendWindow(col, row, 1, 0)
			}
			if col+3 < boardWidth && row+3 < boardHeight {
				appendWindow(col, row, 1, 1)
			}
			if col+3 < boardWidth && row-3 >= 0 {
				appendWindow(col, row, 1, -1)
			}
		}
	}
	return windows
}

// evaluateBoard scores a quiet position from the side to move's point of
// view. Each alignment window still open for exactly one player counts
// that player's disc total through the configured weights. The result is
// bounded well below any win score.
func evaluateBoard(b Board, weights HeuristicConfig) int {
	own := b.position
	opp := b.position ^ b.mask
	score := 0
	for _, window := range winningWindows {
		ownCount := bits.OnesCount64(own & window)
		oppCount := bits.OnesCount64(opp & window)
		if oppCount == 0 {
			score += windowWeight(weights, ownCount)
		} else if ownCount == 0 {
			score -= windowWeight(weights, oppCount)
		}
	}
	return score
}

func windowWeight(weights HeuristicConfig, count int) int {
	switch count {
	case 2:
		return weights.Two
	case 3:
		return weights.Three
	default:
		return 0
	}
}
