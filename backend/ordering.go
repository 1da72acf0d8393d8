package main

// columnExploreOrder visits the columns center-out. Central columns take
// part in more alignments, so trying them first tightens the alpha-beta
// window sooner.
var columnExploreOrder = [boardWidth]int{3, 4, 2, 5, 1, 6, 0}

// orderedColumns returns the columns whose landing squares appear in
// allowed, center-out, with ttBest promoted to the front when it is one of
// them. ttBest < 0 means no table suggestion. The ordering is advisory
// only; it never changes which moves are searched.
func orderedColumns(allowed uint64, ttBest int) []int {
	cols := make([]int, 0, boardWidth)
	if ttBest >= 0 && ttBest < boardWidth && allowed&columnMask(ttBest) != 0 {
		cols = append(cols, ttBest)
	}
	for _, col := range columnExploreOrder {
		if col == ttBest {
			continue
		}
		if allowed&columnMask(col) != 0 {
			cols = append(cols, col)
		}
	}
	return cols
}
