// Package points assigns points and relative positions to race participants
// and aggregates them into season standings.
package points

import "sort"

const minPositionPoints = 15

// Score maps a relative position to points: 50, 45, 40, then 39-p with a
// floor of 15.
func Score(position int) int {
	var p int
	switch position {
	case 1:
		p = 50
	case 2:
		p = 45
	case 3:
		p = 40
	default:
		p = 39 - position
	}
	if p < minPositionPoints {
		p = minPositionPoints
	}
	return p
}

// SeasonPoints sums the best 7 race points and adds 10 for every race beyond 7.
func SeasonPoints(points []int) int {
	return seasonPoints(points, defaultBestRaces, defaultExtraRaceBonus)
}

func seasonPoints(points []int, best, bonus int) int {
	sorted := make([]int, len(points))
	copy(sorted, points)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))

	total := 0
	for i, p := range sorted {
		if i == best {
			break
		}
		total += p
	}
	if extra := len(points) - best; extra > 0 {
		total += extra * bonus
	}
	return total
}
