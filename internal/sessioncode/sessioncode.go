// Package sessioncode derives a short human-readable code for a class
// session and renders it as a QR-styled pixel grid. The grid is cosmetic: it
// carries finder and timing patterns at the real QR positions but the data
// region is just a seeded pseudo-random fill, so it does not scan.
package sessioncode

import (
	"fmt"
	"strconv"
	"strings"
)

// CodePrefix brands every session code.
const CodePrefix = "OFP-"

// GridSize is the side length of the rendered pixel grid.
const GridSize = 21

// Code maps (groupID, date, startTime) to a fixed-width base-36 code. The
// same inputs always yield the same code, within and across processes.
func Code(groupID int, date, startTime string) string {
	raw := fmt.Sprintf("%d-%s-%s", groupID, date, startTime)
	var hash int32
	for _, c := range raw {
		hash = hash<<5 - hash + int32(c)
	}
	v := int64(hash)
	if v < 0 {
		v = -v
	}
	enc := strings.ToUpper(strconv.FormatInt(v, 36))
	if len(enc) < 6 {
		enc = strings.Repeat("0", 6-len(enc)) + enc
	}
	return CodePrefix + enc[:6]
}

// Grid renders a code into a 21×21 boolean pixel grid: three 7×7 finder
// patterns, alternating timing lines on row and column 6, and a data region
// filled from a linear-congruential stream seeded by the code.
func Grid(code string) [GridSize][GridSize]bool {
	var grid [GridSize][GridSize]bool

	drawFinder := func(x, y int) {
		for dy := 0; dy < 7; dy++ {
			for dx := 0; dx < 7; dx++ {
				outer := dx == 0 || dx == 6 || dy == 0 || dy == 6
				inner := dx >= 2 && dx <= 4 && dy >= 2 && dy <= 4
				grid[y+dy][x+dx] = outer || inner
			}
		}
	}
	drawFinder(0, 0)
	drawFinder(14, 0)
	drawFinder(0, 14)

	for i := 7; i < 14; i++ {
		grid[6][i] = i%2 == 0
		grid[i][6] = i%2 == 0
	}

	var seed int32
	for _, c := range code {
		seed = seed<<5 + int32(c)
	}

	state := int64(seed)
	for y := 0; y < GridSize; y++ {
		for x := 0; x < GridSize; x++ {
			if (x < 8 && y < 8) || (x >= 13 && y < 8) || (x < 8 && y >= 13) {
				continue
			}
			if x == 6 || y == 6 {
				continue
			}
			state = (state*1103515245 + 12345) & 0x7fffffff
			grid[y][x] = state%3 != 0
		}
	}
	return grid
}
