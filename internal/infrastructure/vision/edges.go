package vision

import "math"

const (
	cannyLow  = 50
	cannyHigh = 150
)

// border отображает индекс за краем изображения внутрь.
type border func(i, n int) int

// reflect101 отражение без повтора крайнего пикселя: dcb|abcd|cba.
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return i
}

// replicate повтор крайнего пикселя: aaa|abcd|ddd.
func replicate(i, n int) int {
	return min(max(i, 0), n-1)
}

// sobel свёртка ядрами Собеля 3×3 по x и y.
func sobel(p plane, b border) (gx, gy []float64) {
	gx = make([]float64, p.w*p.h)
	gy = make([]float64, p.w*p.h)
	for r := 0; r < p.h; r++ {
		r0, r2 := b(r-1, p.h), b(r+1, p.h)
		for c := 0; c < p.w; c++ {
			c0, c2 := b(c-1, p.w), b(c+1, p.w)
			tl, tc, tr := float64(p.at(r0, c0)), float64(p.at(r0, c)), float64(p.at(r0, c2))
			ml, mr := float64(p.at(r, c0)), float64(p.at(r, c2))
			bl, bc, br := float64(p.at(r2, c0)), float64(p.at(r2, c)), float64(p.at(r2, c2))

			gx[r*p.w+c] = (tr + 2*mr + br) - (tl + 2*ml + bl)
			gy[r*p.w+c] = (bl + 2*bc + br) - (tl + 2*tc + tr)
		}
	}
	return gx, gy
}

// canny детектор границ: Собель с повтором края, L1-модуль градиента,
// подавление немаксимумов и гистерезис по двум порогам. Граница = 255.
func canny(p plane, low, high float64) []uint8 {
	w, h := p.w, p.h
	dx, dy := sobel(p, replicate)

	// модуль с нулевой рамкой, чтобы соседи за краем не мешали
	mag := make([]float64, (w+2)*(h+2))
	at := func(r, c int) float64 { return mag[(r+1)*(w+2)+c+1] }
	for r := 0; r < h; r++ {
		for c := 0; c < w; c++ {
			i := r*w + c
			mag[(r+1)*(w+2)+c+1] = math.Abs(dx[i]) + math.Abs(dy[i])
		}
	}

	const tan22 = 0.4142135623730951
	const (
		none = iota
		weak
		strong
	)
	state := make([]uint8, w*h)
	var stack []int

	for r := 0; r < h; r++ {
		for c := 0; c < w; c++ {
			i := r*w + c
			m := at(r, c)
			if m <= low {
				continue
			}
			xs, ys := math.Abs(dx[i]), math.Abs(dy[i])
			tg22x := xs * tan22
			var isMax bool
			switch {
			case ys < tg22x:
				isMax = m > at(r, c-1) && m >= at(r, c+1)
			case ys > tg22x+2*xs:
				isMax = m > at(r-1, c) && m >= at(r+1, c)
			default:
				s := 1
				if (dx[i] < 0) != (dy[i] < 0) {
					s = -1
				}
				isMax = m > at(r-1, c-s) && m > at(r+1, c+s)
			}
			if !isMax {
				continue
			}
			if m > high {
				state[i] = strong
				stack = append(stack, i)
			} else {
				state[i] = weak
			}
		}
	}

	out := make([]uint8, w*h)
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if out[i] != 0 {
			continue
		}
		out[i] = 255
		r, c := i/w, i%w
		for dr := -1; dr <= 1; dr++ {
			for dc := -1; dc <= 1; dc++ {
				nr, nc := r+dr, c+dc
				if nr < 0 || nr >= h || nc < 0 || nc >= w {
					continue
				}
				j := nr*w + nc
				if state[j] != none && out[j] == 0 {
					stack = append(stack, j)
				}
			}
		}
	}
	return out
}
