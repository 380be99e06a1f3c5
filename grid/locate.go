package grid

// Locate maps a point to the cell containing it. X and Y use the closed face
// interval [F(i), F(i+1)] and the last matching cell wins. Z assumes ascending
// faces and scans upward from the first physical level. A point outside on any
// axis returns (-1, -1, -1).
func (g *Grid) Locate(x, y, z float32) (i, j, k int) {
	i, j, k = -1, -1, -1
	for ii := 0; ii < g.NX; ii++ {
		if x >= g.XF[ii] && x <= g.XF[ii+1] {
			i = ii
		}
	}
	for jj := 0; jj < g.NY; jj++ {
		if y >= g.YF[jj] && y <= g.YF[jj+1] {
			j = jj
		}
	}
	var (
		top = len(g.ZF) - 1
		kk  = 1
	)
	for kk < top && z >= g.ZF[kk+1] {
		kk++
	}
	if kk < top {
		k = kk
	}
	if i == -1 || j == -1 || k == -1 {
		return -1, -1, -1
	}
	return
}
