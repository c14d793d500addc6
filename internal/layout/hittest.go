package layout

// HitTest returns the topmost widget containing p. The highest ZOrder wins and
// equal ZOrders resolve to the widget later in the slice.
func HitTest(widgets []Widget, p Point) (Widget, bool) {
	var (
		hit   Widget
		found bool
	)
	for _, w := range widgets {
		if !w.Contains(p) {
			continue
		}
		if !found || w.ZOrder >= hit.ZOrder {
			hit, found = w, true
		}
	}
	return hit, found
}
