package layout

// Widget identifiers.
const (
	ClockID   = "clock"
	DateID    = "date"
	WeatherID = "weather"
	NewsID    = "news"
	MusicID   = "music"
	PreviewID = "preview"
)

// DefaultCatalog returns the built-in widgets with their default layouts.
// ZOrder follows catalog order, so the camera preview is on top.
func DefaultCatalog() []Widget {
	widgets := []Widget{
		{ID: ClockID, Position: Point{50, 50}, Size: Size{300, 120}},
		{ID: DateID, Position: Point{50, 200}, Size: Size{250, 80}},
		{ID: WeatherID, Position: Point{400, 50}, Size: Size{320, 200}},
		{ID: NewsID, Position: Point{50, 400}, Size: Size{400, 250}},
		{ID: MusicID, Position: Point{800, 400}, Size: Size{350, 140}},
		{ID: PreviewID, Position: Point{16, 16}, Size: Size{256, 192}},
	}
	for i := range widgets {
		widgets[i].ZOrder = i
	}
	return widgets
}
