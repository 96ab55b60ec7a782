package svg

// Series is one set of bars bound to an axis.
type Series struct {
	Label      string
	Values     []float64
	Tooltips   []string
	Color      string
	TickSuffix string
}

// DualAxisOpts customises the dual-axis bar chart renderer.
type DualAxisOpts struct {
	Title       string
	Description string
	AxisColor   string
	GridColor   string
	EmptyText   string
	Padding     float64
	TickCount   int
}

// Defaults for the analytics charts.
const (
	DefaultWidth   = 720
	DefaultHeight  = 320
	DefaultPadding = 48.0
	DefaultTicks   = 5
)
