package tracer

import (
	"bytes"
	"fmt"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/achilleasa/wavefront/tracer/layout"
)

// Frame statistics collected by the scheduler.
type Stats struct {
	// Ray counts: camera rays, bounce 1 extension rays and extension rays
	// of deeper bounces.
	PrimaryRays uint32
	Bounce1Rays uint32
	DeepRays    uint32

	// Active paths and shadow rays emitted at each bounce.
	PathCount    [layout.MaxPathLength]uint32
	ShadowDeltas [layout.MaxPathLength]uint32

	// Number of shadow rays traced by the connect pass.
	ConnectDispatch uint32

	TotalExtensionRays uint32
	TotalShadowRays    uint32

	// Timings
	TraceTime1      time.Duration
	TraceTime2      time.Duration
	TraceTimeDeep   time.Duration
	ShadeTime       time.Duration
	ShadowTraceTime time.Duration
	PresentTime     time.Duration
	RenderTime      time.Duration

	// Closest hit of the first sample of the probe pixel. The instance and
	// triangle ids are negative if the probe missed or is disabled.
	ProbedInstID int32
	ProbedTriID  int32
	ProbedDist   float32

	// Accumulated samples per pixel after this frame.
	SamplesTaken uint32
}

func (s *Stats) reset() {
	*s = Stats{ProbedInstID: -1, ProbedTriID: -1}
}

func (s *Stats) addTraceTime(pathLength uint32, d time.Duration) {
	switch pathLength {
	case 1:
		s.TraceTime1 += d
	case 2:
		s.TraceTime2 += d
	default:
		s.TraceTimeDeep += d
	}
}

// Build a tabular representation of the frame statistics.
func (s Stats) Table() string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Stage", "Stat", "Value"})
	table.Append([]string{"Rays", "Primary", fmt.Sprint(s.PrimaryRays)})
	table.Append([]string{"", "Bounce 1", fmt.Sprint(s.Bounce1Rays)})
	table.Append([]string{"", "Deep", fmt.Sprint(s.DeepRays)})
	table.Append([]string{"", "Shadow", fmt.Sprint(s.TotalShadowRays)})
	table.Append([]string{" ", " ", " "})
	for b := 0; b < layout.MaxPathLength; b++ {
		stage := ""
		if b == 0 {
			stage = "Bounces"
		}
		table.Append([]string{stage, fmt.Sprintf("Bounce %d paths/shadow", b+1), fmt.Sprintf("%d / %d", s.PathCount[b], s.ShadowDeltas[b])})
	}
	table.Append([]string{" ", " ", " "})
	table.Append([]string{"Timings", "Trace (bounce 1)", s.TraceTime1.String()})
	table.Append([]string{"", "Trace (bounce 2)", s.TraceTime2.String()})
	table.Append([]string{"", "Trace (deep)", s.TraceTimeDeep.String()})
	table.Append([]string{"", "Shade", s.ShadeTime.String()})
	table.Append([]string{"", "Shadow trace", s.ShadowTraceTime.String()})
	table.Append([]string{"", "Present", s.PresentTime.String()})
	table.Append([]string{" ", " ", " "})
	probe := "miss"
	if s.ProbedInstID >= 0 {
		probe = fmt.Sprintf("inst %d, tri %d, dist %.3f", s.ProbedInstID, s.ProbedTriID, s.ProbedDist)
	}
	table.Append([]string{"Probe", "Hit", probe})
	table.SetFooter([]string{"Total", fmt.Sprintf("%d spp", s.SamplesTaken), s.RenderTime.String()})

	table.Render()
	return buf.String()
}
