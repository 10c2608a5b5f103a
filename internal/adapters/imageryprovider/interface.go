package imageryprovider

import "context"

// TileRequest addresses one tile of a layer at a level of detail.
type TileRequest struct {
	Layer string
	Z     int
	X     int
	Y     int

	// ShouldExecute is re-checked right before the fetch starts. Callers use
	// it to drop tiles that scrolled out of view while queued.
	ShouldExecute func() bool
	// Cancel abandons the fetch if closed before it starts.
	Cancel <-chan struct{}
}

// ImageryProvider serves tile imagery, memoizing results and collapsing
// concurrent requests for the same tile into one upstream fetch.
type ImageryProvider interface {
	GetTile(ctx context.Context, request TileRequest) ([]byte, error)
	Loading() bool
	Progress() float64
}
